package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/corral/internal/config"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with corral configuration files",
	}
	cmd.AddCommand(newConfigValidateCmd(ctx))
	return cmd
}

func newConfigValidateCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a corral configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.Load(ctx.configPath())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d processes, failure policy %s)\n",
				file.Source, len(file.Processes), file.Runtime.FailurePolicy)
			return nil
		},
	}
	return cmd
}
