package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	keyConfig        = "config"
	keyLogLevel      = "log-level"
	keyListen        = "listen"
	keyFailurePolicy = "failure-policy"

	defaultConfigFile = "corral.yaml"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	ctx := &context{
		settings: viper.New(),
		logger:   logrus.New(),
	}
	ctx.settings.SetEnvPrefix("CORRAL")
	ctx.settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	ctx.settings.AutomaticEnv()
	ctx.settings.SetDefault(keyConfig, defaultConfigFile)

	root := &cobra.Command{
		Use:   "corral",
		Short: "Supervise local processes and report how they exit",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.logger.SetOutput(cmd.ErrOrStderr())
			return ctx.setLogLevel(ctx.settings.GetString(keyLogLevel))
		},
	}

	flags := root.PersistentFlags()
	flags.StringP(keyConfig, "c", defaultConfigFile, "Path to the corral configuration file")
	flags.String(keyLogLevel, "", "Log level (debug, info, warn, error); overrides runtime.logLevel")
	for _, key := range []string{keyConfig, keyLogLevel} {
		if err := ctx.settings.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", key, err))
		}
	}

	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// context carries state shared by every subcommand.
type context struct {
	settings *viper.Viper
	logger   *logrus.Logger
}

func (c *context) configPath() string {
	return c.settings.GetString(keyConfig)
}

func (c *context) setLogLevel(value string) error {
	if value == "" {
		return nil
	}
	level, err := logrus.ParseLevel(value)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	c.logger.SetLevel(level)
	return nil
}

// override returns the flag or environment value for key when one was given.
func (c *context) override(key string) (string, bool) {
	if !c.settings.IsSet(key) {
		return "", false
	}
	value := c.settings.GetString(key)
	return value, value != ""
}
