//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// configureCmdSysProcAttr places the child in its own process group so stop
// signals reach everything it forks.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
