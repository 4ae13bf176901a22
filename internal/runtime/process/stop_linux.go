//go:build linux

package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Stop sends SIGTERM to the process group and escalates to SIGKILL once the
// stop timeout passes. It returns when the process has been reaped.
func (p *processInstance) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Once reaped the process group id may already belong to someone else.
	if p.exited() {
		return nil
	}

	if err := p.signalGroup(unix.SIGTERM); err != nil {
		return err
	}

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	if p.exited() {
		return nil
	}
	if err := p.signalGroup(unix.SIGKILL); err != nil {
		return err
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *processInstance) signalGroup(sig unix.Signal) error {
	if err := unix.Kill(-int(p.pid), sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("%w %s: %w", ErrStop, p.name, &OSError{Op: fmt.Sprintf("kill(-%d, %s)", p.pid, unix.SignalName(sig)), Err: err})
	}
	return nil
}
