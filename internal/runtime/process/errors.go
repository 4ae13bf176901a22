package process

import (
	"errors"
	"fmt"

	"github.com/Paintersrp/corral/internal/runtime"
)

// ErrStop is wrapped by every failure to stop a process.
var ErrStop = errors.New("failed to stop process")

// StartError reports that a process could not be spawned.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start process %s: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// OSError wraps a failed operating system call.
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("os error: %s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error { return e.Err }

// WaitError reports a wait4 failure outside the transient set. The fate of
// the process is unknown once this is returned.
type WaitError struct {
	Pid runtime.Pid
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("failed to wait on pid %d: %v", e.Pid, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }

// DeliveryError reports that the runtime event sink rejected an exit
// notification, meaning the central event loop is gone.
type DeliveryError struct {
	Name string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver exit of %s to event sink: %v", e.Name, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
