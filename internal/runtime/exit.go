package runtime

import (
	"fmt"
	"syscall"
)

// ExitCode is the status a process reported when it exited on its own.
type ExitCode int

// ExitKind classifies how a process terminated.
type ExitKind string

const (
	// ExitKindExited means the process ran to completion or called exit.
	ExitKindExited ExitKind = "exited"
	// ExitKindSignaled means the process was killed by a fatal signal.
	ExitKindSignaled ExitKind = "signaled"
)

// ExitStatus is the terminal outcome of a supervised process. The zero value
// is not a valid outcome.
type ExitStatus struct {
	Kind   ExitKind
	Code   ExitCode
	Signal syscall.Signal
}

// Exited constructs the outcome of a process that exited with code.
func Exited(code ExitCode) ExitStatus {
	return ExitStatus{Kind: ExitKindExited, Code: code}
}

// Signaled constructs the outcome of a process killed by sig.
func Signaled(sig syscall.Signal) ExitStatus {
	return ExitStatus{Kind: ExitKindSignaled, Signal: sig}
}

// Valid reports whether the status carries one of the two terminal kinds.
func (s ExitStatus) Valid() bool {
	return s.Kind == ExitKindExited || s.Kind == ExitKindSignaled
}

// Success reports whether the process exited with code zero.
func (s ExitStatus) Success() bool {
	return s.Kind == ExitKindExited && s.Code == 0
}

func (s ExitStatus) String() string {
	switch s.Kind {
	case ExitKindExited:
		return fmt.Sprintf("exited(%d)", s.Code)
	case ExitKindSignaled:
		return fmt.Sprintf("signaled(%d: %s)", int(s.Signal), s.Signal)
	default:
		return "unknown"
	}
}
