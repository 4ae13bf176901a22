//go:build linux

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/corral/internal/runtime"
)

type verdict string

const (
	verdictRetry    verdict = "retry"
	verdictExited   verdict = "exited"
	verdictSignaled verdict = "signaled"
	verdictFatal    verdict = "fatal"
)

const (
	retryInterrupted   = "interrupted"
	retryStillAlive    = "still_alive"
	retryStopped       = "stopped"
	retryContinued     = "continued"
	retryPtraceEvent   = "ptrace_event"
	retryPtraceSyscall = "ptrace_syscall"
)

// ptraceSyscallStop is the stop signal reported for syscall stops when
// PTRACE_O_TRACESYSGOOD is in effect.
const ptraceSyscallStop = unix.SIGTRAP | 0x80

type classification struct {
	verdict verdict
	status  runtime.ExitStatus
	reason  string
	err     error
}

// classify maps one wait4 result onto exactly one verdict. Anything it does
// not recognise is fatal.
func classify(wpid int, status unix.WaitStatus, err error) classification {
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return classification{verdict: verdictRetry, reason: retryInterrupted}
		}
		return classification{verdict: verdictFatal, err: err}
	}
	if wpid == 0 {
		return classification{verdict: verdictRetry, reason: retryStillAlive}
	}

	switch {
	case status.Exited():
		return classification{verdict: verdictExited, status: runtime.Exited(runtime.ExitCode(status.ExitStatus()))}
	case status.Signaled():
		return classification{verdict: verdictSignaled, status: runtime.Signaled(status.Signal())}
	case status.Stopped():
		switch {
		case status.StopSignal() == ptraceSyscallStop:
			return classification{verdict: verdictRetry, reason: retryPtraceSyscall}
		case status.TrapCause() > 0:
			return classification{verdict: verdictRetry, reason: retryPtraceEvent}
		default:
			return classification{verdict: verdictRetry, reason: retryStopped}
		}
	case status.Continued():
		return classification{verdict: verdictRetry, reason: retryContinued}
	default:
		return classification{verdict: verdictFatal, err: fmt.Errorf("unrecognized wait status %#x", uint32(status))}
	}
}
