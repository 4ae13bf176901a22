//go:build linux

package process

import (
	"errors"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/corral/internal/runtime"
)

// Raw wait status encodings as produced by the kernel.
func exitedStatus(code int) unix.WaitStatus { return unix.WaitStatus(code << 8) }

func signaledStatus(sig syscall.Signal) unix.WaitStatus { return unix.WaitStatus(sig) }

func stoppedStatus(sig syscall.Signal) unix.WaitStatus { return unix.WaitStatus(int(sig)<<8 | 0x7f) }

func ptraceEventStatus(event int) unix.WaitStatus {
	return unix.WaitStatus((int(unix.SIGTRAP)|event<<8)<<8 | 0x7f)
}

const (
	continuedStatus     = unix.WaitStatus(0xffff)
	ptraceSyscallStatus = unix.WaitStatus(0x857f)
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		wpid    int
		status  unix.WaitStatus
		err     error
		verdict verdict
		reason  string
		want    runtime.ExitStatus
	}{
		{name: "exit zero", wpid: 4242, status: exitedStatus(0), verdict: verdictExited, want: runtime.Exited(0)},
		{name: "exit code", wpid: 4242, status: exitedStatus(17), verdict: verdictExited, want: runtime.Exited(17)},
		{name: "exit 255", wpid: 4242, status: exitedStatus(255), verdict: verdictExited, want: runtime.Exited(255)},
		{name: "killed", wpid: 4242, status: signaledStatus(unix.SIGKILL), verdict: verdictSignaled, want: runtime.Signaled(syscall.SIGKILL)},
		{name: "core dump", wpid: 4242, status: signaledStatus(unix.SIGSEGV) | 0x80, verdict: verdictSignaled, want: runtime.Signaled(syscall.SIGSEGV)},
		{name: "stopped", wpid: 4242, status: stoppedStatus(unix.SIGSTOP), verdict: verdictRetry, reason: retryStopped},
		{name: "stopped by trap", wpid: 4242, status: stoppedStatus(unix.SIGTRAP), verdict: verdictRetry, reason: retryStopped},
		{name: "continued", wpid: 4242, status: continuedStatus, verdict: verdictRetry, reason: retryContinued},
		{name: "ptrace event", wpid: 4242, status: ptraceEventStatus(unix.PTRACE_EVENT_EXEC), verdict: verdictRetry, reason: retryPtraceEvent},
		{name: "ptrace syscall", wpid: 4242, status: ptraceSyscallStatus, verdict: verdictRetry, reason: retryPtraceSyscall},
		{name: "still alive", wpid: 0, verdict: verdictRetry, reason: retryStillAlive},
		{name: "interrupted", wpid: -1, err: unix.EINTR, verdict: verdictRetry, reason: retryInterrupted},
		{name: "no child", wpid: -1, err: unix.ECHILD, verdict: verdictFatal},
		{name: "invalid", wpid: -1, err: unix.EINVAL, verdict: verdictFatal},
		{name: "garbage status", wpid: 4242, status: unix.WaitStatus(0xff), verdict: verdictFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.wpid, tt.status, tt.err)
			if got.verdict != tt.verdict {
				t.Fatalf("verdict = %q, want %q", got.verdict, tt.verdict)
			}
			switch tt.verdict {
			case verdictRetry:
				if got.reason != tt.reason {
					t.Fatalf("reason = %q, want %q", got.reason, tt.reason)
				}
			case verdictExited, verdictSignaled:
				if got.status != tt.want {
					t.Fatalf("status = %v, want %v", got.status, tt.want)
				}
			case verdictFatal:
				if got.err == nil {
					t.Fatalf("fatal verdict without an error")
				}
				if tt.err != nil && !errors.Is(got.err, tt.err) {
					t.Fatalf("fatal error %v does not wrap %v", got.err, tt.err)
				}
				if got.status.Valid() {
					t.Fatalf("fatal verdict carried an outcome %v", got.status)
				}
			}
		})
	}
}
