package runtime

import (
	"syscall"
	"testing"
)

func TestExitStatusString(t *testing.T) {
	tests := []struct {
		name   string
		status ExitStatus
		want   string
		valid  bool
	}{
		{name: "exited", status: Exited(17), want: "exited(17)", valid: true},
		{name: "signaled", status: Signaled(syscall.SIGKILL), want: "signaled(9: killed)", valid: true},
		{name: "zero", status: ExitStatus{}, want: "unknown", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.status.Valid(); got != tt.valid {
				t.Fatalf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestExitStatusSuccess(t *testing.T) {
	if !Exited(0).Success() {
		t.Fatalf("exit code 0 should be a success")
	}
	if Exited(2).Success() {
		t.Fatalf("exit code 2 should not be a success")
	}
	if Signaled(syscall.SIGTERM).Success() {
		t.Fatalf("signaled process should not be a success")
	}
}
