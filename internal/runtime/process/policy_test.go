package process

import "testing"

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{in: "", want: FailurePolicyAbort},
		{in: "abort", want: FailurePolicyAbort},
		{in: " Isolate ", want: FailurePolicyIsolate},
		{in: "restart", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFailurePolicy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseFailurePolicy(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseFailurePolicy(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseFailurePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
