package config

import (
	"strings"
	"testing"
	"time"
)

func validFile() *File {
	f := &File{
		Processes: []*Process{
			{Name: "web", Command: []string{"/bin/web"}},
		},
	}
	f.ApplyDefaults()
	return f
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validFile().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *File)
		want   string
	}{
		{
			name:   "no processes",
			mutate: func(f *File) { f.Processes = nil },
			want:   "processes: at least one process is required",
		},
		{
			name:   "missing name",
			mutate: func(f *File) { f.Processes[0].Name = "" },
			want:   "processes[0].name: is required",
		},
		{
			name:   "invalid name",
			mutate: func(f *File) { f.Processes[0].Name = "web server" },
			want:   "processes[0].name: invalid name",
		},
		{
			name: "duplicate name",
			mutate: func(f *File) {
				f.Processes = append(f.Processes, &Process{Name: "web", Command: []string{"/bin/web"}})
			},
			want: "processes[1].name: duplicate name \"web\" (also processes[0])",
		},
		{
			name:   "missing command",
			mutate: func(f *File) { f.Processes[0].Command = nil },
			want:   "processes[0].command: is required",
		},
		{
			name:   "nil process",
			mutate: func(f *File) { f.Processes = append(f.Processes, nil) },
			want:   "processes[1]: must not be empty",
		},
		{
			name:   "reserved env",
			mutate: func(f *File) { f.Processes[0].Env = map[string]string{"NAME": "x"} },
			want:   "processes[0].env: NAME is reserved",
		},
		{
			name:   "unknown policy",
			mutate: func(f *File) { f.Runtime.FailurePolicy = "restart" },
			want:   "runtime.failurePolicy: unknown failure policy",
		},
		{
			name:   "negative buffer",
			mutate: func(f *File) { f.Runtime.EventBuffer = -1 },
			want:   "runtime.eventBuffer: must not be negative",
		},
		{
			name:   "negative stop timeout",
			mutate: func(f *File) { f.Runtime.StopTimeout = Duration{Duration: -time.Second} },
			want:   "runtime.stopTimeout: must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFile()
			tt.mutate(f)
			err := f.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("150ms")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 150*time.Millisecond || !d.IsSet() {
		t.Fatalf("unexpected duration %+v", d)
	}

	var empty Duration
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !empty.IsSet() || empty.Duration != 0 {
		t.Fatalf("explicit empty duration should be set and zero: %+v", empty)
	}

	if err := new(Duration).UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("expected invalid duration error")
	}
}
