package runtime

import (
	"context"
	"time"
)

// Pid is an operating system process identifier. It is only meaningful while
// the process it names has not been reaped; callers must not keep it as a
// long-lived key.
type Pid int

// Spec describes a process to launch.
type Spec struct {
	Name    string
	Version string
	Command []string
	Env     map[string]string
	Workdir string
}

// Clone returns a deep copy of the spec.
func (s Spec) Clone() Spec {
	dup := s
	if len(s.Command) > 0 {
		dup.Command = append([]string(nil), s.Command...)
	}
	if len(s.Env) > 0 {
		dup.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			dup.Env[k] = v
		}
	}
	return dup
}

// Instance represents a single running process managed by a runtime adapter.
type Instance interface {
	// Name returns the label the instance was started with.
	Name() string

	// Pid returns the operating system identifier of the process.
	Pid() Pid

	// StartedAt reports when the process was spawned.
	StartedAt() time.Time

	// Wait blocks until the process has been reaped or the provided context
	// is cancelled. It may be called any number of times.
	Wait(ctx context.Context) (ExitStatus, error)

	// Stop terminates the instance. Implementations should be idempotent
	// and safe to call multiple times.
	Stop(ctx context.Context) error
}

// Runtime describes a backend capable of launching processes. Exit and log
// notifications are published on the provided sink.
type Runtime interface {
	Start(ctx context.Context, spec Spec, events EventSink) (Instance, error)
}

// Registry maps runtime identifiers to their concrete implementations.
type Registry map[string]Runtime

// Clone returns a shallow copy of the registry, allowing callers to avoid
// accidental mutation of shared maps.
func (r Registry) Clone() Registry {
	dup := make(Registry, len(r))
	for k, v := range r {
		dup[k] = v
	}
	return dup
}
