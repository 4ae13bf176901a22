package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Paintersrp/corral/internal/runtime"
)

const (
	DefaultEventBuffer = 256
	DefaultStopTimeout = 5 * time.Second
	DefaultLogLevel    = "info"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// File mirrors the corral.yaml document structure.
type File struct {
	Version   string     `yaml:"version"`
	Runtime   Runtime    `yaml:"runtime"`
	Processes []*Process `yaml:"processes"`

	// Source is the absolute path the file was loaded from.
	Source string `yaml:"-"`
}

// Runtime holds settings shared by every supervised process.
type Runtime struct {
	// EventBuffer is the capacity of the central event bus.
	EventBuffer int `yaml:"eventBuffer"`
	// FailurePolicy is "abort" or "isolate".
	FailurePolicy string   `yaml:"failurePolicy"`
	StopTimeout   Duration `yaml:"stopTimeout"`
	LogLevel      string   `yaml:"logLevel"`
	// Listen is the address of the status and metrics server; empty
	// disables it.
	Listen  string `yaml:"listen"`
	Workdir string `yaml:"workdir"`
}

// Process describes a single supervised process.
type Process struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Command     []string          `yaml:"command"`
	Env         map[string]string `yaml:"env"`
	EnvFromFile string            `yaml:"envFromFile"`
	Workdir     string            `yaml:"workdir"`

	ResolvedWorkdir string `yaml:"-"`
}

// Spec converts the process definition into a runtime launch spec.
func (p *Process) Spec() runtime.Spec {
	spec := runtime.Spec{
		Name:    p.Name,
		Version: p.Version,
		Command: p.Command,
		Env:     p.Env,
		Workdir: p.ResolvedWorkdir,
	}
	return spec.Clone()
}

// ApplyDefaults fills unset runtime settings.
func (f *File) ApplyDefaults() {
	if f.Runtime.EventBuffer == 0 {
		f.Runtime.EventBuffer = DefaultEventBuffer
	}
	if !f.Runtime.StopTimeout.IsSet() {
		f.Runtime.StopTimeout = Duration{Duration: DefaultStopTimeout}
	}
	if f.Runtime.LogLevel == "" {
		f.Runtime.LogLevel = DefaultLogLevel
	}
	if f.Runtime.FailurePolicy == "" {
		f.Runtime.FailurePolicy = "abort"
	}
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}

func processField(index int, parts ...string) string {
	pathParts := append([]string{fmt.Sprintf("processes[%d]", index)}, parts...)
	return fieldPath(pathParts...)
}

func runtimeField(parts ...string) string {
	return fieldPath(append([]string{"runtime"}, parts...)...)
}
