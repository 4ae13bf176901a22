package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Paintersrp/corral/internal/runtime/process"
)

var processNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate checks the document for structural errors. Defaults should be
// applied first.
func (f *File) Validate() error {
	var errs []error

	if f.Runtime.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative", runtimeField("eventBuffer")))
	}
	if _, err := process.ParseFailurePolicy(f.Runtime.FailurePolicy); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", runtimeField("failurePolicy"), err))
	}
	if f.Runtime.StopTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative", runtimeField("stopTimeout")))
	}

	if len(f.Processes) == 0 {
		errs = append(errs, errors.New("processes: at least one process is required"))
	}
	seen := make(map[string]int, len(f.Processes))
	for idx, proc := range f.Processes {
		if proc == nil {
			errs = append(errs, fmt.Errorf("%s: must not be empty", processField(idx)))
			continue
		}
		switch {
		case proc.Name == "":
			errs = append(errs, fmt.Errorf("%s: is required", processField(idx, "name")))
		case !processNamePattern.MatchString(proc.Name):
			errs = append(errs, fmt.Errorf("%s: invalid name %q", processField(idx, "name"), proc.Name))
		default:
			if prev, dup := seen[proc.Name]; dup {
				errs = append(errs, fmt.Errorf("%s: duplicate name %q (also %s)", processField(idx, "name"), proc.Name, processField(prev)))
			}
			seen[proc.Name] = idx
		}
		if len(proc.Command) == 0 || proc.Command[0] == "" {
			errs = append(errs, fmt.Errorf("%s: is required", processField(idx, "command")))
		}
		for key := range proc.Env {
			if key == process.EnvName || key == process.EnvVersion {
				errs = append(errs, fmt.Errorf("%s: %s is reserved", processField(idx, "env"), key))
			}
		}
	}

	return errors.Join(errs...)
}
