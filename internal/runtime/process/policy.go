package process

import (
	"fmt"
	"strings"
)

// FailurePolicy selects what a watcher does when it loses track of its
// process or cannot publish the outcome.
type FailurePolicy string

const (
	// FailurePolicyAbort hands the error to the watcher's abort function,
	// which panics unless overridden.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicyIsolate fails only the affected process: the exit
	// handle is closed unsent and a watch_failed event is published.
	FailurePolicyIsolate FailurePolicy = "isolate"
)

// ParseFailurePolicy converts a configuration value into a FailurePolicy. An
// empty string selects FailurePolicyAbort.
func ParseFailurePolicy(value string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", FailurePolicyAbort:
		return FailurePolicyAbort, nil
	case FailurePolicyIsolate:
		return FailurePolicyIsolate, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (expected %q or %q)", value, FailurePolicyAbort, FailurePolicyIsolate)
	}
}
