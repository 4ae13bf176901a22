// Package api defines the control surface served over HTTP while corral
// runs.
package api

import (
	stdcontext "context"
	"errors"
	"time"
)

var (
	ErrUnknownProcess    = errors.New("unknown process")
	ErrProcessNotRunning = errors.New("process not running")
)

// ExitReport is the termination outcome of a reaped process.
type ExitReport struct {
	Kind   string `json:"kind"`
	Code   int    `json:"code,omitempty"`
	Signal int    `json:"signal,omitempty"`
	Text   string `json:"text"`
}

// ProcessReport describes the state of a single supervised process.
type ProcessReport struct {
	Name      string      `json:"name"`
	Version   string      `json:"version,omitempty"`
	Pid       int         `json:"pid"`
	Running   bool        `json:"running"`
	StartedAt time.Time   `json:"started_at"`
	ExitedAt  *time.Time  `json:"exited_at,omitempty"`
	Uptime    string      `json:"uptime"`
	Exit      *ExitReport `json:"exit,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// StatusReport aggregates the state of every known process.
type StatusReport struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Running     int                      `json:"running"`
	Processes   map[string]ProcessReport `json:"processes"`
}

// StopResult captures the outcome of a stop request.
type StopResult struct {
	Process     string      `json:"process"`
	CompletedAt time.Time   `json:"completed_at"`
	Exit        *ExitReport `json:"exit,omitempty"`
}

// Controller exposes the runtime operations served by the control server.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	StopProcess(stdcontext.Context, string) (*StopResult, error)
}
