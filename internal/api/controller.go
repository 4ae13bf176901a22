package api

import (
	stdcontext "context"
	"errors"
	"fmt"
	"time"

	"github.com/Paintersrp/corral/internal/engine"
	"github.com/Paintersrp/corral/internal/runtime"
)

// EngineController serves the control API from a running engine.
type EngineController struct {
	engine *engine.Engine
	now    func() time.Time
}

// NewEngineController wraps eng.
func NewEngineController(eng *engine.Engine) *EngineController {
	return &EngineController{engine: eng, now: time.Now}
}

// Status reports every process the engine knows about.
func (c *EngineController) Status(stdcontext.Context) (*StatusReport, error) {
	now := c.now()
	report := &StatusReport{
		GeneratedAt: now,
		Processes:   map[string]ProcessReport{},
	}
	for _, state := range c.engine.States() {
		if state.Running {
			report.Running++
		}
		report.Processes[state.Name] = newProcessReport(state, now)
	}
	return report, nil
}

// StopProcess stops the named process and reports how it terminated.
func (c *EngineController) StopProcess(ctx stdcontext.Context, name string) (*StopResult, error) {
	state, err := c.engine.State(name)
	if err != nil {
		return nil, translate(err, name)
	}
	if !state.Running {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotRunning, name)
	}
	if err := c.engine.Stop(ctx, name); err != nil {
		return nil, translate(err, name)
	}

	result := &StopResult{Process: name, CompletedAt: c.now()}
	// The exit event may still be on its way through the event loop.
	if after, err := c.engine.State(name); err == nil && !after.Running && after.Pid == state.Pid {
		result.Exit = newExitReport(after.Status)
	}
	return result, nil
}

func translate(err error, name string) error {
	if errors.Is(err, engine.ErrUnknownProcess) {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	return err
}

func newProcessReport(state engine.State, now time.Time) ProcessReport {
	report := ProcessReport{
		Name:      state.Name,
		Version:   state.Version,
		Pid:       int(state.Pid),
		Running:   state.Running,
		StartedAt: state.StartedAt,
		Uptime:    state.Uptime(now).Truncate(time.Millisecond).String(),
		Exit:      newExitReport(state.Status),
	}
	if !state.ExitedAt.IsZero() {
		exitedAt := state.ExitedAt
		report.ExitedAt = &exitedAt
	}
	if state.Err != nil {
		report.Error = state.Err.Error()
	}
	return report
}

func newExitReport(status runtime.ExitStatus) *ExitReport {
	if !status.Valid() {
		return nil
	}
	return &ExitReport{
		Kind:   string(status.Kind),
		Code:   int(status.Code),
		Signal: int(status.Signal),
		Text:   status.String(),
	}
}
