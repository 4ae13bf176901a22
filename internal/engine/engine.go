package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/corral/internal/metrics"
	"github.com/Paintersrp/corral/internal/runtime"
)

var (
	// ErrUnknownProcess reports a name the engine has never seen.
	ErrUnknownProcess = errors.New("unknown process")
	// ErrProcessRunning reports an operation that needs a reaped process.
	ErrProcessRunning = errors.New("process is running")
)

// State is the engine's view of one supervised process.
type State struct {
	Name      string
	Version   string
	Pid       runtime.Pid
	StartedAt time.Time
	ExitedAt  time.Time
	Running   bool
	Status    runtime.ExitStatus
	Err       error
}

// Uptime reports how long the process has been (or was) alive.
func (s State) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if !s.Running && !s.ExitedAt.IsZero() {
		return s.ExitedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

type entry struct {
	state    State
	instance runtime.Instance
}

// Engine is the central event loop. It launches processes through a
// runtime, consumes the bus they report on and tracks their state.
type Engine struct {
	runtime runtime.Runtime
	bus     *Bus
	logger  logrus.FieldLogger

	mu        sync.Mutex
	processes map[string]*entry

	subMu       sync.Mutex
	subscribers map[int]chan runtime.Event
	nextSub     int
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs an engine launching processes with rt and consuming bus.
func New(rt runtime.Runtime, bus *Bus, opts ...Option) *Engine {
	e := &Engine{
		runtime:     rt,
		bus:         bus,
		logger:      logrus.StandardLogger(),
		processes:   map[string]*entry{},
		subscribers: map[int]chan runtime.Event{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bus returns the sink producers should report on.
func (e *Engine) Bus() *Bus {
	return e.bus
}

// Start launches spec. A name may only be reused once its previous process
// has been reaped.
func (e *Engine) Start(ctx context.Context, spec runtime.Spec) (runtime.Instance, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.processes[spec.Name]; ok && existing.state.Running {
		return nil, fmt.Errorf("%w: %s has pid %d", ErrProcessRunning, spec.Name, existing.state.Pid)
	}

	inst, err := e.runtime.Start(ctx, spec.Clone(), e.bus)
	if err != nil {
		return nil, err
	}

	state := State{
		Name:      spec.Name,
		Version:   spec.Version,
		Pid:       inst.Pid(),
		StartedAt: inst.StartedAt(),
		Running:   true,
	}
	e.processes[spec.Name] = &entry{state: state, instance: inst}
	metrics.SetProcessRunning(spec.Name, true)
	e.logger.WithFields(logrus.Fields{"process": spec.Name, "pid": state.Pid}).Info("process started")

	// Published under the lock so subscribers see it before the exit.
	e.publish(runtime.Event{
		Timestamp: state.StartedAt,
		Kind:      runtime.EventKindStarted,
		Name:      spec.Name,
		Pid:       state.Pid,
		Source:    runtime.LogSourceSystem,
	})
	return inst, nil
}

// Stop terminates the named process and waits for it to be reaped.
func (e *Engine) Stop(ctx context.Context, name string) error {
	e.mu.Lock()
	ent, ok := e.processes[name]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	if ent.instance == nil {
		return fmt.Errorf("process %s was not started by this engine", name)
	}
	if err := ent.instance.Stop(ctx); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return nil
}

// StopAll terminates every running process.
func (e *Engine) StopAll(ctx context.Context) error {
	var errs []error
	for _, state := range e.States() {
		if !state.Running {
			continue
		}
		if err := e.Stop(ctx, state.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Forget drops a reaped process from the engine's state and clears its
// metric series.
func (e *Engine) Forget(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.processes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	if ent.state.Running {
		return fmt.Errorf("%w: %s has pid %d", ErrProcessRunning, name, ent.state.Pid)
	}
	delete(e.processes, name)
	metrics.ResetProcess(name)
	return nil
}

// State returns the snapshot of one process.
func (e *Engine) State(name string) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.processes[name]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	return ent.state, nil
}

// States returns a snapshot of every known process, sorted by name.
func (e *Engine) States() []State {
	e.mu.Lock()
	defer e.mu.Unlock()
	states := make([]State, 0, len(e.processes))
	for _, ent := range e.processes {
		states = append(states, ent.state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}

// Running returns the number of processes not yet reaped.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ent := range e.processes {
		if ent.state.Running {
			n++
		}
	}
	return n
}

// Subscribe returns a channel receiving every event the engine handles. A
// subscriber that falls behind misses events rather than stalling the loop.
func (e *Engine) Subscribe(buffer int) (<-chan runtime.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan runtime.Event, buffer)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subscribers, id)
			e.subMu.Unlock()
			close(ch)
		})
	}
}

// Run consumes the bus until ctx is done or the bus is closed.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.bus.Done():
			e.drain()
			return nil
		case evt := <-e.bus.Events():
			e.handle(evt)
		}
	}
}

// drain handles whatever was buffered before the bus closed.
func (e *Engine) drain() {
	for {
		select {
		case evt := <-e.bus.Events():
			e.handle(evt)
		default:
			return
		}
	}
}

func (e *Engine) handle(evt runtime.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := e.logger.WithFields(logrus.Fields{"process": evt.Name, "pid": evt.Pid})

	switch evt.Kind {
	case runtime.EventKindExit:
		metrics.ObserveExit(evt.Name, string(evt.Status.Kind))
		logger.WithField("status", evt.Status).Info("process exited")
		if ent := e.current(evt); ent != nil {
			ent.state.Running = false
			ent.state.Status = evt.Status
			ent.state.ExitedAt = evt.Timestamp
			metrics.SetProcessRunning(evt.Name, false)
		}
	case runtime.EventKindWatchFailed:
		logger.WithError(evt.Err).Error("process watch failed")
		if ent := e.current(evt); ent != nil {
			ent.state.Running = false
			ent.state.Err = evt.Err
			ent.state.ExitedAt = evt.Timestamp
			metrics.SetProcessRunning(evt.Name, false)
		}
	case runtime.EventKindLog:
		logger.WithField("source", evt.Source).Debug(evt.Message)
	default:
		logger.WithField("kind", evt.Kind).Debug("ignoring event")
	}

	e.publish(evt)
}

// current returns the entry for the incarnation an event refers to, adopting
// processes the engine did not launch itself. It returns nil for events about
// an earlier incarnation of a reused name. Callers hold e.mu.
func (e *Engine) current(evt runtime.Event) *entry {
	ent, ok := e.processes[evt.Name]
	if !ok {
		ent = &entry{state: State{Name: evt.Name, Pid: evt.Pid, Running: true}}
		e.processes[evt.Name] = ent
		return ent
	}
	if evt.Pid != 0 && ent.state.Pid != evt.Pid {
		e.logger.WithFields(logrus.Fields{"process": evt.Name, "pid": evt.Pid, "current_pid": ent.state.Pid}).
			Warn("event for a previous incarnation")
		return nil
	}
	return ent
}

func (e *Engine) publish(evt runtime.Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for id, ch := range e.subscribers {
		select {
		case ch <- evt:
		default:
			e.logger.WithFields(logrus.Fields{"subscriber": id, "kind": evt.Kind}).Warn("subscriber lagging, event dropped")
		}
	}
}
