//go:build linux

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/corral/internal/runtime"
)

const (
	defaultStopTimeout = 5 * time.Second
	maxLogLine         = 1024 * 1024
)

func init() {
	runtime.Register("process", func(opts runtime.Options) (runtime.Runtime, error) {
		policy, err := ParseFailurePolicy(opts.FailurePolicy)
		if err != nil {
			return nil, err
		}
		return New(
			WithStopTimeout(opts.StopTimeout),
			WithRuntimeLogger(opts.Logger),
			WithWatchOptions(WithFailurePolicy(policy)),
		), nil
	})
}

// Option configures the process runtime.
type Option func(*runtimeImpl)

// WithStopTimeout sets how long Stop waits after SIGTERM before sending
// SIGKILL.
func WithStopTimeout(d time.Duration) Option {
	return func(r *runtimeImpl) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

// WithWatchOptions forwards options to every watcher the runtime starts.
func WithWatchOptions(opts ...WatchOption) Option {
	return func(r *runtimeImpl) {
		r.watchOpts = append(r.watchOpts, opts...)
	}
}

// WithLogFlushTimeout bounds how long an exit event waits for the process
// output to be drained.
func WithLogFlushTimeout(d time.Duration) Option {
	return func(r *runtimeImpl) {
		if d > 0 {
			r.logFlushTimeout = d
		}
	}
}

// WithRuntimeLogger sets the logger handed to watchers.
func WithRuntimeLogger(logger logrus.FieldLogger) Option {
	return func(r *runtimeImpl) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type runtimeImpl struct {
	stopTimeout     time.Duration
	logFlushTimeout time.Duration
	watchOpts       []WatchOption
	logger          logrus.FieldLogger
}

// New constructs a runtime that executes processes on the local host.
func New(opts ...Option) runtime.Runtime {
	r := &runtimeImpl{
		stopTimeout:     defaultStopTimeout,
		logFlushTimeout: defaultLogFlushTimeout,
		logger:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *runtimeImpl) Start(ctx context.Context, spec runtime.Spec, events runtime.EventSink) (runtime.Instance, error) {
	if spec.Name == "" {
		return nil, &StartError{Name: "<unnamed>", Err: errors.New("name is required")}
	}
	if len(spec.Command) == 0 {
		return nil, &StartError{Name: spec.Name, Err: errors.New("command is required")}
	}
	if events == nil {
		return nil, &StartError{Name: spec.Name, Err: errors.New("event sink is required")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &StartError{Name: spec.Name, Err: err}
	}

	// exec.Cmd.Wait is never called: the watcher reaps the child itself.
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	if spec.Workdir != "" {
		cmd.Dir = spec.Workdir
	}
	cmd.Env = buildEnv(spec)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Name: spec.Name, Err: fmt.Errorf("stdout: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &StartError{Name: spec.Name, Err: fmt.Errorf("stderr: %w", err)}
	}

	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Name: spec.Name, Err: err}
	}

	inst := &processInstance{
		name:        spec.Name,
		pid:         runtime.Pid(cmd.Process.Pid),
		startedAt:   time.Now(),
		cmd:         cmd,
		events:      events,
		stopTimeout: r.stopTimeout,
		done:        make(chan struct{}),
	}

	var streams sync.WaitGroup
	streams.Add(2)
	go inst.streamLogs(stdout, runtime.LogSourceStdout, &streams)
	go inst.streamLogs(stderr, runtime.LogSourceStderr, &streams)

	signal, wait := NewExitHandle()
	sink := &flushingSink{next: events, streams: &streams, timeout: r.logFlushTimeout}
	opts := append([]WatchOption{WithLogger(r.logger)}, r.watchOpts...)
	inst.watcher = Watch(spec.Name, inst.pid, signal, sink, opts...)

	go inst.awaitExit(wait)

	return inst, nil
}

func buildEnv(spec runtime.Spec) []string {
	env := os.Environ()
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	env = append(env, EnvName+"="+spec.Name)
	if spec.Version != "" {
		env = append(env, EnvVersion+"="+spec.Version)
	}
	return env
}

type processInstance struct {
	name        string
	pid         runtime.Pid
	startedAt   time.Time
	cmd         *exec.Cmd
	events      runtime.EventSink
	stopTimeout time.Duration
	watcher     *Watcher

	done   chan struct{}
	status runtime.ExitStatus
	err    error
}

func (p *processInstance) Name() string { return p.name }

func (p *processInstance) Pid() runtime.Pid { return p.pid }

func (p *processInstance) StartedAt() time.Time { return p.startedAt }

func (p *processInstance) Wait(ctx context.Context) (runtime.ExitStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return runtime.ExitStatus{}, ctx.Err()
	case <-p.done:
		return p.status, p.err
	}
}

func (p *processInstance) awaitExit(wait *ExitWait) {
	status, err := wait.Receive(context.Background())
	if errors.Is(err, ErrExitNotObserved) {
		<-p.watcher.Done()
		if werr := p.watcher.Err(); werr != nil {
			err = fmt.Errorf("%w: %w", err, werr)
		}
	}
	p.status, p.err = status, err
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Release()
	}
	close(p.done)
}

// exited reports whether the child has been reaped, which may be before
// Wait observes it.
func (p *processInstance) exited() bool {
	if p.watcher != nil && p.watcher.Reaped() {
		return true
	}
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *processInstance) streamLogs(r io.ReadCloser, source string, streams *sync.WaitGroup) {
	defer streams.Done()
	defer r.Close()

	sinkGone := false
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		if sinkGone {
			continue
		}
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		evt := runtime.Event{
			Timestamp: time.Now(),
			Kind:      runtime.EventKindLog,
			Name:      p.name,
			Pid:       p.pid,
			Message:   line,
			Source:    source,
		}
		if err := p.events.Send(evt); err != nil {
			// Keep draining so the child never blocks on a full pipe.
			sinkGone = true
		}
	}
	// Oversized lines stop the scanner; discard the rest so the child
	// never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}
