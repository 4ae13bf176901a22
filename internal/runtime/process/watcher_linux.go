//go:build linux

package process

import (
	"errors"
	"fmt"
	stdruntime "runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/corral/internal/metrics"
	"github.com/Paintersrp/corral/internal/runtime"
)

// Watcher reaps a single process and publishes its exit exactly once.
type Watcher struct {
	name   string
	pid    runtime.Pid
	signal *ExitSignal
	events runtime.EventSink

	waiter Waiter
	policy FailurePolicy
	abort  func(error)
	logger logrus.FieldLogger

	reaped atomic.Bool
	done   chan struct{}
	err    error
}

// WatchOption customises a Watcher.
type WatchOption func(*Watcher)

// WithWaiter replaces the wait4 implementation.
func WithWaiter(waiter Waiter) WatchOption {
	return func(w *Watcher) {
		if waiter != nil {
			w.waiter = waiter
		}
	}
}

// WithFailurePolicy selects how fatal conditions are handled.
func WithFailurePolicy(policy FailurePolicy) WatchOption {
	return func(w *Watcher) {
		if policy != "" {
			w.policy = policy
		}
	}
}

// WithAbort replaces the function invoked under FailurePolicyAbort. The
// default panics with the error.
func WithAbort(abort func(error)) WatchOption {
	return func(w *Watcher) {
		if abort != nil {
			w.abort = abort
		}
	}
}

// WithLogger sets the logger used for wait results and failures.
func WithLogger(logger logrus.FieldLogger) WatchOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watch starts reaping pid. The watcher takes ownership of signal and sends
// on it before it publishes the exit event on events. It runs until the
// process has been reaped or a fatal condition is hit; there is no way to
// cancel it other than signalling the process.
func Watch(name string, pid runtime.Pid, signal *ExitSignal, events runtime.EventSink, opts ...WatchOption) *Watcher {
	w := &Watcher{
		name:   name,
		pid:    pid,
		signal: signal,
		events: events,
		waiter: unixWaiter{},
		policy: FailurePolicyAbort,
		abort:  abortPanic,
		logger: logrus.StandardLogger(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithFields(logrus.Fields{"process": name, "pid": pid})

	go w.run()
	return w
}

func abortPanic(err error) {
	panic(err)
}

// Done is closed once the watcher has finished.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Reaped reports whether wait4 has collected the process. It turns true
// before the exit is published, so once it does the pid must not be
// signalled again.
func (w *Watcher) Reaped() bool {
	return w.reaped.Load()
}

// Err returns the fatal error that ended the watcher, if any. It is only
// meaningful after Done is closed.
func (w *Watcher) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

func (w *Watcher) run() {
	defer close(w.done)
	defer w.signal.Close()

	// wait4 parks the whole thread; keep it off the threads other goroutines
	// are scheduled on.
	stdruntime.LockOSThread()
	defer stdruntime.UnlockOSThread()

	status, err := w.reap()
	if err != nil {
		w.fail(err, "wait")
		return
	}
	w.reaped.Store(true)

	w.signal.Send(status)

	if err := w.events.Send(runtime.ExitEvent(w.name, w.pid, status)); err != nil {
		w.fail(&DeliveryError{Name: w.name, Err: err}, "delivery")
		return
	}
	w.logger.WithField("status", status).Debug("process reaped")
}

func (w *Watcher) reap() (runtime.ExitStatus, error) {
	for {
		wpid, status, err := w.waiter.Wait4(int(w.pid))
		result := classify(wpid, status, err)
		entry := w.logger.WithFields(logrus.Fields{
			"wpid":    wpid,
			"status":  fmt.Sprintf("%#x", uint32(status)),
			"verdict": result.verdict,
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Debug("wait4 returned")

		switch result.verdict {
		case verdictExited, verdictSignaled:
			return result.status, nil
		case verdictRetry:
			metrics.IncrementWaitRetry(result.reason)
			continue
		default:
			return runtime.ExitStatus{}, &WaitError{Pid: w.pid, Err: result.err}
		}
	}
}

func (w *Watcher) fail(err error, reason string) {
	w.err = err
	metrics.IncrementWatcherFailure(w.name, reason)
	w.logger.WithError(err).WithField("policy", w.policy).Error("process watcher failed")

	if w.policy != FailurePolicyIsolate {
		w.abort(err)
		return
	}

	w.signal.Close()
	var delivery *DeliveryError
	if errors.As(err, &delivery) {
		return
	}
	evt := runtime.Event{
		Timestamp: time.Now(),
		Kind:      runtime.EventKindWatchFailed,
		Name:      w.name,
		Pid:       w.pid,
		Err:       err,
		Source:    runtime.LogSourceSystem,
	}
	if sendErr := w.events.Send(evt); sendErr != nil {
		w.logger.WithError(sendErr).Error("event sink rejected watch failure")
	}
}
