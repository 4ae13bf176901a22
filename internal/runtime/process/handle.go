package process

import (
	"context"
	"errors"
	"sync"

	"github.com/Paintersrp/corral/internal/runtime"
)

// ErrExitNotObserved is returned by ExitWait.Receive when the signalling side
// was closed without delivering an outcome. It says nothing about the
// process itself.
var ErrExitNotObserved = errors.New("process exit not observed")

// ExitSignal is the sending half of an exit handle. It is owned by the
// watcher of a single process.
type ExitSignal struct {
	ch   chan<- runtime.ExitStatus
	once sync.Once
}

// ExitWait is the receiving half of an exit handle.
type ExitWait struct {
	ch <-chan runtime.ExitStatus
}

// NewExitHandle constructs a one-slot notification pair for a single process.
func NewExitHandle() (*ExitSignal, *ExitWait) {
	ch := make(chan runtime.ExitStatus, 1)
	return &ExitSignal{ch: ch}, &ExitWait{ch: ch}
}

// Send delivers status to the waiting side and reports whether it was the
// first delivery. It never blocks, whether or not anyone is still waiting.
func (s *ExitSignal) Send(status runtime.ExitStatus) bool {
	if s == nil {
		return false
	}
	sent := false
	s.once.Do(func() {
		s.ch <- status
		close(s.ch)
		sent = true
	})
	return sent
}

// Close releases the waiting side without a value. It is a no-op after Send.
func (s *ExitSignal) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.ch)
	})
}

// C exposes the underlying channel for use in select statements. The channel
// yields at most one value and is then closed.
func (w *ExitWait) C() <-chan runtime.ExitStatus {
	return w.ch
}

// Receive blocks until the outcome arrives, the signalling side is closed
// without one, or ctx is done. The outcome is handed out only once.
func (w *ExitWait) Receive(ctx context.Context) (runtime.ExitStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case status, ok := <-w.ch:
		if !ok {
			return runtime.ExitStatus{}, ErrExitNotObserved
		}
		return status, nil
	case <-ctx.Done():
		return runtime.ExitStatus{}, ctx.Err()
	}
}
