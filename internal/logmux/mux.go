package logmux

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/corral/internal/metrics"
	"github.com/Paintersrp/corral/internal/runtime"
)

// Mux fans in runtime notifications and delivers them via a bounded channel.
// Lifecycle events (started, exit, watch_failed) are always delivered. When
// the consumer cannot keep up, process output lines are dropped instead and
// a synthesized log event reports how many were discarded.
type Mux struct {
	out chan runtime.Event

	mu     sync.Mutex
	drops  map[string]dropRecord
	inputs sync.WaitGroup
}

type dropRecord struct {
	count int
	pid   runtime.Pid
}

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int) *Mux {
	if size <= 0 {
		size = 1
	}
	return &Mux{
		out:   make(chan runtime.Event, size),
		drops: make(map[string]dropRecord),
	}
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan runtime.Event {
	return m.out
}

// Add registers a new source channel. The mux consumes it until it is
// closed.
func (m *Mux) Add(source <-chan runtime.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			m.deliver(normalize(evt))
		}
	}()
}

// Close waits for all sources to be drained, emits any pending drop counts,
// and closes the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	m.flushDrops()
	close(m.out)
}

func (m *Mux) deliver(evt runtime.Event) {
	if evt.Kind != runtime.EventKindLog {
		// The drop count must precede the lifecycle event it belongs to.
		if rec := m.takeDrops(evt.Name); rec.count != 0 {
			m.blockingSendDrops(evt.Name, rec)
		}
		m.out <- evt
		return
	}
	if !m.flushPending(evt.Name) {
		m.recordDrop(evt.Name, 1, evt.Pid)
		return
	}
	if m.trySend(evt) {
		return
	}
	m.recordDrop(evt.Name, 1, evt.Pid)
}

func (m *Mux) flushPending(name string) bool {
	rec := m.takeDrops(name)
	if rec.count == 0 {
		return true
	}
	if m.trySend(synthesizeDropEvent(name, rec)) {
		metrics.AddDroppedLogLines(name, rec.count)
		return true
	}
	m.recordDrop(name, rec.count, rec.pid)
	return false
}

func (m *Mux) takeDrops(name string) dropRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[name]
	if rec.count != 0 {
		delete(m.drops, name)
	}
	return rec
}

func (m *Mux) recordDrop(name string, count int, pid runtime.Pid) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[name]
	rec.count += count
	if pid != 0 {
		rec.pid = pid
	}
	m.drops[name] = rec
}

func (m *Mux) flushDrops() {
	m.mu.Lock()
	pending := m.drops
	m.drops = make(map[string]dropRecord)
	m.mu.Unlock()

	for name, rec := range pending {
		if rec.count == 0 {
			continue
		}
		m.blockingSendDrops(name, rec)
	}
}

func (m *Mux) blockingSendDrops(name string, rec dropRecord) {
	m.out <- synthesizeDropEvent(name, rec)
	metrics.AddDroppedLogLines(name, rec.count)
}

func (m *Mux) trySend(evt runtime.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func normalize(evt runtime.Event) runtime.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Source == "" {
		if evt.Kind == runtime.EventKindLog {
			evt.Source = runtime.LogSourceStdout
		} else {
			evt.Source = runtime.LogSourceSystem
		}
	}
	return evt
}

func synthesizeDropEvent(name string, rec dropRecord) runtime.Event {
	return runtime.Event{
		Timestamp: time.Now(),
		Kind:      runtime.EventKindLog,
		Name:      name,
		Pid:       rec.pid,
		Message:   fmt.Sprintf("warn: dropped=%d", rec.count),
		Source:    runtime.LogSourceSystem,
	}
}
