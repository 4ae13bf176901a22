package engine

import (
	"errors"
	"sync"

	"github.com/Paintersrp/corral/internal/runtime"
)

// DefaultBusSize is the number of events the bus buffers before producers
// block.
const DefaultBusSize = 256

// ErrBusClosed is returned to producers once the event loop has shut down.
var ErrBusClosed = errors.New("event bus closed")

// Bus is the many-producer, single-consumer channel feeding the central
// event loop. It is handed to every producer at construction time and is
// closed exactly once, when the runtime shuts down.
type Bus struct {
	events    chan runtime.Event
	closed    chan struct{}
	closeOnce sync.Once
}

var _ runtime.EventSink = (*Bus)(nil)

// NewBus constructs a bus buffering up to size events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBusSize
	}
	return &Bus{
		events: make(chan runtime.Event, size),
		closed: make(chan struct{}),
	}
}

// Send enqueues evt, blocking while the buffer is full. It fails only after
// Close.
func (b *Bus) Send(evt runtime.Event) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}
	select {
	case b.events <- evt:
		return nil
	case <-b.closed:
		return ErrBusClosed
	}
}

// Events returns the consumer side of the bus.
func (b *Bus) Events() <-chan runtime.Event {
	return b.events
}

// Done is closed when the bus is closed.
func (b *Bus) Done() <-chan struct{} {
	return b.closed
}

// Close rejects all further sends. Events already buffered stay readable.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
}
