package process

import (
	"sync"
	"time"

	"github.com/Paintersrp/corral/internal/runtime"
)

// defaultLogFlushTimeout bounds how long an exit event waits for the output
// streams of its process. A grandchild holding the pipes open must not hold
// the exit back forever.
const defaultLogFlushTimeout = time.Second

// flushingSink delays exit events until the process output has been drained
// so consumers see every log line before the exit.
type flushingSink struct {
	next    runtime.EventSink
	streams *sync.WaitGroup
	timeout time.Duration
}

func (s *flushingSink) Send(evt runtime.Event) error {
	if evt.Kind == runtime.EventKindExit {
		drained := make(chan struct{})
		go func() {
			s.streams.Wait()
			close(drained)
		}()
		timer := time.NewTimer(s.timeout)
		select {
		case <-drained:
		case <-timer.C:
		}
		timer.Stop()
	}
	return s.next.Send(evt)
}
