package runtime

import (
	"fmt"
	"time"
)

// EventKind tags the notifications exchanged with the central event loop.
type EventKind string

const (
	EventKindStarted     EventKind = "started"
	EventKindExit        EventKind = "exit"
	EventKindWatchFailed EventKind = "watch_failed"
	EventKindLog         EventKind = "log"
)

const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
	LogSourceSystem = "corral"
)

// Event is a single notification for the runtime's central event loop.
// Status is only meaningful for EventKindExit.
type Event struct {
	Timestamp time.Time
	Kind      EventKind
	Name      string
	Pid       Pid
	Status    ExitStatus
	Err       error
	Message   string
	Source    string
}

// ExitEvent builds the notification published when a process is reaped.
func ExitEvent(name string, pid Pid, status ExitStatus) Event {
	return Event{
		Timestamp: time.Now(),
		Kind:      EventKindExit,
		Name:      name,
		Pid:       pid,
		Status:    status,
		Source:    LogSourceSystem,
	}
}

func (e Event) String() string {
	switch e.Kind {
	case EventKindExit:
		return fmt.Sprintf("%s %s (pid %d) %s", e.Kind, e.Name, e.Pid, e.Status)
	case EventKindWatchFailed:
		return fmt.Sprintf("%s %s (pid %d): %v", e.Kind, e.Name, e.Pid, e.Err)
	default:
		return fmt.Sprintf("%s %s (pid %d) %s", e.Kind, e.Name, e.Pid, e.Message)
	}
}

// EventSink accepts notifications from any number of concurrent producers.
// Send only fails when the consumer is gone for good.
type EventSink interface {
	Send(evt Event) error
}
