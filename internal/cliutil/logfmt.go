package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Paintersrp/corral/internal/runtime"
)

// StatusRecord is the JSON form of a termination outcome.
type StatusRecord struct {
	Kind   string `json:"kind"`
	Code   *int   `json:"code,omitempty"`
	Signal *int   `json:"signal,omitempty"`
}

// Record represents a runtime notification ready for JSON encoding.
type Record struct {
	Timestamp time.Time     `json:"ts"`
	Kind      string        `json:"kind"`
	Process   string        `json:"process"`
	Pid       int           `json:"pid,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"msg,omitempty"`
	Source    string        `json:"source"`
	Status    *StatusRecord `json:"status,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// NewRecord converts a runtime event into a structured record.
func NewRecord(event runtime.Event) Record {
	source := event.Source
	if source == "" {
		source = runtime.LogSourceSystem
	}
	record := Record{
		Timestamp: event.Timestamp,
		Kind:      string(event.Kind),
		Process:   event.Name,
		Pid:       int(event.Pid),
		Source:    source,
		Message:   RedactSecrets(event.Message),
	}
	if event.Err != nil {
		record.Error = event.Err.Error()
	}

	switch event.Kind {
	case runtime.EventKindExit:
		record.Status = newStatusRecord(event.Status)
		if record.Message == "" {
			record.Message = event.Status.String()
		}
		record.Level = "info"
		if !event.Status.Success() {
			record.Level = "warn"
		}
	case runtime.EventKindWatchFailed:
		record.Level = "error"
	case runtime.EventKindLog:
		record.Level = inferLogLevel(record.Message)
		if record.Level == "" {
			record.Level = "info"
			if source == runtime.LogSourceStderr {
				record.Level = "warn"
			}
		}
	default:
		record.Level = "info"
	}
	return record
}

func newStatusRecord(status runtime.ExitStatus) *StatusRecord {
	if !status.Valid() {
		return nil
	}
	rec := &StatusRecord{Kind: string(status.Kind)}
	switch status.Kind {
	case runtime.ExitKindExited:
		code := int(status.Code)
		rec.Code = &code
	case runtime.ExitKindSignaled:
		sig := int(status.Signal)
		rec.Signal = &sig
	}
	return rec
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	return strings.ToLower(matches[1])
}

const redactedPlaceholder = "[redacted]"

var secretKeyPattern = regexp.MustCompile(`(?i)\b([A-Z0-9_]*(?:PASSWORD|SECRET|TOKEN|API_KEY))\b(\s*[:=]\s*)(["']?)([^"'\s]+)(["']?)`)

// RedactSecrets masks values assigned to secret-looking keys in process
// output before it is printed.
func RedactSecrets(message string) string {
	if message == "" {
		return message
	}
	return secretKeyPattern.ReplaceAllString(message, "$1$2$3"+redactedPlaceholder+"$5")
}

// EncodeEvent encodes an event as one JSON line, reporting errors to stderr.
func EncodeEvent(enc *json.Encoder, stderr io.Writer, event runtime.Event) {
	if enc == nil {
		return
	}
	record := NewRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode event: %v\n", err)
	}
}
