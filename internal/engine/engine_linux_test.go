//go:build linux

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Paintersrp/corral/internal/runtime"
	"github.com/Paintersrp/corral/internal/runtime/process"
)

func TestEngineReapsRealProcess(t *testing.T) {
	e := New(process.New(process.WithRuntimeLogger(quietLogger())), NewBus(16), WithLogger(quietLogger()))
	events, unsubscribe := e.Subscribe(32)
	defer unsubscribe()
	runEngine(t, e)

	inst, err := e.Start(context.Background(), runtime.Spec{
		Name:    "worker",
		Version: "2.0.0",
		Command: []string{"/bin/sh", "-c", "echo working; exit 4"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// The per-process handle resolves independently of the event loop.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := inst.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if status != runtime.Exited(4) {
		t.Fatalf("unexpected status %v", status)
	}

	exit := nextEvent(t, events, runtime.EventKindExit)
	if exit.Name != "worker" || exit.Pid != inst.Pid() || exit.Status != runtime.Exited(4) {
		t.Fatalf("unexpected exit event %+v", exit)
	}

	state := e.States()[0]
	if state.Running || state.Status != runtime.Exited(4) {
		t.Fatalf("unexpected state %+v", state)
	}
}
