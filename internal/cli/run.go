package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/corral/internal/api"
	httpapi "github.com/Paintersrp/corral/internal/api/http"
	"github.com/Paintersrp/corral/internal/cliutil"
	"github.com/Paintersrp/corral/internal/config"
	"github.com/Paintersrp/corral/internal/engine"
	"github.com/Paintersrp/corral/internal/logmux"
	"github.com/Paintersrp/corral/internal/runtime"
	_ "github.com/Paintersrp/corral/internal/runtime/process"
)

const (
	processRuntime      = "process"
	runningPollInterval = 250 * time.Millisecond
	shutdownGrace       = 5 * time.Second
)

func newRunCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start every configured process and stream its events until all have exited",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.run(cmd)
		},
	}
	flags := cmd.Flags()
	flags.String(keyListen, "", "Serve process status and Prometheus metrics on this address; overrides runtime.listen")
	flags.String(keyFailurePolicy, "", "Watcher failure policy (abort or isolate); overrides runtime.failurePolicy")
	for _, key := range []string{keyListen, keyFailurePolicy} {
		if err := ctx.settings.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", key, err))
		}
	}
	return cmd
}

func (c *context) run(cmd *cobra.Command) error {
	file, err := config.Load(c.configPath())
	if err != nil {
		return err
	}
	if value, ok := c.override(keyListen); ok {
		file.Runtime.Listen = value
	}
	if value, ok := c.override(keyFailurePolicy); ok {
		file.Runtime.FailurePolicy = value
	}
	if _, ok := c.override(keyLogLevel); !ok {
		if err := c.setLogLevel(file.Runtime.LogLevel); err != nil {
			return err
		}
	}

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = stdcontext.Background()
	}
	logger := c.logger.WithField("config", file.Source)

	registry, err := runtime.NewRegistry(runtime.Options{
		StopTimeout:   file.Runtime.StopTimeout.Duration,
		FailurePolicy: file.Runtime.FailurePolicy,
		Logger:        c.logger,
	})
	if err != nil {
		return err
	}
	rt, err := registry.Lookup(processRuntime)
	if err != nil {
		return err
	}
	bus := engine.NewBus(file.Runtime.EventBuffer)
	eng := engine.New(rt, bus, engine.WithLogger(c.logger))

	enc := json.NewEncoder(cmd.OutOrStdout())
	stderr := cmd.ErrOrStderr()

	// Lifecycle events are never lost on the way to stdout; output lines
	// are shed with a drop report when stdout falls behind.
	subscription, release := eng.Subscribe(file.Runtime.EventBuffer)
	mux := logmux.New(file.Runtime.EventBuffer)
	mux.Add(subscription)
	var flushOnce sync.Once
	flush := func() {
		flushOnce.Do(func() {
			release()
			go mux.Close()
			for evt := range mux.Output() {
				cliutil.EncodeEvent(enc, stderr, evt)
			}
		})
	}

	loopCtx, stopLoop := stdcontext.WithCancel(stdcontext.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- eng.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-loopDone
	}()
	defer flush()

	if addr := file.Runtime.Listen; addr != "" {
		stopServer, err := serveControl(addr, eng, logger)
		if err != nil {
			return err
		}
		defer stopServer()
	}

	for _, proc := range file.Processes {
		if _, err := eng.Start(baseCtx, proc.Spec()); err != nil {
			stopErr := c.stopAll(eng, file.Runtime.StopTimeout.Duration)
			return errors.Join(fmt.Errorf("start %s: %w", proc.Name, err), stopErr)
		}
	}

	ticker := time.NewTicker(runningPollInterval)
	defer ticker.Stop()

	var (
		stopErr  error
		shutdown = baseCtx.Done()
		deadline <-chan time.Time
	)
	for eng.Running() > 0 {
		select {
		case <-shutdown:
			logger.Info("shutdown requested, stopping processes")
			shutdown = nil
			stopErr = c.stopAll(eng, file.Runtime.StopTimeout.Duration)
			deadline = time.After(shutdownGrace)
		case <-deadline:
			logger.WithField("running", eng.Running()).Warn("processes still running after shutdown")
			flush()
			return errors.Join(stopErr, errors.New("processes still running after shutdown"))
		case evt := <-mux.Output():
			cliutil.EncodeEvent(enc, stderr, evt)
		case <-ticker.C:
		}
	}
	flush()
	// Every watcher has published, so nothing sends on the bus anymore.
	bus.Close()

	if stopErr != nil {
		return stopErr
	}
	return watchFailures(eng.States())
}

func (c *context) stopAll(eng *engine.Engine, stopTimeout time.Duration) error {
	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), stopTimeout+shutdownGrace)
	defer cancel()
	return eng.StopAll(ctx)
}

func watchFailures(states []engine.State) error {
	var errs []error
	for _, state := range states {
		if state.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", state.Name, state.Err))
		}
	}
	return errors.Join(errs...)
}

func serveControl(addr string, eng *engine.Engine, logger logrus.FieldLogger) (func(), error) {
	server, err := httpapi.NewServer(httpapi.Config{
		Addr:       addr,
		Controller: api.NewEngineController(eng),
	})
	if err != nil {
		return nil, err
	}
	if err := server.Listen(); err != nil {
		return nil, err
	}

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Run(ctx); err != nil {
			logger.WithError(err).Error("control server failed")
		}
	}()
	logger.WithField("addr", server.Addr()).Info("serving status and metrics")

	return func() {
		cancel()
		<-done
	}, nil
}
