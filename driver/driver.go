// Package driver runs a hosted engine to completion.
//
// A Driver owns the shared state, the op registry and the executor. Poll
// advances everything by one tick; Run keeps polling until the script and
// every async op it issued are finished, sleeping between ticks until a
// process exits or the poll interval elapses.
package driver

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/deno-lib/oned/domain/ports"
	"github.com/deno-lib/oned/host"
	"github.com/deno-lib/oned/hostfuncs"
	"github.com/deno-lib/oned/infrastructure/process"
	"github.com/deno-lib/oned/state"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPollInterval bounds how long Run sleeps between ticks without a wake-up.
const DefaultPollInterval = 100 * time.Millisecond

// Driver is a poll-able unit wrapping an engine, its state and its ops.
// It is not safe for concurrent use.
type Driver struct {
	executor     *host.Executor
	state        *state.State
	registry     *hostfuncs.OpRegistry
	logger       *zap.Logger
	id           string
	pollInterval time.Duration
}

// New wires state, registry and executor. Without options it runs the
// embedded startup script with the process ops and an os/exec launcher.
func New(ctx context.Context, opts ...Option) (*Driver, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.NewString()
	logger := cfg.logger.With(zap.String("run_id", id))

	launcher := cfg.launcher
	if launcher == nil {
		launcher = process.NewLauncher(append([]process.Option{process.WithLogger(logger)}, cfg.processOpts...)...)
	}
	st := state.New(state.WithLauncher(launcher), state.WithLogger(logger))

	registry := cfg.registry
	if registry == nil {
		var err error
		if registry, err = DefaultRegistry(logger, cfg.extraOps...); err != nil {
			return nil, err
		}
	}

	wasm := cfg.wasm
	if wasm == nil {
		var err error
		if wasm, err = host.DefaultScript(); err != nil {
			return nil, err
		}
	}

	executor, err := host.NewExecutor(ctx, wasm,
		host.WithOps(registry, st),
		host.WithLogger(logger),
		host.WithModuleName(cfg.moduleName),
		host.WithScriptName(cfg.scriptName),
		host.WithMaxPayloadSize(cfg.maxPayloadSize),
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("driver created", zap.Strings("ops", registry.Names()), zap.String("script", cfg.scriptName))

	return &Driver{
		executor:     executor,
		state:        st,
		registry:     registry,
		logger:       logger,
		id:           id,
		pollInterval: cfg.pollInterval,
	}, nil
}

// DefaultRegistry builds the registry a Driver uses unless WithRegistry is
// given: panic recovery and logging middleware around the process ops, plus
// opts.
func DefaultRegistry(logger *zap.Logger, opts ...hostfuncs.RegistryOption) (*hostfuncs.OpRegistry, error) {
	regOpts := append([]hostfuncs.RegistryOption{
		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware(), hostfuncs.LoggingMiddleware(logger)),
		hostfuncs.WithBundle(hostfuncs.ProcessBundle()),
	}, opts...)

	registry, err := hostfuncs.NewRegistry(regOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build op registry: %w", err)
	}
	return registry, nil
}

// Poll runs one scheduling tick. done is true once the script has returned
// and no async op is pending. Engine errors are terminal. Killed processes
// that have exited are released first.
func (d *Driver) Poll(ctx context.Context) (bool, error) {
	if n := d.state.Reap(); n > 0 {
		d.logger.Debug("released killed processes", zap.Int("count", n))
	}
	return d.executor.Poll(ctx)
}

// Run polls until the engine is done, the engine fails or ctx ends.
// Between ticks it waits for a process exit, the poll interval or ctx.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		done, err := d.Poll(ctx)
		if err != nil {
			return err
		}
		if done {
			d.logger.Info("run completed", zap.Duration("elapsed", time.Since(start)))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.state.Woken():
		case <-ticker.C:
		}
	}
}

// ID returns the run id attached to every log line of this driver.
func (d *Driver) ID() string {
	return d.id
}

// State returns the state shared by every op handler.
func (d *Driver) State() *state.State {
	return d.state
}

// Registry returns the bound op registry.
func (d *Driver) Registry() *hostfuncs.OpRegistry {
	return d.registry
}

// Pending returns the number of async ops awaiting completion.
func (d *Driver) Pending() int {
	return d.executor.Pending()
}

// Close tears down the engine. In-flight ops are abandoned and tracked
// processes are killed.
func (d *Driver) Close(ctx context.Context) error {
	d.state.Processes.Each(func(rid uint32, p ports.Process) bool {
		if err := p.Signal(syscall.SIGKILL); err != nil {
			d.logger.Debug("kill on close failed", zap.Uint32("rid", rid), zap.Error(err))
		}
		return true
	})
	return d.executor.Close(ctx)
}
