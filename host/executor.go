package host

import (
	"context"
	"fmt"

	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/domain/ports"
	infrawazero "github.com/deno-lib/oned/infrastructure/wazero"
	"github.com/deno-lib/oned/state"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Executor runs one guest module and the async ops it issues.
// It is not safe for concurrent use: a single driver goroutine owns it.
type Executor struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	guest    api.Module
	alloc    api.Function
	recv     api.Function
	logger   *zap.Logger
	err      error
	sync     map[string]ports.SyncOpFunc
	async    map[string]ports.AsyncOpFunc
	pending  []ports.PendingOp
	cfg      executorConfig
	started  bool
	mainDone bool
}

var _ ports.Engine = (*Executor)(nil)

// NewExecutor compiles wasm and prepares an executor for it. The guest is
// not instantiated until the first Poll, so ops may be registered until then.
func NewExecutor(ctx context.Context, wasm []byte, opts ...Option) (*Executor, error) {
	cfg := executorConfig{
		logger:         zap.NewNop(),
		moduleName:     infrawazero.DefaultModuleName,
		scriptName:     DefaultScriptName,
		maxPayloadSize: infrawazero.DefaultMaxPayloadSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, &errors.EngineError{Stage: "compile", Err: err}
	}

	e := &Executor{
		runtime:  rt,
		compiled: compiled,
		logger:   cfg.logger.With(zap.String("script", cfg.scriptName)),
		sync:     make(map[string]ports.SyncOpFunc),
		async:    make(map[string]ports.AsyncOpFunc),
		cfg:      cfg,
	}

	if cfg.registry != nil {
		if cfg.state == nil {
			cfg.state = state.New(state.WithLogger(cfg.logger))
		}
		if err := cfg.registry.Bind(e, cfg.state); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("failed to bind ops: %w", err)
		}
	}
	return e, nil
}

// RegisterSyncOp implements ports.Engine.
func (e *Executor) RegisterSyncOp(name string, fn ports.SyncOpFunc) error {
	if err := e.checkRegistration(name); err != nil {
		return err
	}
	e.sync[name] = fn
	return nil
}

// RegisterAsyncOp implements ports.Engine.
func (e *Executor) RegisterAsyncOp(name string, fn ports.AsyncOpFunc) error {
	if err := e.checkRegistration(name); err != nil {
		return err
	}
	e.async[name] = fn
	return nil
}

func (e *Executor) checkRegistration(name string) error {
	if e.started {
		return fmt.Errorf("cannot register op %q: executor already started", name)
	}
	if name == "" {
		return fmt.Errorf("op name cannot be empty")
	}
	_, isSync := e.sync[name]
	_, isAsync := e.async[name]
	if isSync || isAsync {
		return fmt.Errorf("op %q is already registered", name)
	}
	return nil
}

// Poll implements ports.Engine. The first call instantiates the guest and
// runs its main export; every call then polls each pending op once in issue
// order and delivers the ready responses. done is true once main has
// returned and no op is pending.
//
// Errors are terminal: once Poll fails, every later call returns the same
// error. A canceled ctx is reported without failing the engine.
func (e *Executor) Poll(ctx context.Context) (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	done, err := e.poll(infrawazero.WithScriptName(ctx, e.cfg.scriptName))
	if err != nil {
		e.err = err
		e.logger.Error("engine failed", zap.Error(err))
		return false, err
	}
	return done, nil
}

func (e *Executor) poll(ctx context.Context) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.EngineError{Stage: "poll", Err: recoveredError(r)}
		}
	}()

	if !e.started {
		if err := e.start(ctx); err != nil {
			return false, err
		}
	}
	if err := e.tick(ctx); err != nil {
		return false, err
	}
	return e.mainDone && len(e.pending) == 0, nil
}

// start instantiates WASI, the host module and the guest, then runs main.
func (e *Executor) start(ctx context.Context) error {
	e.started = true

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		return &errors.EngineError{Stage: "instantiate", Err: err}
	}

	slots := infrawazero.Slots{Sync: e.sync, Async: e.async, Schedule: e.schedule}
	if err := infrawazero.RegisterWithRuntime(ctx, e.runtime, slots,
		infrawazero.WithModuleName(e.cfg.moduleName),
		infrawazero.WithMaxPayloadSize(e.cfg.maxPayloadSize),
		infrawazero.WithLogger(e.cfg.logger),
	); err != nil {
		return &errors.EngineError{Stage: "instantiate", Err: err}
	}

	guest, err := e.runtime.InstantiateModule(ctx, e.compiled,
		wazero.NewModuleConfig().WithName(e.cfg.scriptName).WithStartFunctions())
	if err != nil {
		return &errors.EngineError{Stage: "instantiate", Err: err}
	}
	e.guest = guest
	e.alloc = guest.ExportedFunction(ExportAlloc)
	e.recv = guest.ExportedFunction(ExportRecv)

	mainFn := guest.ExportedFunction(ExportMain)
	if mainFn == nil {
		return &errors.EngineError{Stage: "instantiate", Err: fmt.Errorf("guest does not export %q", ExportMain)}
	}

	e.logger.Debug("running guest main")
	if _, err := mainFn.Call(ctx); err != nil {
		return &errors.EngineError{Stage: ExportMain, Err: err}
	}
	e.mainDone = true
	e.logger.Debug("guest main returned", zap.Int("pending", len(e.pending)))
	return nil
}

// tick polls the ops pending at entry once each. Ops issued while
// delivering are kept for the next tick.
func (e *Executor) tick(ctx context.Context) error {
	batch := e.pending
	e.pending = nil

	var kept []ports.PendingOp
	for _, p := range batch {
		response, ready := p.Poll(ctx)
		if !ready {
			kept = append(kept, p)
			continue
		}
		if err := e.deliver(ctx, response); err != nil {
			return err
		}
	}

	e.pending = append(kept, e.pending...)
	return nil
}

func (e *Executor) schedule(p ports.PendingOp) {
	e.pending = append(e.pending, p)
}

// Pending returns the number of async ops awaiting completion.
func (e *Executor) Pending() int {
	return len(e.pending)
}

// Err returns the terminal error, if any.
func (e *Executor) Err() error {
	return e.err
}

// Close releases the runtime. Pending ops are abandoned.
func (e *Executor) Close(ctx context.Context) error {
	e.pending = nil
	return e.runtime.Close(ctx)
}
