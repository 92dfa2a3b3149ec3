package hostfuncs

import (
	"context"

	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/state"
	"go.uber.org/zap"
)

// Middleware wraps op handlers to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware interface {
	WrapSync(name string, next SyncHandler) SyncHandler
	WrapAsync(name string, next AsyncHandler) AsyncHandler
}

// recoverHandlerPanic turns a recovered handler panic into a handler error.
// Contract violations are re-raised: they are never a handler failure.
func recoverHandlerPanic(name string, r any) error {
	if ce, ok := r.(*errors.ContractError); ok {
		panic(ce)
	}
	return &errors.PanicError{Op: name, Value: r}
}

type panicRecovery struct{}

// PanicRecoveryMiddleware returns a middleware that catches handler panics,
// including panics raised while polling a Future, and reports them as
// handler failures so they collapse to -1 instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return panicRecovery{}
}

func (panicRecovery) WrapSync(name string, next SyncHandler) SyncHandler {
	return func(ctx context.Context, st *state.State, rid uint32, zeroCopy []byte) (v uint32, err error) {
		defer func() {
			if r := recover(); r != nil {
				v, err = 0, recoverHandlerPanic(name, r)
			}
		}()
		return next(ctx, st, rid, zeroCopy)
	}
}

func (panicRecovery) WrapAsync(name string, next AsyncHandler) AsyncHandler {
	return func(ctx context.Context, st *state.State, rid uint32, zeroCopy []byte) (fut Future) {
		defer func() {
			if r := recover(); r != nil {
				fut = Fail(recoverHandlerPanic(name, r))
			}
		}()
		inner := next(ctx, st, rid, zeroCopy)
		if inner == nil {
			return nil
		}
		return FutureFunc(func(ctx context.Context) (v uint32, ready bool, err error) {
			defer func() {
				if r := recover(); r != nil {
					v, ready, err = 0, true, recoverHandlerPanic(name, r)
				}
			}()
			return inner.Poll(ctx)
		})
	}
}

type logging struct {
	logger *zap.Logger
}

// LoggingMiddleware returns a middleware that logs op invocations and
// outcomes at debug level, and failures at warn level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logging{logger: logger}
}

func (l logging) with(ctx context.Context, name string, rid uint32) *zap.Logger {
	fields := []zap.Field{zap.String("op", name), zap.Uint32("rid", rid)}
	if oc, ok := OpContextFrom(ctx); ok {
		fields = append(fields, zap.Uint32("promise_id", oc.Record().PromiseID))
	}
	return l.logger.With(fields...)
}

func (l logging) WrapSync(name string, next SyncHandler) SyncHandler {
	return func(ctx context.Context, st *state.State, rid uint32, zeroCopy []byte) (uint32, error) {
		log := l.with(ctx, name, rid)
		log.Debug("invoking op", zap.Int("payload_len", len(zeroCopy)))

		v, err := next(ctx, st, rid, zeroCopy)
		if err != nil {
			log.Warn("op failed", zap.Error(err))
		} else {
			log.Debug("op completed", zap.Uint32("value", v))
		}
		return v, err
	}
}

func (l logging) WrapAsync(name string, next AsyncHandler) AsyncHandler {
	return func(ctx context.Context, st *state.State, rid uint32, zeroCopy []byte) Future {
		log := l.with(ctx, name, rid)
		log.Debug("starting op", zap.Int("payload_len", len(zeroCopy)))

		inner := next(ctx, st, rid, zeroCopy)
		if inner == nil {
			return nil
		}
		return FutureFunc(func(ctx context.Context) (uint32, bool, error) {
			v, ready, err := inner.Poll(ctx)
			switch {
			case !ready:
			case err != nil:
				log.Warn("op failed", zap.Error(err))
			default:
				log.Debug("op completed", zap.Uint32("value", v))
			}
			return v, ready, err
		})
	}
}
