package hostfuncs

import (
	"fmt"
	"sort"

	"github.com/deno-lib/oned/domain/ports"
	"github.com/deno-lib/oned/state"
)

// OpRegistry is an immutable collection of named ops.
// Once created via NewRegistry, ops cannot be added or removed.
type OpRegistry struct {
	ops   map[string]Op
	names []string // sorted for consistent iteration
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	ops        map[string]Op
	middleware []Middleware
	errors     []error
}

// RegistryOption is a functional option for configuring an OpRegistry.
type RegistryOption func(*registryBuilder)

// NewRegistry creates an immutable OpRegistry with the given options.
// Returns an error if any op name is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware()),
//	    WithBundle(ProcessBundle()),
//	    WithSyncOp("ping", ping),
//	)
func NewRegistry(opts ...RegistryOption) (*OpRegistry, error) {
	b := &registryBuilder{
		ops: make(map[string]Op),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.ops))
	for name := range b.ops {
		names = append(names, name)
	}
	sort.Strings(names)

	// First middleware wraps outermost.
	wrapped := make(map[string]Op, len(b.ops))
	for name, op := range b.ops {
		for i := len(b.middleware) - 1; i >= 0; i-- {
			switch op.Kind {
			case KindSync:
				op.Sync = b.middleware[i].WrapSync(name, op.Sync)
			case KindAsync:
				op.Async = b.middleware[i].WrapAsync(name, op.Async)
			}
		}
		wrapped[name] = op
	}

	return &OpRegistry{
		ops:   wrapped,
		names: names,
	}, nil
}

// Lookup returns the op registered under name, with middleware applied.
func (r *OpRegistry) Lookup(name string) (Op, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// Has returns true if an op with the given name is registered.
func (r *OpRegistry) Has(name string) bool {
	_, ok := r.ops[name]
	return ok
}

// Names returns a sorted list of all registered op names.
func (r *OpRegistry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

// Ops returns every registered op in name order.
func (r *OpRegistry) Ops() []Op {
	result := make([]Op, 0, len(r.names))
	for _, name := range r.names {
		result = append(result, r.ops[name])
	}
	return result
}

// Bind registers every op with the engine, each slot closing over st.
// This is the dispatch bridge: see SyncSlot and AsyncSlot.
func (r *OpRegistry) Bind(eng ports.Engine, st *state.State) error {
	for _, name := range r.names {
		op := r.ops[name]

		var err error
		switch op.Kind {
		case KindSync:
			err = eng.RegisterSyncOp(name, SyncSlot(name, st, op.Sync))
		case KindAsync:
			err = eng.RegisterAsyncOp(name, AsyncSlot(name, st, op.Async))
		}
		if err != nil {
			return fmt.Errorf("bind op %q: %w", name, err)
		}
	}
	return nil
}

// addOp registers op under its name.
func (b *registryBuilder) addOp(op Op) error {
	if op.Name == "" {
		return fmt.Errorf("op name cannot be empty")
	}
	if _, exists := b.ops[op.Name]; exists {
		return fmt.Errorf("duplicate op name: %q", op.Name)
	}
	switch op.Kind {
	case KindSync:
		if op.Sync == nil {
			return fmt.Errorf("sync op %q has no handler", op.Name)
		}
	case KindAsync:
		if op.Async == nil {
			return fmt.Errorf("async op %q has no handler", op.Name)
		}
	default:
		return fmt.Errorf("op %q has unknown kind %d", op.Name, op.Kind)
	}
	b.ops[op.Name] = op
	return nil
}

// WithOp registers a prebuilt Op.
func WithOp(op Op) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addOp(op); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithSyncOp registers a synchronous handler under name.
func WithSyncOp(name string, h SyncHandler) RegistryOption {
	return WithOp(SyncOp(name, h))
}

// WithAsyncOp registers an asynchronous handler under name.
func WithAsyncOp(name string, h AsyncHandler) RegistryOption {
	return WithOp(AsyncOp(name, h))
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
