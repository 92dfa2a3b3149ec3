package wazero

import (
	"context"
	"fmt"
	"sort"

	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/domain/ports"
	scriptlog "github.com/deno-lib/oned/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

const (
	// DefaultModuleName is the import module name the guest uses for ops.
	DefaultModuleName = "oned"

	// DefaultMaxPayloadSize limits the auxiliary payload read from guest memory (1MB).
	DefaultMaxPayloadSize = 1 * 1024 * 1024

	// LogFunctionName is the host function that receives script log lines.
	LogFunctionName = "log"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives host-side diagnostics and script log lines.
	Logger *zap.Logger

	// ModuleName is the host module name (default: "oned").
	ModuleName string

	// CustomHandlers allows adding additional wazero-specific handlers that
	// don't fit the op signature.
	CustomHandlers []CustomHandler

	// MaxPayloadSize limits the size of auxiliary payloads read from guest memory.
	MaxPayloadSize uint32
}

// CustomHandler represents a custom wazero handler outside the op signature.
type CustomHandler struct {
	// Name is the exported function name.
	Name string

	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "oned").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		if name != "" {
			c.ModuleName = name
		}
	}
}

// WithMaxPayloadSize sets the maximum auxiliary payload size.
func WithMaxPayloadSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		if size > 0 {
			c.MaxPayloadSize = size
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Logger:         zap.NewNop(),
		ModuleName:     DefaultModuleName,
		MaxPayloadSize: DefaultMaxPayloadSize,
	}
}

// Slots are the op entry points exported to the guest.
type Slots struct {
	Sync  map[string]ports.SyncOpFunc
	Async map[string]ports.AsyncOpFunc

	// Schedule receives every PendingOp started by an async slot.
	Schedule func(ports.PendingOp)
}

// opParams is the guest signature of every op: control ptr/len, payload ptr/len.
var opParams = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}

// RegisterWithRuntime instantiates the host module exporting every slot plus
// the log function.
//
// Each sync slot is wrapped to:
//   - Read the control buffer and the optional payload from guest memory
//   - Invoke the slot
//   - Write the response record over the control buffer
//   - Return the response length
//
// Async slots are invoked the same way, hand their PendingOp to
// Slots.Schedule, and return 0.
//
// Example:
//
//	err := wazero.RegisterWithRuntime(ctx, runtime, slots,
//	    wazero.WithModuleName("oned"),
//	)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, slots Slots, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(slots.Async) > 0 && slots.Schedule == nil {
		return fmt.Errorf("async slots registered without a scheduler")
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	exported := make(map[string]bool)

	for _, name := range sortedKeys(slots.Sync) {
		fn := slots.Sync[name]
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handleSyncCall(ctx, mod, stack, name, fn, cfg.MaxPayloadSize)
			}), opParams, []api.ValueType{api.ValueTypeI32}).
			Export(name)
		exported[name] = true
	}

	for _, name := range sortedKeys(slots.Async) {
		if exported[name] {
			return fmt.Errorf("op %q registered as both sync and async", name)
		}
		fn := slots.Async[name]
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handleAsyncCall(ctx, mod, stack, name, fn, slots.Schedule, cfg.MaxPayloadSize)
			}), opParams, []api.ValueType{api.ValueTypeI32}).
			Export(name)
		exported[name] = true
	}

	handlers := append([]CustomHandler{logHandler(cfg.Logger)}, cfg.CustomHandlers...)
	for _, ch := range handlers {
		if exported[ch.Name] {
			return fmt.Errorf("host function %q is already exported", ch.Name)
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
		exported[ch.Name] = true
	}

	// Instantiate the host module
	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate host module %q: %w", cfg.ModuleName, err)
	}
	return nil
}

// handleSyncCall handles a synchronous op call from WASM.
// The response record overwrites the control buffer in place.
func handleSyncCall(ctx context.Context, mod api.Module, stack []uint64, name string, fn ports.SyncOpFunc, maxPayloadSize uint32) {
	ctrlPtr := api.DecodeU32(stack[0])
	control, payload := readOpArgs(mod, stack, name, maxPayloadSize)

	response := fn(ctx, control, payload)

	writeGuest(mod, ctrlPtr, response, name)
	stack[0] = api.EncodeU32(uint32(len(response))) //nolint:gosec // G115: response is one record
}

// handleAsyncCall handles an asynchronous op call from WASM.
func handleAsyncCall(ctx context.Context, mod api.Module, stack []uint64, name string, fn ports.AsyncOpFunc, schedule func(ports.PendingOp), maxPayloadSize uint32) {
	control, payload := readOpArgs(mod, stack, name, maxPayloadSize)

	schedule(fn(ctx, control, payload))
	stack[0] = 0
}

// readOpArgs reads the control buffer and the optional payload of an op call.
// The returned slices are views of guest memory.
func readOpArgs(mod api.Module, stack []uint64, name string, maxPayloadSize uint32) (control, payload []byte) {
	ctrlPtr, ctrlLen := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	zcPtr, zcLen := api.DecodeU32(stack[2]), api.DecodeU32(stack[3])

	control = readGuest(mod, ctrlPtr, ctrlLen, name)

	if zcLen == 0 {
		return control, nil
	}
	if zcLen > maxPayloadSize {
		panic(&errors.ContractError{
			Violation: errors.ViolationLength,
			Op:        name,
			Detail:    fmt.Sprintf("payload size %d exceeds maximum %d bytes", zcLen, maxPayloadSize),
		})
	}
	return control, readGuest(mod, zcPtr, zcLen, name)
}

// readGuest reads length bytes at ptr or panics with a memory violation.
func readGuest(mod api.Module, ptr, length uint32, name string) []byte {
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		panic(&errors.ContractError{
			Violation: errors.ViolationMemory,
			Op:        name,
			Detail:    fmt.Sprintf("read of %d bytes at %#x is out of range", length, ptr),
		})
	}
	return data
}

// writeGuest writes data at ptr or panics with a memory violation.
func writeGuest(mod api.Module, ptr uint32, data []byte, name string) {
	if !mod.Memory().Write(ptr, data) {
		panic(&errors.ContractError{
			Violation: errors.ViolationMemory,
			Op:        name,
			Detail:    fmt.Sprintf("write of %d bytes at %#x is out of range", len(data), ptr),
		})
	}
}

// logHandler exports log(ptr, len), writing one script log line. The line is
// plain text or a JSON scriptlog.ScriptMessage.
func logHandler(logger *zap.Logger) CustomHandler {
	scriptLogger := logger.Named("script")
	return CustomHandler{
		Name: LogFunctionName,
		Handler: func(ctx context.Context, mod api.Module, stack []uint64) {
			msg := readGuest(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), LogFunctionName)
			scriptlog.DecodeScriptMessage(msg).Write(scriptLogger, zap.String("script", GetScriptName(ctx, mod)))
		},
		ParamTypes:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		ResultTypes: []api.ValueType{},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
