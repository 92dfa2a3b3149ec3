package host

import (
	"github.com/deno-lib/oned/hostfuncs"
	"github.com/deno-lib/oned/state"
	"go.uber.org/zap"
)

// Guest export names.
const (
	ExportMain  = "main"
	ExportAlloc = "alloc"
	ExportRecv  = "recv"
)

// DefaultScriptName names the guest module when no name is configured.
const DefaultScriptName = "main"

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

type executorConfig struct {
	logger         *zap.Logger
	registry       *hostfuncs.OpRegistry
	state          *state.State
	moduleName     string
	scriptName     string
	maxPayloadSize uint32
}

// WithOps binds every op of registry to the executor, sharing st.
func WithOps(registry *hostfuncs.OpRegistry, st *state.State) Option {
	return func(c *executorConfig) {
		c.registry = registry
		c.state = st
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *executorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithModuleName sets the host module name the guest imports ops from.
func WithModuleName(name string) Option {
	return func(c *executorConfig) {
		c.moduleName = name
	}
}

// WithScriptName sets the guest module name used in logs.
func WithScriptName(name string) Option {
	return func(c *executorConfig) {
		if name != "" {
			c.scriptName = name
		}
	}
}

// WithMaxPayloadSize limits the auxiliary payload an op call may pass.
func WithMaxPayloadSize(size uint32) Option {
	return func(c *executorConfig) {
		c.maxPayloadSize = size
	}
}
