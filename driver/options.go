package driver

import (
	"time"

	"github.com/deno-lib/oned/domain/ports"
	"github.com/deno-lib/oned/host"
	"github.com/deno-lib/oned/hostfuncs"
	"github.com/deno-lib/oned/infrastructure/process"
	infrawazero "github.com/deno-lib/oned/infrastructure/wazero"
	"go.uber.org/zap"
)

type config struct {
	logger         *zap.Logger
	launcher       ports.ProcessLauncher
	registry       *hostfuncs.OpRegistry
	moduleName     string
	scriptName     string
	wasm           []byte
	extraOps       []hostfuncs.RegistryOption
	processOpts    []process.Option
	pollInterval   time.Duration
	maxPayloadSize uint32
}

func defaultConfig() config {
	return config{
		logger:         zap.NewNop(),
		moduleName:     infrawazero.DefaultModuleName,
		scriptName:     host.DefaultScriptName,
		pollInterval:   DefaultPollInterval,
		maxPayloadSize: infrawazero.DefaultMaxPayloadSize,
	}
}

// Option configures a Driver.
type Option func(*config)

// WithLogger sets the driver logger. The run id is added to it.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithScript runs wasm instead of the embedded startup script.
func WithScript(wasm []byte, name string) Option {
	return func(c *config) {
		c.wasm = wasm
		if name != "" {
			c.scriptName = name
		}
	}
}

// WithLauncher replaces the os/exec process launcher.
func WithLauncher(l ports.ProcessLauncher) Option {
	return func(c *config) {
		c.launcher = l
	}
}

// WithProcessOptions configures the default os/exec launcher.
func WithProcessOptions(opts ...process.Option) Option {
	return func(c *config) {
		c.processOpts = append(c.processOpts, opts...)
	}
}

// WithRegistry replaces the default registry entirely.
func WithRegistry(r *hostfuncs.OpRegistry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithOps adds registry options on top of the default process ops.
// Ignored when WithRegistry is used.
func WithOps(opts ...hostfuncs.RegistryOption) Option {
	return func(c *config) {
		c.extraOps = append(c.extraOps, opts...)
	}
}

// WithPollInterval sets the longest sleep between ticks.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithModuleName sets the host module name the script imports ops from.
func WithModuleName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.moduleName = name
		}
	}
}

// WithMaxPayloadSize limits the auxiliary payload of an op call.
func WithMaxPayloadSize(size uint32) Option {
	return func(c *config) {
		if size > 0 {
			c.maxPayloadSize = size
		}
	}
}
