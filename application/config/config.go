// Package config loads and validates the oned runtime configuration.
//
// Configuration is read from YAML and layered over Default(); command line
// flags are applied by the caller afterwards. Validation uses struct tags
// and reports the first failing field as an *errors.ConfigError.
package config

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/deno-lib/oned/domain/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults used when the configuration leaves a field unset.
const (
	DefaultLogLevel       = "info"
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultModuleName     = "oned"
	DefaultMaxPayloadSize = 1 << 20
)

// Config is the runtime configuration of an oned run.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// Development switches to a human readable console logger.
	Development bool `yaml:"development" json:"development,omitempty"`

	// PollInterval bounds how long the driver sleeps between polls.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" validate:"gt=0" jsonschema:"type=string,description=Duration such as 100ms"`

	// ModuleName is the import module the script's ops live in.
	ModuleName string `yaml:"module_name" json:"module_name" validate:"required" jsonschema:"default=oned"`

	// MaxPayloadSize caps auxiliary payloads in bytes.
	MaxPayloadSize uint32 `yaml:"max_payload_size" json:"max_payload_size" validate:"gt=0" jsonschema:"minimum=1"`

	// Script is a .wat or .wasm file replacing the embedded startup script.
	Script string `yaml:"script" json:"script,omitempty" validate:"omitempty,script_file"`

	Process ProcessConfig `yaml:"process" json:"process"`
}

// ProcessConfig configures processes started by the run op.
type ProcessConfig struct {
	// InheritOutput forwards process stdout and stderr to the host's.
	InheritOutput bool `yaml:"inherit_output" json:"inherit_output,omitempty"`

	// MaxLifetime kills processes that outlive it. Zero means no limit.
	MaxLifetime time.Duration `yaml:"max_lifetime" json:"max_lifetime,omitempty" validate:"gte=0" jsonschema:"type=string,description=Duration such as 30s"`

	// AllowedCommands are doublestar patterns a program path must match.
	// Empty allows every program.
	AllowedCommands []string `yaml:"allowed_commands" json:"allowed_commands,omitempty" validate:"dive,required,glob"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(fl.Field().String())
	})
	_ = v.RegisterValidation("script_file", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.HasSuffix(s, ".wat") || strings.HasSuffix(s, ".wasm")
	})
	return v
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel:       DefaultLogLevel,
		PollInterval:   DefaultPollInterval,
		ModuleName:     DefaultModuleName,
		MaxPayloadSize: DefaultMaxPayloadSize,
	}
}

// Load reads the YAML file at path over Default() and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default() and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stdErrors.Is(err, io.EOF) {
		return nil, &errors.ConfigError{Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports the first failure.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stdErrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &errors.ConfigError{Err: err}
	}
	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	return &errors.ConfigError{Field: field, Err: fmt.Errorf("failed on '%s' rule (value %v)", fe.Tag(), fe.Value())}
}
