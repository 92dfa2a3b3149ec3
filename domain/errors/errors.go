// Package errors provides the error taxonomy of the op bridge.
//
// Two tiers exist. A ContractError means the host and the engine disagree on
// the wire contract; it is raised as a panic and ends the run. Every other
// error is a handler-level failure that the bridge collapses into the
// result sentinel -1 before it reaches the script.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an op refers to a rid that is not tracked.
	ErrNotFound = stdErrors.New("resource not found")

	// ErrExists is returned when an op tries to track a rid that is already tracked.
	ErrExists = stdErrors.New("resource already exists")

	// ErrMissingPayload is returned when an op requires an auxiliary payload and got none.
	ErrMissingPayload = stdErrors.New("missing payload")
)

// Violation names the part of the wire contract that was broken.
type Violation string

const (
	// ViolationLength means a control buffer was not exactly one record wide.
	ViolationLength Violation = "length"
	// ViolationRouting means a sync op got a promise id, or an async op got none.
	ViolationRouting Violation = "routing"
	// ViolationOverflow means a handler success value does not fit an int32.
	ViolationOverflow Violation = "overflow"
	// ViolationMemory means a buffer could not be read from or written to guest memory.
	ViolationMemory Violation = "memory"
)

// ContractError represents a wire-contract violation between host and engine.
// It is never recoverable: the call path that detects it must abort.
type ContractError struct {
	Violation Violation
	Op        string
	Detail    string
}

func (e *ContractError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("wire contract violation (%s) in op %q: %s", e.Violation, e.Op, e.Detail)
	}
	return fmt.Sprintf("wire contract violation (%s): %s", e.Violation, e.Detail)
}

// Is reports whether target is a ContractError with the same violation.
func (e *ContractError) Is(target error) bool {
	t, ok := target.(*ContractError)
	if !ok {
		return false
	}
	return t.Violation == e.Violation
}

// NewContractError creates a ContractError with a formatted detail.
func NewContractError(v Violation, format string, args ...any) *ContractError {
	return &ContractError{Violation: v, Detail: fmt.Sprintf(format, args...)}
}

// ResourceError binds a handler failure to the op and rid it happened on.
type ResourceError struct {
	Err error
	Op  string
	RID uint32
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s rid=%d: %v", e.Op, e.RID, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// PayloadError represents an auxiliary payload that could not be decoded or validated.
type PayloadError struct {
	Err error
	Op  string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.Op, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// LaunchError represents a process that could not be started.
type LaunchError struct {
	Err     error
	Command string
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start '%s': %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Op    string
}

func (e *PanicError) Error() string {
	switch v := e.Value.(type) {
	case error:
		return fmt.Sprintf("op %s panicked: %v", e.Op, v)
	case string:
		return fmt.Sprintf("op %s panicked: %s", e.Op, v)
	default:
		return fmt.Sprintf("op %s panicked", e.Op)
	}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// EngineError represents a terminal failure of the hosted engine.
// Once an engine has failed every later poll returns the same EngineError.
type EngineError struct {
	Err   error
	Stage string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine failed during %s: %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsContractViolation reports whether err carries a ContractError anywhere in its chain.
func IsContractViolation(err error) bool {
	var ce *ContractError
	return stdErrors.As(err, &ce)
}
