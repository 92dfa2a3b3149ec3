package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run or validation failure (engine error, invalid payload)
	ExitCommandError = 2 // Command error (bad flags, unreadable config or script)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Err     error
	Message string
	Code    int
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Writer io.Writer
	Format string
}

// Response is the JSON envelope of command output.
type Response struct {
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Status string      `json:"status"` // "ok" or "error"
}

// Success outputs data. text is used for the text format.
func (f *OutputFormatter) Success(data interface{}, text string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprint(f.Writer, text)
	return err
}

// Failure outputs a failed result with data and returns an ExitFailure error.
func (f *OutputFormatter) Failure(message string, data interface{}, text string) error {
	if f.Format == "json" {
		if err := json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: message, Data: data}); err != nil {
			return err
		}
	} else if _, err := fmt.Fprint(f.Writer, text); err != nil {
		return err
	}
	return NewExitError(ExitFailure, message)
}
