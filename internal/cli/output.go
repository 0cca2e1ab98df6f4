package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes. A run that started but could not finish (STRICT leaf
// failure, persistence failure) exits 1; problems found before any
// document was touched (bad flags, missing files, invalid config)
// exit 2.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries an exit code alongside the error chain so RunE
// handlers can decide the process status without printing themselves.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
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

// NewExitError builds an ExitError with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to an existing error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode resolves the process exit status for an error, searching
// the wrap chain for an ExitError and defaulting to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as human-readable text or as
// a machine-readable JSON envelope, per the --format flag.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose logs go here to avoid corrupting JSON output
	Verbose   bool
}

// VerboseLog writes a progress line to ErrWriter when verbose is on.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if f.Verbose && f.ErrWriter != nil {
		fmt.Fprintf(f.ErrWriter, format+"\n", args...)
	}
}

// CLIResponse is the JSON envelope every command emits in json mode.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError carries a machine-readable error code next to the message.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success emits a result payload: the JSON envelope, or the payload's
// default text rendering.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Successf outputs a formatted text line, or the given payload as JSON.
func (f *OutputFormatter) Successf(data interface{}, format string, args ...interface{}) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	fmt.Fprintf(f.Writer, format+"\n", args...)
	return nil
}

// Error emits an error with its code, keeping json mode parseable.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}
	fmt.Fprintf(f.Writer, "error: %s (%s)\n", message, code)
	return nil
}
