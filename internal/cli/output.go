package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/rmlearn/internal/device"
	"github.com/roach88/rmlearn/internal/store"
	"github.com/roach88/rmlearn/internal/transport"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (learning timed out, send failed, edit refused)
	ExitCommandError = 2 // Command error (bad config, unknown device, invalid flags)
)

// Error codes reported in JSON output for failures that carry no domain code.
const (
	ErrCodeGeneric = "E_GENERIC"
	ErrCodeConfig  = "E_CONFIG"
	ErrCodeDevice  = "E_DEVICE"
	ErrCodeLearn   = "E_LEARN"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // what the command was doing
	Err     error  // cause, may be nil
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

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode reports the exit code for err. Errors that never passed
// through an ExitError count as ExitFailure.
func GetExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as one JSON object per
// response.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // console notices and verbose lines; Writer when nil
	Verbose   bool
}

// CLIResponse is the envelope of every JSON response.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

type CLIError struct {
	Code    string `json:"code"`              // domain code such as "NAME_COLLISION", or E_*
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is machine-readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data. Text mode relies on data's String method.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a coded failure.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err in JSON mode and returns it wrapped with exitCode.
// Text mode leaves printing to the caller of Execute.
func (f *OutputFormatter) Fail(exitCode int, fallbackCode, message string, err error) error {
	if f.JSON() {
		msg := message
		if err != nil {
			msg = fmt.Sprintf("%s: %v", message, err)
		}
		if encErr := f.Error(errorCode(err, fallbackCode), msg, nil); encErr != nil {
			return encErr
		}
	}
	return WrapExitError(exitCode, message, err)
}

// errorCode returns the domain code carried by err, or fallback.
func errorCode(err error, fallback string) string {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return string(storeErr.Code)
	}
	var deviceErr *device.Error
	if errors.As(err, &deviceErr) {
		return deviceErr.Code
	}
	if transport.IsTransportFailure(err) {
		return transport.ErrCodeTransportFailure
	}
	return fallback
}
