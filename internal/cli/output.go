package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/lanatus/internal/dberr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (write conflict, driver failure)
	ExitCommandError = 2 // Command error (bad flags, invalid config, usage error)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// WrapDBError wraps a persistence error, choosing the exit code from its
// category: usage errors are command errors, everything else a failure.
func WrapDBError(message string, err error) *ExitError {
	if dberr.IsUsage(err) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode returns the code reported for err in JSON output: the dberr
// category if there is one, else "ERROR".
func ErrorCode(err error) string {
	var de *dberr.Error
	if errors.As(err, &de) {
		return string(de.Code)
	}
	return "ERROR"
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string            `json:"code"`              // "USAGE", "CONFLICT", "DRIVER", "NOT_FOUND" or "ERROR"
	Message string            `json:"message"`           // human-readable message
	Details map[string]string `json:"details,omitempty"` // table, column, id, statement
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with its String method if it has one.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error reports err in the configured format. The code comes from
// ErrorCode; persistence errors also carry their table, id and statement as
// details.
func (f *OutputFormatter) Error(err error) error {
	code := ErrorCode(err)
	details := errorDetails(err)

	if f.Format == "json" {
		resp := CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		}
		if len(details) > 0 {
			resp.Error.Details = details
		}
		return json.NewEncoder(f.Writer).Encode(resp)
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, err)
	if f.Verbose {
		for _, k := range []string{"table", "column", "id", "statement"} {
			if v, ok := details[k]; ok {
				fmt.Fprintf(f.Writer, "  %s: %s\n", k, v)
			}
		}
	}
	return nil
}

func errorDetails(err error) map[string]string {
	var de *dberr.Error
	if !errors.As(err, &de) {
		return nil
	}

	details := make(map[string]string)
	for k, v := range map[string]string{
		"table":     de.Table,
		"column":    de.Column,
		"id":        de.ID,
		"statement": de.Statement,
	} {
		if v != "" {
			details[k] = v
		}
	}
	return details
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
