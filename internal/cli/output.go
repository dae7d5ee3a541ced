package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/treeup/internal/update"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // statement rejected, scenarios failed
	ExitCommandError = 2 // bad arguments, missing file or database
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain,
// ExitFailure otherwise.
func GetExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose lines; Writer if nil
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	Statement string    `json:"statement,omitempty"`
}

// CLIError describes a failed command in JSON output.
type CLIError struct {
	Code    string `json:"code"` // update error code or "E_..."
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. Text output relies on data's String method.
func (f *OutputFormatter) Success(data any) error {
	if f.Format != "json" {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes a failure. Text output shows details only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a line to ErrWriter under --verbose, keeping JSON on
// Writer clean.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// newFormatter returns the formatter for a command's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// UpdateFailure reports a rejected statement and returns the ExitFailure
// error the command should return. Errors that are not update errors are
// reported with code E_UPDATE.
func (f *OutputFormatter) UpdateFailure(err error) error {
	code := "E_UPDATE"
	details := map[string]any{}
	var ue *update.UpdateError
	if errors.As(err, &ue) {
		code = string(ue.Code)
		if ue.Store != "" {
			details["store"] = ue.Store
		}
		if !ue.Target.IsZero() {
			details["target"] = ue.Target.String()
		}
		if len(ue.Kinds) > 0 {
			kinds := make([]string, len(ue.Kinds))
			for i, k := range ue.Kinds {
				kinds[i] = k.String()
			}
			details["kinds"] = kinds
		}
	}
	var d any
	if len(details) > 0 {
		d = details
	}
	if outErr := f.Error(code, err.Error(), d); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "update rejected", err)
}
