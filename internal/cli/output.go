package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/medicrypt/consentledger/internal/ledger"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitRejected     = 1 // Operation rejected by the ledger (unauthorized, not found, ...)
	ExitCommandError = 2 // Command error (invalid flags, unreadable database, ...)
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// GetExitCode extracts the exit code from an error.
// Ledger rejections map to ExitRejected; anything else is ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if ledger.CodeOf(err) != "" {
		return ExitRejected
	}
	return ExitCommandError
}

// Response is the JSON envelope for CLI output.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty"`
	Error  *RespError `json:"error,omitempty"`
}

// RespError carries a rejection or failure in JSON output.
type RespError struct {
	Code    string `json:"code"` // ledger rejection code, or "COMMAND_ERROR"
	Message string `json:"message"`
}

// Formatter renders command results as text or JSON.
type Formatter struct {
	Format string
	Writer io.Writer
}

// NewFormatter builds a formatter from the root options and the command's
// stdout.
func NewFormatter(opts *RootOptions, w io.Writer) *Formatter {
	return &Formatter{Format: opts.Format, Writer: w}
}

// Success renders a successful result. In text mode, data's fmt.Stringer
// or default formatting is used; commands wanting tabular text print it
// themselves and pass nil here.
func (f *Formatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	if data != nil {
		fmt.Fprintln(f.Writer, data)
	}
	return nil
}

// Failure renders a rejection or failure and returns an error carrying
// the right exit code.
func (f *Formatter) Failure(err error) error {
	code := string(ledger.CodeOf(err))
	if code == "" {
		code = "COMMAND_ERROR"
	}
	if f.Format == "json" {
		if encErr := json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &RespError{Code: code, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "error [%s]: %s\n", code, err.Error())
	}
	return &ExitError{Code: GetExitCode(err), Message: err.Error(), Err: err}
}
