package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for signctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran and was rejected (inconsistent state, missing schema)
	ExitCommandError = 2 // configuration, connection or input errors
)

// ExitError carries the process exit code for a failed command.
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

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code carried by err, ExitFailure otherwise.
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

// response is the JSON envelope written with --format json.
type response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

type output struct {
	format string
	w      io.Writer
}

// success writes data as JSON, or text through fmt when the format is text.
func (o output) success(data any, text string) error {
	if o.format == "json" {
		return json.NewEncoder(o.w).Encode(response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(o.w, text)
	return err
}

func (o output) failure(data any, err error) error {
	if o.format == "json" {
		return json.NewEncoder(o.w).Encode(response{Status: "error", Data: data, Error: err.Error()})
	}
	_, werr := fmt.Fprintf(o.w, "error: %v\n", err)
	return werr
}
