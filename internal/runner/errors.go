package runner

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies a failed run.
type Kind string

const (
	KindScriptResolution       Kind = "script_resolution"
	KindInvalidProfile         Kind = "invalid_profile"
	KindProcessSpawn           Kind = "process_spawn"
	KindProcessExecution       Kind = "process_execution"
	KindOrchestratorSubmission Kind = "orchestrator_submission"
	KindInternal               Kind = "internal"
)

// HTTPStatus maps the kind to the status code the HTTP API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindScriptResolution, KindInvalidProfile:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the only error type returned by Dispatcher.Run.
type Error struct {
	Kind    Kind
	Message string

	// Detail carries the orchestrator status body, the exit code, or the
	// underlying error text.
	Detail string

	// Stdout and Stderr hold the captured k6 output of a failed local run
	Stdout string
	Stderr string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through the run error.
func (e *Error) Cause() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	e := &Error{Kind: kind, Message: message, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if re, ok := AsError(err); ok {
		return re.Kind
	}
	return KindInternal
}
