// Package apperr defines the error taxonomy shared by the roadmap engine.
//
// Every failure surfaced to a caller carries a Code so the HTTP layer and the
// CLI can decide how to present it without string matching. All failures are
// local and recoverable; none of them should terminate the process.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Codes are strings so they serialize
// naturally into JSON error bodies and log lines.
type Code string

const (
	// CodeValidationGap indicates required fields were missing before a
	// creation or conversion. No partial record was written.
	CodeValidationGap Code = "VALIDATION_GAP"

	// CodeTransportFailure indicates a persistence or arrangement call was
	// rejected or could not reach its collaborator. No retry is attempted.
	CodeTransportFailure Code = "TRANSPORT_FAILURE"

	// CodePartialApply indicates a batch of position writes where some but
	// not all writes succeeded. Successful writes are not rolled back.
	CodePartialApply Code = "PARTIAL_APPLY_FAILURE"

	// CodeNotFound indicates the referenced feature or idea does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict indicates the entity already exists or a saga was left
	// half applied.
	CodeConflict Code = "CONFLICT"

	// CodeBusy indicates an operation that must not overlap with itself is
	// already running.
	CodeBusy Code = "BUSY"

	// CodeInvalidInput indicates malformed input (bad enum, bad date).
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error.
	CodeInvalidConfig Code = "INVALID_CONFIGURATION"

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INTERNAL_ERROR"
)

// String returns the string representation of the Code.
func (c Code) String() string {
	return string(c)
}

// Sentinel errors that can be checked with errors.Is().
var (
	// ErrNotFound is returned by store backends when an id is unknown.
	ErrNotFound = &Error{Code: CodeNotFound, Message: "not found"}

	// ErrArrangementInFlight is returned when an arrangement is requested
	// while a previous one has not finished.
	ErrArrangementInFlight = &Error{Code: CodeBusy, Message: "arrangement already in flight"}

	// ErrSessionActive is returned when a pointer-down arrives while a drag
	// or pan session is already active.
	ErrSessionActive = &Error{Code: CodeBusy, Message: "interaction session already active"}
)

// Error is a coded error with operation context.
type Error struct {
	Code    Code   // Failure class
	Op      string // Operation that failed, e.g. "store.UpdateFeature"
	Message string // Human readable summary
	Err     error  // Underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

// Unwrap returns the underlying error for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without an underlying cause.
func New(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and operation to err. A nil err yields nil.
func Wrap(err error, code Code, op, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: msg, Err: err}
}

// NotFound returns an error matching ErrNotFound for the given entity.
func NotFound(op, kind, id string) error {
	return &Error{Code: CodeNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", kind, id), Err: ErrNotFound}
}

// CodeOf extracts the code of the outermost *Error in err's chain, or
// CodeInternal when err carries no code. A nil err yields "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}
