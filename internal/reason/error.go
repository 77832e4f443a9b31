package reason

import "fmt"

// Exit codes for the weftend process. The action codes mirror the trust
// verdict mapping; 40 is the fail-closed precondition/validation exit.
const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitQueue    = 10
	ExitReject   = 20
	ExitHold     = 30
	ExitViolated = 40
)

// Error carries a reason code and a process exit code alongside the
// human-readable message. Commands return it up through cobra so that
// cli.Execute can map the failure to the right exit status and print the
// bracketed code as the first stderr line. It supports unwrapping via
// errors.Is and errors.As.
type Error struct {
	// Code is the reason code identifying the failure.
	Code Code

	// Exit is the process exit code associated with this error.
	Exit int

	// Message is a human-readable description of what went wrong.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the formatted message. The underlying error, when present,
// is appended after a colon.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// SurfaceLine renders the stderr form of the failure: the bracketed reason
// code followed by the message.
func (e *Error) SurfaceLine() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Error())
}

// Failf creates an Error with the given code and exit status.
func Failf(code Code, exit int, format string, args ...any) *Error {
	return &Error{Code: code, Exit: exit, Message: fmt.Sprintf(format, args...)}
}

// Surface creates a fail-closed (exit 40) Error, the common case for
// precondition and validation failures.
func Surface(code Code, message string, err error) *Error {
	return &Error{Code: code, Exit: ExitViolated, Message: message, Err: err}
}

// Internal wraps an unexpected error as INTERNAL_ERROR with exit 1.
func Internal(err error) *Error {
	return &Error{Code: InternalError, Exit: ExitError, Message: "unexpected internal error", Err: err}
}
