package cli

import (
	"errors"
	"fmt"
)

// ExitCodeFailed is returned by check --fail-on-error when the report has errors.
const ExitCodeFailed = 2

// ExitCoder is an error that carries a process exit code.
type ExitCoder interface {
	error
	ExitCode() int
}

// ExitError is an error that carries an explicit process exit code.
type ExitError struct {
	code int
	msg  string
}

func (e *ExitError) Error() string { return e.msg }

func (e *ExitError) ExitCode() int { return e.code }

// exitErrorf creates an ExitError with a formatted message. Codes below 1 become 1.
func exitErrorf(code int, format string, args ...any) error {
	if code <= 0 {
		code = 1
	}
	return &ExitError{code: code, msg: fmt.Sprintf(format, args...)}
}

// ExitCodeOf extracts an exit code from any error, defaulting to 1.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}
