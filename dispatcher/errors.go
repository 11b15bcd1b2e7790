package dispatcher

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CODE_PROTOCOL_MISMATCH     ErrorCode = "PROTOCOL_MISMATCH"
	CODE_ARCHITECTURE_MISMATCH ErrorCode = "ARCHITECTURE_MISMATCH"
	CODE_WORKER_FAILURE        ErrorCode = "WORKER_FAILURE"
	CODE_CANNOT_BUILD          ErrorCode = "CANNOT_BUILD"
	CODE_CANNOT_RESUME_HOST    ErrorCode = "CANNOT_RESUME_HOST"
)

// Error is a dispatch failure attributed to a builder.
type Error struct {
	Code    ErrorCode
	Builder string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: builder %s: %v", e.Code, e.Builder, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, builder string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Builder: builder, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var dispatchErr *Error
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Code
	}
	return ""
}
