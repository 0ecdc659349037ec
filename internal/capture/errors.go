package capture

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why a capture operation failed.
type ErrorCode string

// Error codes for capture operations.
const (
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeStartFailed   ErrorCode = "START_FAILED"
	ErrCodeWaitFailed    ErrorCode = "WAIT_FAILED"
	ErrCodeDequeueFailed ErrorCode = "DEQUEUE_FAILED"
	ErrCodeRequeueFailed ErrorCode = "REQUEUE_FAILED"
	ErrCodeHandler       ErrorCode = "HANDLER_FAILED"
	ErrCodeStopFailed    ErrorCode = "STOP_FAILED"
)

// Error is returned by capture loop operations.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HasCode reports whether err is a capture error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
