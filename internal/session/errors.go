package session

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why a session operation failed.
type ErrorCode string

// Error codes for session operations.
const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeNotCharDevice      ErrorCode = "NOT_A_CHARACTER_DEVICE"
	ErrCodeOpenFailed         ErrorCode = "OPEN_FAILED"
	ErrCodeQueryFailed        ErrorCode = "QUERY_FAILED"
	ErrCodeNotVideoCapable    ErrorCode = "NOT_VIDEO_CAPABLE"
	ErrCodeNoStreamingSupport ErrorCode = "NO_STREAMING_SUPPORT"
	ErrCodeFormatRejected     ErrorCode = "FORMAT_REJECTED"
	ErrCodeClosed             ErrorCode = "CLOSED"
	ErrCodeInvalidGeometry    ErrorCode = "INVALID_GEOMETRY"
)

// Error is returned by every exported session operation.
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

// HasCode reports whether err is a session error with the given code.
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
