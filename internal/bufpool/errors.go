package bufpool

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why a buffer pool operation failed.
type ErrorCode string

// Error codes for buffer pool operations.
const (
	ErrCodeInvalidCount        ErrorCode = "INVALID_COUNT"
	ErrCodeUnsupported         ErrorCode = "MMAP_UNSUPPORTED"
	ErrCodeRequestFailed       ErrorCode = "REQUEST_FAILED"
	ErrCodeInsufficientBuffers ErrorCode = "INSUFFICIENT_BUFFERS"
	ErrCodeQueryFailed         ErrorCode = "QUERY_FAILED"
	ErrCodeMapFailed           ErrorCode = "MAP_FAILED"
	ErrCodeQueueFailed         ErrorCode = "QUEUE_FAILED"
	ErrCodeDequeueFailed       ErrorCode = "DEQUEUE_FAILED"
	ErrCodeOwnership           ErrorCode = "OWNERSHIP_VIOLATION"
	ErrCodeAgain               ErrorCode = "AGAIN"
	ErrCodeInvalidState        ErrorCode = "INVALID_STATE"
)

// Error is returned by pool operations.
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

// HasCode reports whether err is a pool error with the given code.
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
