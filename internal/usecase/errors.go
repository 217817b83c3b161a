package usecase

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures returned by the contact and prefill services.
// Chat failures never surface as errors; they become history entries.
type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorRateLimited  ErrorCode = "RATE_LIMITED"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (code ErrorCode, reason string, ok bool) {
	var ucErr *Error
	if !errors.As(err, &ucErr) || ucErr == nil {
		return "", "", false
	}
	return ucErr.Code, ucErr.Reason, true
}
