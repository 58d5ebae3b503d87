package usecase

import "fmt"

type ErrorCode string

const (
	ErrorConfig         ErrorCode = "CONFIG_ERROR"
	ErrorInitialization ErrorCode = "INITIALIZATION_ERROR"
	ErrorTurn           ErrorCode = "TURN_ERROR"
	ErrorInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrorRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorInternal       ErrorCode = "INTERNAL_ERROR"
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

// UserMessage is the text shown inline in the page.
func (e *Error) UserMessage() string {
	if e == nil {
		return ""
	}
	switch e.Code {
	case ErrorConfig, ErrorInitialization:
		if e.Err != nil {
			return fmt.Sprintf("Error initializing chat: %v", e.Err)
		}
		return "Error initializing chat."
	case ErrorInvalidInput:
		return "Invalid message: " + e.Reason
	case ErrorRateLimited:
		return "The model service is rate limiting requests. Try again shortly."
	default:
		if e.Err != nil {
			return fmt.Sprintf("Error getting response: %v", e.Err)
		}
		return "Error getting response."
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
