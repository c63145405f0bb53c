package gateway

import "fmt"

type ErrorReason string

const (
	REASON_NO_TOKEN          ErrorReason = "NO_TOKEN"
	REASON_REQUEST_FAILED    ErrorReason = "REQUEST_FAILED"
	REASON_UNEXPECTED_STATUS ErrorReason = "UNEXPECTED_STATUS"
	REASON_INVALID_RESPONSE  ErrorReason = "INVALID_RESPONSE"
)

type Error struct {
	Reason     ErrorReason
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s. Cause: %s", e.Reason, e.StatusCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewNoTokenError(cause error) *Error {
	return &Error{Reason: REASON_NO_TOKEN, Message: "Not logged in", Cause: cause}
}

func NewRequestFailedError(message string, cause error) *Error {
	return &Error{Reason: REASON_REQUEST_FAILED, Message: message, Cause: cause}
}

func NewUnexpectedStatusError(statusCode int, message string) *Error {
	return &Error{Reason: REASON_UNEXPECTED_STATUS, Message: message, StatusCode: statusCode}
}

func NewInvalidResponseError(message string, cause error) *Error {
	return &Error{Reason: REASON_INVALID_RESPONSE, Message: message, Cause: cause}
}
