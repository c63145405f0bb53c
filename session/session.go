package session

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoToken is returned by GetToken when nobody is logged in.
var ErrNoToken = errors.New("no session token")

// Store holds the bearer token for the logged in staff member.
type Store interface {
	GetToken(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

type ErrorReason string

const (
	REASON_FAILED_TO_READ  ErrorReason = "FAILED_TO_READ"
	REASON_FAILED_TO_WRITE ErrorReason = "FAILED_TO_WRITE"
)

type Error struct {
	Reason  ErrorReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewFailedToReadError(message string, cause error) *Error {
	return &Error{Reason: REASON_FAILED_TO_READ, Message: message, Cause: cause}
}

func NewFailedToWriteError(message string, cause error) *Error {
	return &Error{Reason: REASON_FAILED_TO_WRITE, Message: message, Cause: cause}
}
