package attendance

import "fmt"

type ErrorReason string

const (
	REASON_ATTENDEE_DOES_NOT_EXIST         ErrorReason = "ATTENDEE_DOES_NOT_EXIST"
	REASON_REGISTRATION_DOES_NOT_EXIST     ErrorReason = "REGISTRATION_DOES_NOT_EXIST"
	REASON_ALREADY_ATTENDED                ErrorReason = "ALREADY_ATTENDED"
	REASON_ALREADY_EXISTS                  ErrorReason = "ALREADY_EXISTS"
	REASON_VERSION_CONFLICT                ErrorReason = "VERSION_CONFLICT"
	REASON_FAILED_TO_FETCH                 ErrorReason = "FAILED_TO_FETCH"
	REASON_FAILED_TO_WRITE                 ErrorReason = "FAILED_TO_WRITE"
	REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL ErrorReason = "FAILED_TO_TRANSLATE_TO_DB_MODEL"
	REASON_TIMEOUT                         ErrorReason = "TIMEOUT"
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

func newAttendanceError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewAttendeeDoesNotExistError(message string, cause error) *Error {
	return newAttendanceError(REASON_ATTENDEE_DOES_NOT_EXIST, message, cause)
}

func NewRegistrationDoesNotExistError(message string, cause error) *Error {
	return newAttendanceError(REASON_REGISTRATION_DOES_NOT_EXIST, message, cause)
}

func NewAlreadyAttendedError(message string) *Error {
	return newAttendanceError(REASON_ALREADY_ATTENDED, message, nil)
}

func NewAlreadyExistsError(message string, cause error) *Error {
	return newAttendanceError(REASON_ALREADY_EXISTS, message, cause)
}

func NewVersionConflictError(message string, cause error) *Error {
	return newAttendanceError(REASON_VERSION_CONFLICT, message, cause)
}

func NewFailedToFetchError(message string, cause error) *Error {
	return newAttendanceError(REASON_FAILED_TO_FETCH, message, cause)
}

func NewFailedToWriteError(message string, cause error) *Error {
	return newAttendanceError(REASON_FAILED_TO_WRITE, message, cause)
}

func NewFailedToTranslateToDBModelError(message string, cause error) *Error {
	return newAttendanceError(REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL, message, cause)
}

func NewTimeoutError(message string, cause error) *Error {
	return newAttendanceError(REASON_TIMEOUT, message, cause)
}
