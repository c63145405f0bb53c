package checkin

import "fmt"

type ErrorReason string

const (
	REASON_PAYLOAD_PARSE            ErrorReason = "PAYLOAD_PARSE"
	REASON_IDENTITY_RESOLUTION      ErrorReason = "IDENTITY_RESOLUTION"
	REASON_ATTENDANCE_MARK          ErrorReason = "ATTENDANCE_MARK"
	REASON_DECODER_LIFECYCLE        ErrorReason = "DECODER_LIFECYCLE"
	REASON_REGISTRATION_NOT_PENDING ErrorReason = "REGISTRATION_NOT_PENDING"
	REASON_MARK_IN_PROGRESS         ErrorReason = "MARK_IN_PROGRESS"
	REASON_INVALID_STATE            ErrorReason = "INVALID_STATE"
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

func newCheckinError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewPayloadParseError(message string, cause error) *Error {
	return newCheckinError(REASON_PAYLOAD_PARSE, message, cause)
}

func NewIdentityResolutionError(message string, cause error) *Error {
	return newCheckinError(REASON_IDENTITY_RESOLUTION, message, cause)
}

func NewAttendanceMarkError(message string, cause error) *Error {
	return newCheckinError(REASON_ATTENDANCE_MARK, message, cause)
}

func NewDecoderLifecycleError(message string, cause error) *Error {
	return newCheckinError(REASON_DECODER_LIFECYCLE, message, cause)
}

func NewRegistrationNotPendingError(registrationID string) *Error {
	return newCheckinError(REASON_REGISTRATION_NOT_PENDING, fmt.Sprintf("Registration %q is not pending for the current attendee", registrationID), nil)
}

func NewMarkInProgressError(registrationID string) *Error {
	return newCheckinError(REASON_MARK_IN_PROGRESS, fmt.Sprintf("Attendance for registration %q is already being marked", registrationID), nil)
}

func NewInvalidStateError(op string, phase Phase) *Error {
	return newCheckinError(REASON_INVALID_STATE, fmt.Sprintf("Cannot %s while %s", op, phase), nil)
}
