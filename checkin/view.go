package checkin

import (
	"errors"
	"time"
)

// Notice is a transient message for the operator about a recoverable failure.
type Notice struct {
	Reason  ErrorReason
	Message string
	At      time.Time
}

// View is a snapshot of the controller for rendering. Revision increases with
// every change so renderers can drop snapshots that arrive out of order.
type View struct {
	Revision uint64
	Phase    Phase
	Loading  bool
	UserName string
	Pending  []Registration
	Marking  []string
	Notice   *Notice
}

func noticeFromError(err error, at time.Time) *Notice {
	n := &Notice{
		Message: err.Error(),
		At:      at,
	}

	var checkinErr *Error
	if errors.As(err, &checkinErr) {
		n.Reason = checkinErr.Reason
		n.Message = checkinErr.Message
	}

	return n
}
