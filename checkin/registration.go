package checkin

import (
	"context"
	"strings"
)

// UnknownUserName is displayed when the backend returns no usable name.
const UnknownUserName = "Unknown"

type Registration struct {
	RegistrationID string
	EventID        string
	EventTitle     string
}

// Identity is the attendee resolved from a scan and the registrations they
// have not been marked present for yet.
type Identity struct {
	UserName string
	Pending  []Registration
}

func (i Identity) HasPending(registrationID string) bool {
	return i.indexOf(registrationID) >= 0
}

func (i Identity) indexOf(registrationID string) int {
	for idx, r := range i.Pending {
		if r.RegistrationID == registrationID {
			return idx
		}
	}
	return -1
}

// withoutPending returns a copy of the identity with registrationID removed.
// The receiver's slice is never modified so views handed out earlier stay valid.
func (i Identity) withoutPending(registrationID string) Identity {
	idx := i.indexOf(registrationID)
	if idx < 0 {
		return i
	}

	pending := make([]Registration, 0, len(i.Pending)-1)
	pending = append(pending, i.Pending[:idx]...)
	pending = append(pending, i.Pending[idx+1:]...)

	return Identity{
		UserName: i.UserName,
		Pending:  pending,
	}
}

type ResolvedRegistration struct {
	RegistrationID string
	EventID        string
	EventName      string
}

// ResolveResult is the backend's answer to a scanned user id.
type ResolveResult struct {
	UserName      string
	Registrations []ResolvedRegistration
}

type Gateway interface {
	ResolveIdentity(ctx context.Context, userID string) (ResolveResult, error)
	MarkAttendance(ctx context.Context, registrationID string) error
}

func identityFromResult(result ResolveResult) Identity {
	name := strings.TrimSpace(result.UserName)
	if name == "" {
		name = UnknownUserName
	}

	seen := make(map[string]struct{}, len(result.Registrations))
	pending := make([]Registration, 0, len(result.Registrations))
	for _, r := range result.Registrations {
		if _, ok := seen[r.RegistrationID]; ok {
			continue
		}
		seen[r.RegistrationID] = struct{}{}

		pending = append(pending, Registration{
			RegistrationID: r.RegistrationID,
			EventID:        r.EventID,
			EventTitle:     r.EventName,
		})
	}

	return Identity{
		UserName: name,
		Pending:  pending,
	}
}
