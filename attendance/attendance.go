// Package attendance is the backend side of check-in: looking up who a
// scanned code belongs to and recording that they showed up.
package attendance

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreateAttendee(ctx context.Context, attendee Attendee) error
	GetAttendee(ctx context.Context, id uuid.UUID) (Attendee, error)
	CreateRegistration(ctx context.Context, registration Registration) error
	GetRegistration(ctx context.Context, id uuid.UUID) (Registration, error)
	GetRegistrationsForAttendee(ctx context.Context, attendeeID uuid.UUID) ([]Registration, error)
	UpdateRegistration(ctx context.Context, registration Registration) error
}

type Attendee struct {
	ID      uuid.UUID
	Version int
	Name    string
	Email   string
}

type Registration struct {
	ID             uuid.UUID
	Version        int
	AttendeeID     uuid.UUID
	EventID        uuid.UUID
	EventName      string
	EventStartTime time.Time
	RegisteredAt   time.Time
	AttendedAt     *time.Time
}

func (r Registration) Attended() bool {
	return r.AttendedAt != nil
}

type Resolution struct {
	Attendee Attendee
	Pending  []Registration
}

// ResolveAttendee finds the attendee behind a scanned code along with the
// registrations they haven't checked in to yet, earliest event first.
func ResolveAttendee(ctx context.Context, repo Repository, attendeeID uuid.UUID) (Resolution, error) {
	attendee, err := repo.GetAttendee(ctx, attendeeID)
	if err != nil {
		return Resolution{}, err
	}

	registrations, err := repo.GetRegistrationsForAttendee(ctx, attendeeID)
	if err != nil {
		return Resolution{}, err
	}

	pending := slices.DeleteFunc(registrations, Registration.Attended)
	slices.SortStableFunc(pending, func(a, b Registration) int {
		return cmp.Compare(a.EventStartTime.UnixNano(), b.EventStartTime.UnixNano())
	})

	return Resolution{
		Attendee: attendee,
		Pending:  pending,
	}, nil
}

// MarkAttendance records that the registration's holder checked in at now.
// A registration can only be marked once.
func MarkAttendance(ctx context.Context, repo Repository, registrationID uuid.UUID, now time.Time) (Registration, error) {
	reg, err := repo.GetRegistration(ctx, registrationID)
	if err != nil {
		return Registration{}, err
	}

	if reg.Attended() {
		return Registration{}, NewAlreadyAttendedError(fmt.Sprintf("Registration %q was already checked in at %s", registrationID, reg.AttendedAt.Format(time.RFC3339)))
	}

	reg.AttendedAt = &now
	reg.Version++

	err = repo.UpdateRegistration(ctx, reg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Registration{}, NewTimeoutError(fmt.Sprintf("Timed out marking registration %q", registrationID), err)
		}
		var attendanceErr *Error
		if errors.As(err, &attendanceErr) && attendanceErr.Reason == REASON_VERSION_CONFLICT {
			return Registration{}, markConflict(ctx, repo, registrationID, err)
		}
		return Registration{}, err
	}

	return reg, nil
}

// markConflict explains a write that lost to a concurrent one. Usually the
// other writer checked the same registration in.
func markConflict(ctx context.Context, repo Repository, registrationID uuid.UUID, conflictErr error) error {
	current, err := repo.GetRegistration(ctx, registrationID)
	if err != nil {
		return conflictErr
	}
	if current.Attended() {
		return NewAlreadyAttendedError(fmt.Sprintf("Registration %q was checked in concurrently at %s", registrationID, current.AttendedAt.Format(time.RFC3339)))
	}
	return conflictErr
}
