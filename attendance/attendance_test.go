package attendance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Repository = &mockRepository{}

type mockRepository struct {
	CreateAttendeeFunc              func(ctx context.Context, attendee Attendee) error
	GetAttendeeFunc                 func(ctx context.Context, id uuid.UUID) (Attendee, error)
	CreateRegistrationFunc          func(ctx context.Context, registration Registration) error
	GetRegistrationFunc             func(ctx context.Context, id uuid.UUID) (Registration, error)
	GetRegistrationsForAttendeeFunc func(ctx context.Context, attendeeID uuid.UUID) ([]Registration, error)
	UpdateRegistrationFunc          func(ctx context.Context, registration Registration) error
}

func (m *mockRepository) CreateAttendee(ctx context.Context, attendee Attendee) error {
	return m.CreateAttendeeFunc(ctx, attendee)
}

func (m *mockRepository) GetAttendee(ctx context.Context, id uuid.UUID) (Attendee, error) {
	return m.GetAttendeeFunc(ctx, id)
}

func (m *mockRepository) CreateRegistration(ctx context.Context, registration Registration) error {
	return m.CreateRegistrationFunc(ctx, registration)
}

func (m *mockRepository) GetRegistration(ctx context.Context, id uuid.UUID) (Registration, error) {
	return m.GetRegistrationFunc(ctx, id)
}

func (m *mockRepository) GetRegistrationsForAttendee(ctx context.Context, attendeeID uuid.UUID) ([]Registration, error) {
	return m.GetRegistrationsForAttendeeFunc(ctx, attendeeID)
}

func (m *mockRepository) UpdateRegistration(ctx context.Context, registration Registration) error {
	if m.UpdateRegistrationFunc != nil {
		return m.UpdateRegistrationFunc(ctx, registration)
	}
	return nil
}

func TestResolveAttendee(t *testing.T) {
	attendeeID := uuid.New()
	spring := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	summer := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	attendedAt := spring.Add(time.Hour)

	t.Run("returns pending registrations earliest first", func(t *testing.T) {
		springReg := Registration{ID: uuid.New(), AttendeeID: attendeeID, EventName: "Spring Open", EventStartTime: spring}
		summerReg := Registration{ID: uuid.New(), AttendeeID: attendeeID, EventName: "Summer Cup", EventStartTime: summer}
		doneReg := Registration{ID: uuid.New(), AttendeeID: attendeeID, EventName: "Winter Games", EventStartTime: spring, AttendedAt: &attendedAt}

		repo := &mockRepository{
			GetAttendeeFunc: func(ctx context.Context, id uuid.UUID) (Attendee, error) {
				assert.Equal(t, attendeeID, id)
				return Attendee{ID: id, Name: "Alice"}, nil
			},
			GetRegistrationsForAttendeeFunc: func(ctx context.Context, id uuid.UUID) ([]Registration, error) {
				return []Registration{summerReg, doneReg, springReg}, nil
			},
		}

		res, err := ResolveAttendee(context.Background(), repo, attendeeID)

		require.NoError(t, err)
		assert.Equal(t, "Alice", res.Attendee.Name)
		assert.Empty(t, cmp.Diff([]Registration{springReg, summerReg}, res.Pending))
	})

	t.Run("attendee does not exist", func(t *testing.T) {
		repo := &mockRepository{
			GetAttendeeFunc: func(ctx context.Context, id uuid.UUID) (Attendee, error) {
				return Attendee{}, NewAttendeeDoesNotExistError("not found", nil)
			},
		}

		_, err := ResolveAttendee(context.Background(), repo, attendeeID)

		var attendanceErr *Error
		require.True(t, errors.As(err, &attendanceErr))
		assert.Equal(t, REASON_ATTENDEE_DOES_NOT_EXIST, attendanceErr.Reason)
	})

	t.Run("registrations fail to load", func(t *testing.T) {
		repo := &mockRepository{
			GetAttendeeFunc: func(ctx context.Context, id uuid.UUID) (Attendee, error) {
				return Attendee{ID: id}, nil
			},
			GetRegistrationsForAttendeeFunc: func(ctx context.Context, id uuid.UUID) ([]Registration, error) {
				return nil, NewFailedToFetchError("boom", fmt.Errorf("dynamo"))
			},
		}

		_, err := ResolveAttendee(context.Background(), repo, attendeeID)

		var attendanceErr *Error
		require.True(t, errors.As(err, &attendanceErr))
		assert.Equal(t, REASON_FAILED_TO_FETCH, attendanceErr.Reason)
	})
}

func TestMarkAttendance(t *testing.T) {
	regID := uuid.New()
	now := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	t.Run("stamps and bumps the version", func(t *testing.T) {
		var updated Registration
		repo := &mockRepository{
			GetRegistrationFunc: func(ctx context.Context, id uuid.UUID) (Registration, error) {
				return Registration{ID: id, Version: 1}, nil
			},
			UpdateRegistrationFunc: func(ctx context.Context, registration Registration) error {
				updated = registration
				return nil
			},
		}

		reg, err := MarkAttendance(context.Background(), repo, regID, now)

		require.NoError(t, err)
		assert.Equal(t, 2, reg.Version)
		require.NotNil(t, reg.AttendedAt)
		assert.Equal(t, now, *reg.AttendedAt)
		assert.Equal(t, reg, updated)
	})

	t.Run("already attended", func(t *testing.T) {
		earlier := now.Add(-time.Minute)
		updateCalled := false
		repo := &mockRepository{
			GetRegistrationFunc: func(ctx context.Context, id uuid.UUID) (Registration, error) {
				return Registration{ID: id, Version: 2, AttendedAt: &earlier}, nil
			},
			UpdateRegistrationFunc: func(ctx context.Context, registration Registration) error {
				updateCalled = true
				return nil
			},
		}

		_, err := MarkAttendance(context.Background(), repo, regID, now)

		var attendanceErr *Error
		require.True(t, errors.As(err, &attendanceErr))
		assert.Equal(t, REASON_ALREADY_ATTENDED, attendanceErr.Reason)
		assert.False(t, updateCalled)
	})

	t.Run("registration does not exist", func(t *testing.T) {
		repo := &mockRepository{
			GetRegistrationFunc: func(ctx context.Context, id uuid.UUID) (Registration, error) {
				return Registration{}, NewRegistrationDoesNotExistError("not found", nil)
			},
		}

		_, err := MarkAttendance(context.Background(), repo, regID, now)

		var attendanceErr *Error
		require.True(t, errors.As(err, &attendanceErr))
		assert.Equal(t, REASON_REGISTRATION_DOES_NOT_EXIST, attendanceErr.Reason)
	})

	t.Run("lost race to another check-in", func(t *testing.T) {
		earlier := now.Add(-time.Second)
		reads := 0
		repo := &mockRepository{
			GetRegistrationFunc: func(ctx context.Context, id uuid.UUID) (Registration, error) {
				reads++
				if reads == 1 {
					return Registration{ID: id, Version: 1}, nil
				}
				return Registration{ID: id, Version: 2, AttendedAt: &earlier}, nil
			},
			UpdateRegistrationFunc: func(ctx context.Context, registration Registration) error {
				return NewVersionConflictError("changed", nil)
			},
		}

		_, err := MarkAttendance(context.Background(), repo, regID, now)

		var attendanceErr *Error
		require.True(t, errors.As(err, &attendanceErr))
		assert.Equal(t, REASON_ALREADY_ATTENDED, attendanceErr.Reason)
		assert.Equal(t, 2, reads)
	})

	t.Run("conflict without a check-in is passed on", func(t *testing.T) {
		repo := &mockRepository{
			GetRegistrationFunc: func(ctx context.Context, id uuid.UUID) (Registration, error) {
				return Registration{ID: id, Version: 1}, nil
			},
			UpdateRegistrationFunc: func(ctx context.Context, registration Registration) error {
				return NewVersionConflictError("changed", nil)
			},
		}

		_, err := MarkAttendance(context.Background(), repo, regID, now)

		var attendanceErr *Error
		require.True(t, errors.As(err, &attendanceErr))
		assert.Equal(t, REASON_VERSION_CONFLICT, attendanceErr.Reason)
	})

	t.Run("write times out", func(t *testing.T) {
		repo := &mockRepository{
			GetRegistrationFunc: func(ctx context.Context, id uuid.UUID) (Registration, error) {
				return Registration{ID: id, Version: 1}, nil
			},
			UpdateRegistrationFunc: func(ctx context.Context, registration Registration) error {
				return NewFailedToWriteError("slow", context.DeadlineExceeded)
			},
		}

		_, err := MarkAttendance(context.Background(), repo, regID, now)

		var attendanceErr *Error
		require.True(t, errors.As(err, &attendanceErr))
		assert.Equal(t, REASON_TIMEOUT, attendanceErr.Reason)
	})
}
