package backend

import (
	"context"
	"log/slog"
	"sync"

	"github.com/International-Combat-Archery-Alliance/checkin/attendance"
	"github.com/google/uuid"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ attendance.Repository = &memoryRepository{}

// memoryRepository is a map backed attendance.Repository. Setting one of the
// Err fields makes the matching calls fail. BeforeUpdate runs ahead of each
// update, outside the lock.
type memoryRepository struct {
	GetAttendeeErr error
	UpdateErr      error
	BeforeUpdate   func()

	mu            sync.Mutex
	attendees     map[uuid.UUID]attendance.Attendee
	registrations map[uuid.UUID]attendance.Registration
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		attendees:     map[uuid.UUID]attendance.Attendee{},
		registrations: map[uuid.UUID]attendance.Registration{},
	}
}

func (m *memoryRepository) CreateAttendee(ctx context.Context, attendee attendance.Attendee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.attendees[attendee.ID]; ok {
		return attendance.NewAlreadyExistsError("attendee exists", nil)
	}
	m.attendees[attendee.ID] = attendee
	return nil
}

func (m *memoryRepository) GetAttendee(ctx context.Context, id uuid.UUID) (attendance.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetAttendeeErr != nil {
		return attendance.Attendee{}, m.GetAttendeeErr
	}
	a, ok := m.attendees[id]
	if !ok {
		return attendance.Attendee{}, attendance.NewAttendeeDoesNotExistError("attendee not found", nil)
	}
	return a, nil
}

func (m *memoryRepository) CreateRegistration(ctx context.Context, registration attendance.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.attendees[registration.AttendeeID]; !ok {
		return attendance.NewAttendeeDoesNotExistError("attendee not found", nil)
	}
	m.registrations[registration.ID] = registration
	return nil
}

func (m *memoryRepository) GetRegistration(ctx context.Context, id uuid.UUID) (attendance.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.registrations[id]
	if !ok {
		return attendance.Registration{}, attendance.NewRegistrationDoesNotExistError("registration not found", nil)
	}
	return r, nil
}

func (m *memoryRepository) GetRegistrationsForAttendee(ctx context.Context, attendeeID uuid.UUID) ([]attendance.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	regs := []attendance.Registration{}
	for _, r := range m.registrations {
		if r.AttendeeID == attendeeID {
			regs = append(regs, r)
		}
	}
	return regs, nil
}

func (m *memoryRepository) UpdateRegistration(ctx context.Context, registration attendance.Registration) error {
	if m.BeforeUpdate != nil {
		m.BeforeUpdate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	existing, ok := m.registrations[registration.ID]
	if !ok || existing.Version != registration.Version-1 {
		return attendance.NewVersionConflictError("version conflict", nil)
	}
	m.registrations[registration.ID] = registration
	return nil
}
