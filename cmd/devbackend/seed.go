package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/attendance"
	"github.com/International-Combat-Archery-Alliance/checkin/dynamo"
	"github.com/google/uuid"
)

var sampleEvents = []string{"Spring Open", "Summer Cup", "Autumn Invitational"}

// seed creates the table if needed and adds one attendee registered for a
// few upcoming events, then prints the QR payload that resolves to them.
func seed(ctx context.Context, db *dynamo.DB, logger *slog.Logger) error {
	err := db.CreateTable(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)

	attendee := attendance.Attendee{
		ID:      uuid.New(),
		Version: 1,
		Name:    "Sample Archer",
		Email:   "archer@example.com",
	}
	err = db.CreateAttendee(ctx, attendee)
	if err != nil {
		return fmt.Errorf("failed to create attendee: %w", err)
	}

	for i, name := range sampleEvents {
		reg := attendance.Registration{
			ID:             uuid.New(),
			Version:        1,
			AttendeeID:     attendee.ID,
			EventID:        uuid.New(),
			EventName:      name,
			EventStartTime: now.AddDate(0, 0, 7*(i+1)),
			RegisteredAt:   now,
		}
		err = db.CreateRegistration(ctx, reg)
		if err != nil {
			return fmt.Errorf("failed to create registration for %q: %w", name, err)
		}
		logger.Info("seeded registration", "registrationId", reg.ID, "event", name)
	}

	payload, err := json.Marshal(map[string]string{"userId": attendee.ID.String()})
	if err != nil {
		return err
	}

	logger.Info("seeded attendee", "userId", attendee.ID, "name", attendee.Name)
	fmt.Println(string(payload))

	return nil
}
