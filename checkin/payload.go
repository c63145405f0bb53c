package checkin

import (
	"encoding/json"
	"strings"
)

type scanPayload struct {
	UserID *string `json:"userId"`
}

// ParsePayload extracts the user id from the text encoded in an attendee's QR
// code. The payload must be a JSON object with a non-empty string userId.
func ParsePayload(text string) (string, error) {
	var p scanPayload
	err := json.Unmarshal([]byte(text), &p)
	if err != nil {
		return "", NewPayloadParseError("Scanned code is not a check-in code", err)
	}

	if p.UserID == nil {
		return "", NewPayloadParseError("Scanned code has no userId", nil)
	}
	userID := strings.TrimSpace(*p.UserID)
	if userID == "" {
		return "", NewPayloadParseError("Scanned code has no userId", nil)
	}

	return userID, nil
}
