package gateway

import (
	"context"
	"net/http"

	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
)

var _ checkin.Gateway = &Client{}

type scanQRRequest struct {
	UserID string `json:"userId"`
}

type scanQRUser struct {
	Name string `json:"name"`
}

type scanQRRegistration struct {
	EventID        string `json:"eventId" validate:"required"`
	EventName      string `json:"eventName"`
	RegistrationID string `json:"registrationId" validate:"required"`
}

type scanQRResponse struct {
	User          *scanQRUser          `json:"user"`
	Registrations []scanQRRegistration `json:"registrations" validate:"required,dive"`
}

type markAttendanceRequest struct {
	RegistrationID string `json:"registrationId"`
}

// ResolveIdentity looks up the attendee behind a scanned user id along with
// the registrations they still have to check in for.
func (c *Client) ResolveIdentity(ctx context.Context, userID string) (checkin.ResolveResult, error) {
	var resp scanQRResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   c.adminPath + "/scan-qr",
		body:   scanQRRequest{UserID: userID},
		authed: true,
	}, &resp)
	if err != nil {
		return checkin.ResolveResult{}, err
	}

	result := checkin.ResolveResult{
		Registrations: make([]checkin.ResolvedRegistration, 0, len(resp.Registrations)),
	}
	if resp.User != nil {
		result.UserName = resp.User.Name
	}
	for _, r := range resp.Registrations {
		result.Registrations = append(result.Registrations, checkin.ResolvedRegistration{
			RegistrationID: r.RegistrationID,
			EventID:        r.EventID,
			EventName:      r.EventName,
		})
	}

	return result, nil
}

func (c *Client) MarkAttendance(ctx context.Context, registrationID string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   c.adminPath + "/mark-attendance",
		body:   markAttendanceRequest{RegistrationID: registrationID},
		authed: true,
	}, nil)
}
