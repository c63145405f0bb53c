package kiosk

import (
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
)

type Registration struct {
	RegistrationID string `json:"registrationId"`
	EventID        string `json:"eventId"`
	EventTitle     string `json:"eventTitle"`
}

type Notice struct {
	Reason  string    `json:"reason"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type View struct {
	Revision uint64         `json:"revision"`
	Phase    string         `json:"phase"`
	Loading  bool           `json:"loading"`
	UserName string         `json:"userName"`
	Pending  []Registration `json:"pending"`
	Marking  []string       `json:"marking"`
	Notice   *Notice        `json:"notice,omitempty"`
}

func viewToApiView(v checkin.View) View {
	out := View{
		Revision: v.Revision,
		Phase:    v.Phase.String(),
		Loading:  v.Loading,
		UserName: v.UserName,
		Pending:  make([]Registration, 0, len(v.Pending)),
		Marking:  []string{},
	}

	for _, r := range v.Pending {
		out.Pending = append(out.Pending, Registration{
			RegistrationID: r.RegistrationID,
			EventID:        r.EventID,
			EventTitle:     r.EventTitle,
		})
	}
	out.Marking = append(out.Marking, v.Marking...)

	if v.Notice != nil {
		out.Notice = &Notice{
			Reason:  string(v.Notice.Reason),
			Message: v.Notice.Message,
			At:      v.Notice.At,
		}
	}

	return out
}
