package checkin

type Phase int

const (
	SCANNING Phase = iota
	RESOLVING
	REVIEWING
	CLOSED
)

func (p Phase) String() string {
	switch p {
	case SCANNING:
		return "SCANNING"
	case RESOLVING:
		return "RESOLVING"
	case REVIEWING:
		return "REVIEWING"
	case CLOSED:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// State is one of Scanning, Resolving, Reviewing or Closed. Only Reviewing
// carries an identity, so a pending list can't exist outside of review.
type State interface {
	Phase() Phase
	isState()
}

type Scanning struct{}

func (Scanning) Phase() Phase { return SCANNING }
func (Scanning) isState()     {}

type Resolving struct{}

func (Resolving) Phase() Phase { return RESOLVING }
func (Resolving) isState()     {}

type Reviewing struct {
	Identity Identity
}

func (Reviewing) Phase() Phase { return REVIEWING }
func (Reviewing) isState()     {}

type Closed struct{}

func (Closed) Phase() Phase { return CLOSED }
func (Closed) isState()     {}
