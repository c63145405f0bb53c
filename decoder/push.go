package decoder

import (
	"context"
	"sync"

	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
)

var _ checkin.Decoder = &PushDecoder{}

// PushDecoder accepts payloads decoded elsewhere, such as by a browser
// camera widget that posts each decoded code to the kiosk.
type PushDecoder struct {
	mu      sync.Mutex
	session *session
}

func NewPushDecoder() *PushDecoder {
	return &PushDecoder{}
}

func (p *PushDecoder) Start(ctx context.Context, cfg checkin.DecoderConfig, onResult func(text string), onError func(err error)) error {
	s, err := newSession(cfg, onResult, onError)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		return ErrAlreadyRunning
	}
	p.session = s

	return nil
}

func (p *PushDecoder) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.session = nil
	return nil
}

func (p *PushDecoder) Scanning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.session != nil
}

// Submit hands a decoded payload to the running session.
func (p *PushDecoder) Submit(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return ErrNotScanning
	}
	if !p.session.limiter.Allow() {
		return ErrThrottled
	}

	p.session.onResult(text)
	return nil
}

// Fail reports a capture problem, such as a denied camera, to the running
// session.
func (p *PushDecoder) Fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return ErrNotScanning
	}

	p.session.onError(err)
	return nil
}
