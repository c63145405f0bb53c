// Package decoder provides QR decode capabilities for the check-in workflow.
//
// Callbacks are delivered while the decoder holds its lock, so once Stop
// returns no further callbacks run. Callbacks must not call Start or Stop.
package decoder

import (
	"errors"
	"fmt"

	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
	"github.com/International-Combat-Archery-Alliance/checkin/validate"
	"golang.org/x/time/rate"
)

var (
	ErrAlreadyRunning = errors.New("decoder is already running")
	ErrNotScanning    = errors.New("decoder is not scanning")
	ErrThrottled      = errors.New("scan arrived faster than the configured frame rate")
)

type session struct {
	onResult func(text string)
	onError  func(err error)
	limiter  *rate.Limiter
}

func newSession(cfg checkin.DecoderConfig, onResult func(string), onError func(error)) (*session, error) {
	err := validate.Struct(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}

	return &session{
		onResult: onResult,
		onError:  onError,
		limiter:  rate.NewLimiter(rate.Limit(cfg.FramesPerSecond), 1),
	}, nil
}
