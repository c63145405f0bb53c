package checkin

import "context"

type DecoderConfig struct {
	BoxWidth        int `validate:"gt=0"`
	BoxHeight       int `validate:"gt=0"`
	FramesPerSecond int `validate:"gt=0,lte=60"`
}

func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		BoxWidth:        250,
		BoxHeight:       250,
		FramesPerSecond: 10,
	}
}

// Decoder produces decoded QR payloads until it is stopped.
//
// Stop must release the underlying device and, once it returns, no further
// callbacks may be delivered for that session. Stop on a decoder that isn't
// running is a no-op. Callbacks must not block.
type Decoder interface {
	Start(ctx context.Context, cfg DecoderConfig, onResult func(text string), onError func(err error)) error
	Stop(ctx context.Context) error
}
