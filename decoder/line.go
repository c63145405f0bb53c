package decoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
)

var _ checkin.Decoder = &LineDecoder{}

// LineDecoder reads one payload per line from src. Handheld QR scanners in
// keyboard mode type the decoded text followed by Enter, so src is usually
// stdin or the scanner's tty. Lines read while no session is running are
// dropped.
type LineDecoder struct {
	src    io.Reader
	logger *slog.Logger

	pumpOnce sync.Once

	mu      sync.Mutex
	session *session
	srcErr  error
}

func NewLineDecoder(src io.Reader, logger *slog.Logger) *LineDecoder {
	return &LineDecoder{
		src:    src,
		logger: logger,
	}
}

func (l *LineDecoder) Start(ctx context.Context, cfg checkin.DecoderConfig, onResult func(text string), onError func(err error)) error {
	s, err := newSession(cfg, onResult, onError)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.srcErr != nil {
		return fmt.Errorf("scanner input is closed: %w", l.srcErr)
	}
	if l.session != nil {
		return ErrAlreadyRunning
	}
	l.session = s

	l.pumpOnce.Do(func() {
		go l.pump()
	})

	return nil
}

func (l *LineDecoder) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.session = nil
	return nil
}

// Close closes src when it can be closed, ending the read loop.
func (l *LineDecoder) Close() error {
	if c, ok := l.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *LineDecoder) pump() {
	scanner := bufio.NewScanner(l.src)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		l.deliver(text)
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.srcErr = err
	if l.session != nil {
		l.session.onError(fmt.Errorf("scanner input ended: %w", err))
	}
}

func (l *LineDecoder) deliver(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session == nil {
		l.logger.Debug("dropping scan while not scanning")
		return
	}
	if !l.session.limiter.Allow() {
		l.logger.Debug("dropping scan above frame rate")
		return
	}

	l.session.onResult(text)
}
