package checkin

import (
	"context"
	"log/slog"
	"sync"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ Gateway = &mockGateway{}

type mockGateway struct {
	ResolveIdentityFunc func(ctx context.Context, userID string) (ResolveResult, error)
	MarkAttendanceFunc  func(ctx context.Context, registrationID string) error

	mu              sync.Mutex
	resolvedUserIDs []string
	markedIDs       []string
}

func (m *mockGateway) ResolveIdentity(ctx context.Context, userID string) (ResolveResult, error) {
	m.mu.Lock()
	m.resolvedUserIDs = append(m.resolvedUserIDs, userID)
	m.mu.Unlock()

	return m.ResolveIdentityFunc(ctx, userID)
}

func (m *mockGateway) MarkAttendance(ctx context.Context, registrationID string) error {
	m.mu.Lock()
	m.markedIDs = append(m.markedIDs, registrationID)
	m.mu.Unlock()

	if m.MarkAttendanceFunc != nil {
		return m.MarkAttendanceFunc(ctx, registrationID)
	}
	return nil
}

func (m *mockGateway) resolveCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resolvedUserIDs...)
}

func (m *mockGateway) markCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.markedIDs...)
}

var _ Decoder = &mockDecoder{}

type mockDecoder struct {
	StartErr error
	StopErr  error

	mu       sync.Mutex
	running  bool
	starts   int
	stops    int
	cfg      DecoderConfig
	onResult func(string)
	onError  func(error)
}

func (m *mockDecoder) Start(ctx context.Context, cfg DecoderConfig, onResult func(text string), onError func(err error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.starts++
	if m.StartErr != nil {
		return m.StartErr
	}
	m.running = true
	m.cfg = cfg
	m.onResult = onResult
	m.onError = onError
	return nil
}

func (m *mockDecoder) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stops++
	m.running = false
	return m.StopErr
}

// emit delivers text through the callback of the running session, as a
// real decoder would from its own goroutine. A stopped decoder drops it.
func (m *mockDecoder) emit(text string) {
	m.mu.Lock()
	fn := m.onResult
	running := m.running
	m.mu.Unlock()

	if !running {
		return
	}
	fn(text)
}

func (m *mockDecoder) fail(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()

	fn(err)
}

func (m *mockDecoder) counts() (starts int, stops int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops, m.running
}
