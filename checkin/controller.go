package checkin

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/International-Combat-Archery-Alliance/checkin/checkin"

type Option func(c *Controller)

func WithDecoderConfig(cfg DecoderConfig) Option {
	return func(c *Controller) {
		c.decoderCfg = cfg
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = tracer
	}
}

// Controller runs the check-in workflow: scan a code, resolve the attendee,
// review their pending registrations and mark them present, then scan again.
//
// mu guards the workflow state and is never held across calls to the decoder
// or gateway. decoderMu serialises Start/Stop on the decoder; it may be held
// while taking mu, never the other way around.
type Controller struct {
	gateway    Gateway
	decoder    Decoder
	logger     *slog.Logger
	tracer     trace.Tracer
	decoderCfg DecoderConfig
	now        func() time.Time

	mu           sync.Mutex
	started      bool
	bgCtx        context.Context
	state        State
	generation   uint64
	revision     uint64
	nextSession  uint64
	armedSession uint64
	marking      map[string]struct{}
	notice       *Notice
	subscribers  map[int]func(View)
	nextSub      int

	decoderMu      sync.Mutex
	decoderSession uint64

	wg sync.WaitGroup
}

func NewController(gateway Gateway, decoder Decoder, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		gateway:     gateway,
		decoder:     decoder,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		decoderCfg:  DefaultDecoderConfig(),
		now:         time.Now,
		bgCtx:       context.Background(),
		state:       Scanning{},
		marking:     map[string]struct{}{},
		subscribers: map[int]func(View){},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start enters Scanning and arms the decoder. A decoder that fails to start
// is reported and can be retried with ScanAnother.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		phase := c.state.Phase()
		c.mu.Unlock()
		return NewInvalidStateError("start", phase)
	}
	c.started = true
	c.bgCtx = context.WithoutCancel(ctx)
	c.state = Scanning{}
	c.revision++
	c.mu.Unlock()

	c.publish()

	return c.arm(ctx)
}

// MarkAttendance records registrationID as attended. It is only valid while
// reviewing and only for a registration in the pending list; the entry is
// removed from the list once the backend accepts the mark.
func (c *Controller) MarkAttendance(ctx context.Context, registrationID string) error {
	c.mu.Lock()
	reviewing, ok := c.state.(Reviewing)
	if !ok {
		err := NewInvalidStateError("mark attendance", c.state.Phase())
		c.mu.Unlock()
		c.report(ctx, err)
		return err
	}
	if !reviewing.Identity.HasPending(registrationID) {
		c.mu.Unlock()
		err := NewRegistrationNotPendingError(registrationID)
		c.report(ctx, err)
		return err
	}
	if _, inFlight := c.marking[registrationID]; inFlight {
		c.mu.Unlock()
		err := NewMarkInProgressError(registrationID)
		c.report(ctx, err)
		return err
	}
	c.marking[registrationID] = struct{}{}
	gen := c.generation
	c.revision++
	c.mu.Unlock()

	c.publish()

	ctx, span := c.tracer.Start(ctx, "checkin.MarkAttendance", trace.WithAttributes(attribute.String("registration.id", registrationID)))
	defer span.End()

	err := c.gateway.MarkAttendance(ctx, registrationID)

	c.mu.Lock()
	current := gen == c.generation
	if current {
		delete(c.marking, registrationID)
		if err == nil {
			if reviewing, ok := c.state.(Reviewing); ok {
				c.state = Reviewing{Identity: reviewing.Identity.withoutPending(registrationID)}
			}
		}
		c.revision++
	}
	c.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark attendance failed")

		markErr := NewAttendanceMarkError("Failed to mark attendance", err)
		if current {
			c.report(ctx, markErr)
		} else {
			c.logger.WarnContext(ctx, "mark attendance failed for a discarded attendee", slog.String("registrationId", registrationID), slog.Any("error", err))
		}
		return markErr
	}

	if !current {
		c.logger.InfoContext(ctx, "attendance marked for a discarded attendee", slog.String("registrationId", registrationID))
		return nil
	}

	c.logger.InfoContext(ctx, "attendance marked", slog.String("registrationId", registrationID))
	c.publish()

	return nil
}

// ScanAnother discards the current attendee and goes back to scanning.
func (c *Controller) ScanAnother(ctx context.Context) error {
	c.mu.Lock()
	if _, closed := c.state.(Closed); closed {
		c.mu.Unlock()
		return NewInvalidStateError("scan another", CLOSED)
	}
	c.generation++
	c.state = Scanning{}
	// arm replaces the running decoder session, even while scanning
	c.armedSession = 0
	c.marking = map[string]struct{}{}
	c.revision++
	c.mu.Unlock()

	c.publish()

	return c.arm(ctx)
}

// Close tears the workflow down and releases the decoder. Requests still in
// flight finish in the background and their results are dropped.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if _, closed := c.state.(Closed); closed {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	c.state = Closed{}
	c.armedSession = 0
	c.marking = map[string]struct{}{}
	c.revision++
	c.mu.Unlock()

	c.publish()

	c.decoderMu.Lock()
	defer c.decoderMu.Unlock()

	if c.decoderSession == 0 {
		return nil
	}
	c.decoderSession = 0

	err := c.decoder.Stop(ctx)
	if err != nil {
		lifecycleErr := NewDecoderLifecycleError("Failed to stop the scanner on close", err)
		c.report(ctx, lifecycleErr)
		return lifecycleErr
	}

	return nil
}

// Wait blocks until background resolutions have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.viewLocked()
}

// Subscribe registers fn to receive a view after every change. fn runs on the
// goroutine that made the change and must not block or call back into the
// controller.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) viewLocked() View {
	v := View{
		Revision: c.revision,
		Phase:    c.state.Phase(),
		Loading:  c.state.Phase() == RESOLVING,
		Pending:  []Registration{},
		Marking:  slices.Sorted(maps.Keys(c.marking)),
		Notice:   c.notice,
	}

	if reviewing, ok := c.state.(Reviewing); ok {
		v.UserName = reviewing.Identity.UserName
		v.Pending = slices.Clone(reviewing.Identity.Pending)
	}

	return v
}

func (c *Controller) publish() {
	c.mu.Lock()
	v := c.viewLocked()
	subs := slices.Collect(maps.Values(c.subscribers))
	c.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// report logs err and surfaces it to the operator as a notice.
func (c *Controller) report(ctx context.Context, err error) {
	level := slog.LevelError
	var checkinErr *Error
	if errors.As(err, &checkinErr) {
		switch checkinErr.Reason {
		case REASON_PAYLOAD_PARSE, REASON_REGISTRATION_NOT_PENDING, REASON_MARK_IN_PROGRESS, REASON_INVALID_STATE:
			level = slog.LevelWarn
		}
	}
	c.logger.Log(ctx, level, "check-in error", slog.Any("error", err))

	c.mu.Lock()
	c.notice = noticeFromError(err, c.now())
	c.revision++
	c.mu.Unlock()

	c.publish()
}

// arm stops whatever decoder session is still running and starts a new one
// if the controller is scanning without an armed session.
func (c *Controller) arm(ctx context.Context) error {
	c.decoderMu.Lock()
	defer c.decoderMu.Unlock()

	if c.decoderSession != 0 {
		c.decoderSession = 0
		err := c.decoder.Stop(ctx)
		if err != nil {
			c.report(ctx, NewDecoderLifecycleError("Failed to stop the previous scanner session", err))
		}
	}

	c.mu.Lock()
	if _, scanning := c.state.(Scanning); !scanning || c.armedSession != 0 {
		c.mu.Unlock()
		return nil
	}
	c.nextSession++
	session := c.nextSession
	c.armedSession = session
	c.mu.Unlock()

	err := c.decoder.Start(ctx, c.decoderCfg,
		func(text string) { c.onDecoded(session, text) },
		func(err error) { c.onDecoderError(session, err) },
	)
	if err != nil {
		c.mu.Lock()
		if c.armedSession == session {
			c.armedSession = 0
		}
		c.mu.Unlock()

		lifecycleErr := NewDecoderLifecycleError("Failed to start the scanner", err)
		c.report(ctx, lifecycleErr)
		return lifecycleErr
	}
	c.decoderSession = session

	c.logger.DebugContext(ctx, "scanner armed", slog.Uint64("session", session))

	return nil
}

// releaseDecoder stops the decoder if session is still the running one.
func (c *Controller) releaseDecoder(ctx context.Context, session uint64) error {
	c.decoderMu.Lock()
	defer c.decoderMu.Unlock()

	if c.decoderSession != session {
		return nil
	}
	c.decoderSession = 0

	return c.decoder.Stop(ctx)
}

func (c *Controller) onDecoded(session uint64, text string) {
	c.mu.Lock()
	if _, scanning := c.state.(Scanning); !scanning || c.armedSession != session {
		c.mu.Unlock()
		c.logger.Debug("ignoring scan result from an inactive scanner session", slog.Uint64("session", session))
		return
	}
	c.armedSession = 0
	c.state = Resolving{}
	c.revision++
	gen := c.generation
	ctx := c.bgCtx
	c.wg.Add(1)
	c.mu.Unlock()

	c.publish()

	go c.resolve(ctx, gen, session, text)
}

func (c *Controller) onDecoderError(session uint64, err error) {
	c.mu.Lock()
	active := c.armedSession == session
	ctx := c.bgCtx
	c.mu.Unlock()

	if !active {
		return
	}

	c.report(ctx, NewDecoderLifecycleError("Scanner reported an error", err))
}

func (c *Controller) resolve(ctx context.Context, gen uint64, session uint64, text string) {
	defer c.wg.Done()

	ctx, span := c.tracer.Start(ctx, "checkin.ResolveIdentity")
	defer span.End()

	// the scanner must be fully released before the payload is used
	err := c.releaseDecoder(ctx, session)
	if err != nil {
		c.report(ctx, NewDecoderLifecycleError("Failed to stop the scanner after a scan", err))
	}

	userID, err := ParsePayload(text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		c.failResolution(ctx, gen, err)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	result, err := c.gateway.ResolveIdentity(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		c.failResolution(ctx, gen, NewIdentityResolutionError("Failed to look up the scanned attendee", err))
		return
	}

	identity := identityFromResult(result)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "discarding resolved attendee after reset", slog.String("userId", userID))
		return
	}
	c.state = Reviewing{Identity: identity}
	c.revision++
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "attendee resolved",
		slog.String("userId", userID),
		slog.Int("pendingRegistrations", len(identity.Pending)),
	)

	c.publish()
}

func (c *Controller) failResolution(ctx context.Context, gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "dropping failed resolution after reset", slog.Any("error", err))
		return
	}
	c.state = Scanning{}
	c.revision++
	c.mu.Unlock()

	c.report(ctx, err)

	_ = c.arm(ctx)
}
