package checkin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aliceResult() ResolveResult {
	return ResolveResult{
		UserName: " Alice ",
		Registrations: []ResolvedRegistration{
			{RegistrationID: "r1", EventID: "e1", EventName: "Gala"},
		},
	}
}

func newStartedController(t *testing.T, gw *mockGateway, dec *mockDecoder) *Controller {
	t.Helper()

	c := NewController(gw, dec, noopLogger)
	require.NoError(t, c.Start(context.Background()))

	return c
}

func scanAndWait(c *Controller, dec *mockDecoder, payload string) {
	dec.emit(payload)
	c.Wait()
}

func TestStart(t *testing.T) {
	t.Run("arms the decoder with the default scan box", func(t *testing.T) {
		dec := &mockDecoder{}
		c := newStartedController(t, &mockGateway{}, dec)

		starts, stops, running := dec.counts()
		assert.Equal(t, 1, starts)
		assert.Equal(t, 0, stops)
		assert.True(t, running)
		assert.Equal(t, DecoderConfig{BoxWidth: 250, BoxHeight: 250, FramesPerSecond: 10}, dec.cfg)
		assert.Equal(t, SCANNING, c.View().Phase)
	})

	t.Run("cannot start twice", func(t *testing.T) {
		c := newStartedController(t, &mockGateway{}, &mockDecoder{})

		err := c.Start(context.Background())

		var checkinErr *Error
		require.True(t, errors.As(err, &checkinErr))
		assert.Equal(t, REASON_INVALID_STATE, checkinErr.Reason)
	})

	t.Run("decoder that fails to start is reported and can be retried", func(t *testing.T) {
		dec := &mockDecoder{StartErr: errors.New("camera busy")}
		c := NewController(&mockGateway{}, dec, noopLogger)

		err := c.Start(context.Background())

		var checkinErr *Error
		require.True(t, errors.As(err, &checkinErr))
		assert.Equal(t, REASON_DECODER_LIFECYCLE, checkinErr.Reason)
		require.NotNil(t, c.View().Notice)
		assert.Equal(t, REASON_DECODER_LIFECYCLE, c.View().Notice.Reason)
		assert.Equal(t, SCANNING, c.View().Phase)

		dec.mu.Lock()
		dec.StartErr = nil
		dec.mu.Unlock()

		require.NoError(t, c.ScanAnother(context.Background()))
		starts, _, running := dec.counts()
		assert.Equal(t, 2, starts)
		assert.True(t, running)
	})
}

func TestResolve(t *testing.T) {
	t.Run("successful scan shows the trimmed name and pending registrations", func(t *testing.T) {
		dec := &mockDecoder{}
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				return aliceResult(), nil
			},
		}
		c := newStartedController(t, gw, dec)

		scanAndWait(c, dec, `{"userId":"u1"}`)

		view := c.View()
		assert.Equal(t, REVIEWING, view.Phase)
		assert.False(t, view.Loading)
		assert.Equal(t, "Alice", view.UserName)
		assert.Empty(t, cmp.Diff([]Registration{{RegistrationID: "r1", EventID: "e1", EventTitle: "Gala"}}, view.Pending))
		assert.Equal(t, []string{"u1"}, gw.resolveCalls())

		_, stops, running := dec.counts()
		assert.Equal(t, 1, stops)
		assert.False(t, running)
	})

	t.Run("malformed payloads return to scanning without a request", func(t *testing.T) {
		payloads := []string{
			"not-json",
			"",
			"[]",
			"{}",
			`{"userId":""}`,
			`{"userId":"   "}`,
			`{"userId":42}`,
			`{"user":"u1"}`,
		}

		for _, payload := range payloads {
			t.Run(payload, func(t *testing.T) {
				dec := &mockDecoder{}
				gw := &mockGateway{}
				c := newStartedController(t, gw, dec)

				scanAndWait(c, dec, payload)

				view := c.View()
				assert.Equal(t, SCANNING, view.Phase)
				assert.Empty(t, view.UserName)
				assert.Empty(t, view.Pending)
				require.NotNil(t, view.Notice)
				assert.Equal(t, REASON_PAYLOAD_PARSE, view.Notice.Reason)
				assert.Empty(t, gw.resolveCalls())

				starts, stops, running := dec.counts()
				assert.Equal(t, 2, starts)
				assert.Equal(t, 1, stops)
				assert.True(t, running)
			})
		}
	})

	t.Run("failed resolution returns to scanning with no partial identity", func(t *testing.T) {
		dec := &mockDecoder{}
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				return ResolveResult{}, errors.New("401 unauthorized")
			},
		}
		c := newStartedController(t, gw, dec)

		scanAndWait(c, dec, `{"userId":"u1"}`)

		view := c.View()
		assert.Equal(t, SCANNING, view.Phase)
		assert.Empty(t, view.UserName)
		assert.Empty(t, view.Pending)
		require.NotNil(t, view.Notice)
		assert.Equal(t, REASON_IDENTITY_RESOLUTION, view.Notice.Reason)

		_, _, running := dec.counts()
		assert.True(t, running)
	})

	t.Run("recovers after a malformed scan", func(t *testing.T) {
		dec := &mockDecoder{}
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				return aliceResult(), nil
			},
		}
		c := newStartedController(t, gw, dec)

		scanAndWait(c, dec, "not-json")
		scanAndWait(c, dec, `{"userId":"u1"}`)

		assert.Equal(t, REVIEWING, c.View().Phase)
		assert.Equal(t, "Alice", c.View().UserName)
	})

	t.Run("a second result while resolving is ignored", func(t *testing.T) {
		dec := &mockDecoder{}
		release := make(chan struct{})
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				<-release
				return aliceResult(), nil
			},
		}
		c := newStartedController(t, gw, dec)

		dec.emit(`{"userId":"u1"}`)
		assert.Equal(t, RESOLVING, c.View().Phase)
		assert.True(t, c.View().Loading)

		dec.emit(`{"userId":"u2"}`)
		close(release)
		c.Wait()

		assert.Equal(t, []string{"u1"}, gw.resolveCalls())
		assert.Equal(t, REVIEWING, c.View().Phase)
	})

	t.Run("duplicate registrations are collapsed", func(t *testing.T) {
		dec := &mockDecoder{}
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				return ResolveResult{
					UserName: "Bob",
					Registrations: []ResolvedRegistration{
						{RegistrationID: "r1", EventID: "e1", EventName: "Gala"},
						{RegistrationID: "r2", EventID: "e2", EventName: "Workshop"},
						{RegistrationID: "r1", EventID: "e1", EventName: "Gala again"},
					},
				}, nil
			},
		}
		c := newStartedController(t, gw, dec)

		scanAndWait(c, dec, `{"userId":"u1"}`)

		want := []Registration{
			{RegistrationID: "r1", EventID: "e1", EventTitle: "Gala"},
			{RegistrationID: "r2", EventID: "e2", EventTitle: "Workshop"},
		}
		assert.Empty(t, cmp.Diff(want, c.View().Pending))
	})

	t.Run("stop failure after a scan is reported but resolution continues", func(t *testing.T) {
		dec := &mockDecoder{StopErr: errors.New("device gone")}
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				return aliceResult(), nil
			},
		}
		c := newStartedController(t, gw, dec)

		scanAndWait(c, dec, `{"userId":"u1"}`)

		assert.Equal(t, REVIEWING, c.View().Phase)
		require.NotNil(t, c.View().Notice)
		assert.Equal(t, REASON_DECODER_LIFECYCLE, c.View().Notice.Reason)
	})

	t.Run("decoder errors are reported without changing state", func(t *testing.T) {
		dec := &mockDecoder{}
		c := newStartedController(t, &mockGateway{}, dec)

		dec.fail(errors.New("frame dropped"))

		assert.Equal(t, SCANNING, c.View().Phase)
		require.NotNil(t, c.View().Notice)
		assert.Equal(t, REASON_DECODER_LIFECYCLE, c.View().Notice.Reason)
	})
}

func newReviewingController(t *testing.T, gw *mockGateway) (*Controller, *mockDecoder) {
	t.Helper()

	if gw.ResolveIdentityFunc == nil {
		gw.ResolveIdentityFunc = func(ctx context.Context, userID string) (ResolveResult, error) {
			return ResolveResult{
				UserName: "Alice",
				Registrations: []ResolvedRegistration{
					{RegistrationID: "r1", EventID: "e1", EventName: "Gala"},
					{RegistrationID: "r2", EventID: "e2", EventName: "Workshop"},
				},
			}, nil
		}
	}

	dec := &mockDecoder{}
	c := newStartedController(t, gw, dec)
	scanAndWait(c, dec, `{"userId":"u1"}`)
	require.Equal(t, REVIEWING, c.View().Phase)

	return c, dec
}

func TestMarkAttendance(t *testing.T) {
	ctx := context.Background()

	t.Run("success removes exactly that registration", func(t *testing.T) {
		gw := &mockGateway{}
		c, _ := newReviewingController(t, gw)

		require.NoError(t, c.MarkAttendance(ctx, "r1"))

		view := c.View()
		assert.Equal(t, REVIEWING, view.Phase)
		assert.Empty(t, cmp.Diff([]Registration{{RegistrationID: "r2", EventID: "e2", EventTitle: "Workshop"}}, view.Pending))
		assert.Empty(t, view.Marking)
		assert.Equal(t, []string{"r1"}, gw.markCalls())
	})

	t.Run("marking the only registration empties the list", func(t *testing.T) {
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				return aliceResult(), nil
			},
		}
		c, _ := newReviewingController(t, gw)

		require.NoError(t, c.MarkAttendance(ctx, "r1"))

		assert.Equal(t, []Registration{}, c.View().Pending)
		assert.Equal(t, REVIEWING, c.View().Phase)
	})

	t.Run("failure leaves the list unchanged for retry", func(t *testing.T) {
		attempts := 0
		gw := &mockGateway{
			MarkAttendanceFunc: func(ctx context.Context, registrationID string) error {
				attempts++
				if attempts == 1 {
					return errors.New("500 internal error")
				}
				return nil
			},
		}
		c, _ := newReviewingController(t, gw)
		before := c.View().Pending

		err := c.MarkAttendance(ctx, "r1")

		var checkinErr *Error
		require.True(t, errors.As(err, &checkinErr))
		assert.Equal(t, REASON_ATTENDANCE_MARK, checkinErr.Reason)
		assert.Empty(t, cmp.Diff(before, c.View().Pending))
		require.NotNil(t, c.View().Notice)
		assert.Equal(t, REASON_ATTENDANCE_MARK, c.View().Notice.Reason)

		require.NoError(t, c.MarkAttendance(ctx, "r1"))
		assert.Len(t, c.View().Pending, 1)
	})

	t.Run("unknown registration is a no-op without a request", func(t *testing.T) {
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				return aliceResult(), nil
			},
		}
		c, _ := newReviewingController(t, gw)

		err := c.MarkAttendance(ctx, "r-missing")

		var checkinErr *Error
		require.True(t, errors.As(err, &checkinErr))
		assert.Equal(t, REASON_REGISTRATION_NOT_PENDING, checkinErr.Reason)
		assert.Empty(t, cmp.Diff([]Registration{{RegistrationID: "r1", EventID: "e1", EventTitle: "Gala"}}, c.View().Pending))
		assert.Empty(t, gw.markCalls())
	})

	t.Run("already marked registration cannot be marked again", func(t *testing.T) {
		gw := &mockGateway{}
		c, _ := newReviewingController(t, gw)

		require.NoError(t, c.MarkAttendance(ctx, "r1"))
		err := c.MarkAttendance(ctx, "r1")

		var checkinErr *Error
		require.True(t, errors.As(err, &checkinErr))
		assert.Equal(t, REASON_REGISTRATION_NOT_PENDING, checkinErr.Reason)
		assert.Equal(t, []string{"r1"}, gw.markCalls())
	})

	t.Run("not allowed outside of review", func(t *testing.T) {
		gw := &mockGateway{}
		c := newStartedController(t, gw, &mockDecoder{})

		err := c.MarkAttendance(ctx, "r1")

		var checkinErr *Error
		require.True(t, errors.As(err, &checkinErr))
		assert.Equal(t, REASON_INVALID_STATE, checkinErr.Reason)
		assert.Empty(t, gw.markCalls())
	})

	t.Run("concurrent marks only remove the ones that succeeded", func(t *testing.T) {
		r1Started := make(chan struct{})
		r1Release := make(chan struct{})
		gw := &mockGateway{
			MarkAttendanceFunc: func(ctx context.Context, registrationID string) error {
				if registrationID == "r1" {
					close(r1Started)
					<-r1Release
					return errors.New("timeout")
				}
				return nil
			},
		}
		c, _ := newReviewingController(t, gw)

		var wg sync.WaitGroup
		var r1Err error
		wg.Add(1)
		go func() {
			defer wg.Done()
			r1Err = c.MarkAttendance(ctx, "r1")
		}()
		<-r1Started

		assert.Equal(t, []string{"r1"}, c.View().Marking)

		dupErr := c.MarkAttendance(ctx, "r1")
		var checkinErr *Error
		require.True(t, errors.As(dupErr, &checkinErr))
		assert.Equal(t, REASON_MARK_IN_PROGRESS, checkinErr.Reason)

		require.NoError(t, c.MarkAttendance(ctx, "r2"))
		close(r1Release)
		wg.Wait()

		assert.Error(t, r1Err)
		assert.Empty(t, cmp.Diff([]Registration{{RegistrationID: "r1", EventID: "e1", EventTitle: "Gala"}}, c.View().Pending))
		assert.Empty(t, c.View().Marking)
	})

	t.Run("success after the attendee was discarded does not touch the new attendee", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		gw := &mockGateway{
			MarkAttendanceFunc: func(ctx context.Context, registrationID string) error {
				close(started)
				<-release
				return nil
			},
		}
		c, dec := newReviewingController(t, gw)

		done := make(chan error)
		go func() {
			done <- c.MarkAttendance(ctx, "r1")
		}()
		<-started

		require.NoError(t, c.ScanAnother(ctx))
		scanAndWait(c, dec, `{"userId":"u1"}`)
		require.Equal(t, REVIEWING, c.View().Phase)

		close(release)
		require.NoError(t, <-done)

		assert.Len(t, c.View().Pending, 2)
	})
}

func TestScanAnother(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the attendee and re-arms the decoder", func(t *testing.T) {
		c, dec := newReviewingController(t, &mockGateway{})

		require.NoError(t, c.ScanAnother(ctx))

		view := c.View()
		assert.Equal(t, SCANNING, view.Phase)
		assert.Empty(t, view.UserName)
		assert.Empty(t, view.Pending)
		assert.Empty(t, view.Marking)

		starts, _, running := dec.counts()
		assert.Equal(t, 2, starts)
		assert.True(t, running)
	})

	t.Run("while scanning restarts the decoder", func(t *testing.T) {
		dec := &mockDecoder{}
		c := newStartedController(t, &mockGateway{}, dec)

		require.NoError(t, c.ScanAnother(ctx))
		require.NoError(t, c.ScanAnother(ctx))

		starts, stops, running := dec.counts()
		assert.Equal(t, 3, starts)
		assert.Equal(t, 2, stops)
		assert.True(t, running)
		assert.Equal(t, SCANNING, c.View().Phase)
	})

	t.Run("recovers a decoder that reported an error", func(t *testing.T) {
		dec := &mockDecoder{}
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				return aliceResult(), nil
			},
		}
		c := newStartedController(t, gw, dec)

		dec.fail(errors.New("camera unplugged"))
		require.NotNil(t, c.View().Notice)

		require.NoError(t, c.ScanAnother(ctx))

		starts, _, running := dec.counts()
		assert.Equal(t, 2, starts)
		assert.True(t, running)

		scanAndWait(c, dec, `{"userId":"u1"}`)

		view := c.View()
		assert.Equal(t, REVIEWING, view.Phase)
		assert.Equal(t, "Alice", view.UserName)
		assert.Equal(t, []string{"u1"}, gw.resolveCalls())
	})

	t.Run("while resolving discards the late result", func(t *testing.T) {
		dec := &mockDecoder{}
		release := make(chan struct{})
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				<-release
				return aliceResult(), nil
			},
		}
		c := newStartedController(t, gw, dec)

		dec.emit(`{"userId":"u1"}`)
		require.NoError(t, c.ScanAnother(ctx))
		close(release)
		c.Wait()

		view := c.View()
		assert.Equal(t, SCANNING, view.Phase)
		assert.Empty(t, view.UserName)
		assert.Empty(t, view.Pending)

		_, _, running := dec.counts()
		assert.True(t, running)
	})

	t.Run("not allowed once closed", func(t *testing.T) {
		c := newStartedController(t, &mockGateway{}, &mockDecoder{})
		require.NoError(t, c.Close(ctx))

		err := c.ScanAnother(ctx)

		var checkinErr *Error
		require.True(t, errors.As(err, &checkinErr))
		assert.Equal(t, REASON_INVALID_STATE, checkinErr.Reason)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("releases the decoder while scanning", func(t *testing.T) {
		dec := &mockDecoder{}
		c := newStartedController(t, &mockGateway{}, dec)

		require.NoError(t, c.Close(ctx))
		require.NoError(t, c.Close(ctx))

		_, stops, running := dec.counts()
		assert.Equal(t, 1, stops)
		assert.False(t, running)
		assert.Equal(t, CLOSED, c.View().Phase)
	})

	t.Run("while resolving drops the result and leaves the decoder stopped", func(t *testing.T) {
		dec := &mockDecoder{}
		release := make(chan struct{})
		gw := &mockGateway{
			ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
				<-release
				return ResolveResult{}, errors.New("connection reset")
			},
		}
		c := newStartedController(t, gw, dec)

		dec.emit(`{"userId":"u1"}`)
		require.NoError(t, c.Close(ctx))
		close(release)
		c.Wait()

		starts, _, running := dec.counts()
		assert.Equal(t, 1, starts)
		assert.False(t, running)
		assert.Equal(t, CLOSED, c.View().Phase)
	})

	t.Run("stop failure is returned", func(t *testing.T) {
		dec := &mockDecoder{StopErr: errors.New("device busy")}
		c := newStartedController(t, &mockGateway{}, dec)

		err := c.Close(ctx)

		var checkinErr *Error
		require.True(t, errors.As(err, &checkinErr))
		assert.Equal(t, REASON_DECODER_LIFECYCLE, checkinErr.Reason)
	})

	t.Run("stale results after close are ignored", func(t *testing.T) {
		dec := &mockDecoder{}
		gw := &mockGateway{}
		c := newStartedController(t, gw, dec)
		dec.mu.Lock()
		staleResult := dec.onResult
		dec.mu.Unlock()
		require.NoError(t, c.Close(ctx))

		staleResult(`{"userId":"u1"}`)
		c.Wait()

		assert.Empty(t, gw.resolveCalls())
		assert.Equal(t, CLOSED, c.View().Phase)
	})
}

func TestSubscribe(t *testing.T) {
	dec := &mockDecoder{}
	gw := &mockGateway{
		ResolveIdentityFunc: func(ctx context.Context, userID string) (ResolveResult, error) {
			return aliceResult(), nil
		},
	}
	c := NewController(gw, dec, noopLogger, WithClock(func() time.Time { return time.Unix(0, 0) }))

	var mu sync.Mutex
	var phases []Phase
	var lastRevision uint64
	unsubscribe := c.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, v.Phase)
		lastRevision = v.Revision
	})

	require.NoError(t, c.Start(context.Background()))
	scanAndWait(c, dec, `{"userId":"u1"}`)
	unsubscribe()
	require.NoError(t, c.ScanAnother(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{SCANNING, RESOLVING, REVIEWING}, phases)
	assert.Less(t, lastRevision, c.View().Revision)
}
