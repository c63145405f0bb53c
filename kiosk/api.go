// Package kiosk serves the check-in workflow to a local front end: a JSON
// view of the controller, the operator actions, and a websocket that pushes
// a new view on every change.
package kiosk

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"sync"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
	"github.com/International-Combat-Archery-Alliance/checkin/decoder"
)

//go:embed openapi.yaml
var openapiDoc []byte

// Workflow is the part of the check-in controller the kiosk drives.
type Workflow interface {
	View() checkin.View
	Subscribe(fn func(checkin.View)) func()
	MarkAttendance(ctx context.Context, registrationID string) error
	ScanAnother(ctx context.Context) error
}

var _ Workflow = (*checkin.Controller)(nil)

type API struct {
	workflow       Workflow
	push           *decoder.PushDecoder
	logger         *slog.Logger
	env            api.Environment
	allowedOrigins []string

	streamsDone chan struct{}
	closeOnce   sync.Once
	streams     sync.WaitGroup
}

type Option func(a *API)

// WithPushDecoder lets the front end submit codes it decoded itself. Without
// it POST /checkin/scans answers 404.
func WithPushDecoder(push *decoder.PushDecoder) Option {
	return func(a *API) {
		a.push = push
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(a *API) {
		a.allowedOrigins = origins
	}
}

func NewAPI(workflow Workflow, logger *slog.Logger, env api.Environment, opts ...Option) *API {
	a := &API{
		workflow:    workflow,
		logger:      logger,
		env:         env,
		streamsDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Handler builds the kiosk's HTTP handler with request validation, CORS and
// access logging in front of the routes.
func (a *API) Handler() (http.Handler, error) {
	swagger, err := api.LoadSwagger(openapiDoc)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /checkin", a.getCheckin)
	mux.HandleFunc("POST /checkin/scans", a.postScans)
	mux.HandleFunc("POST /checkin/attendance/{registrationId}", a.postAttendance)
	mux.HandleFunc("POST /checkin/scan-another", a.postScanAnother)
	mux.HandleFunc("GET /checkin/stream", a.getStream)

	return api.UseMiddlewares(mux,
		api.OpenapiValidateMiddleware(swagger, a.logger),
		api.CorsMiddleware(a.env, a.allowedOrigins),
		api.LoggingMiddleware(a.logger),
		api.RequestIdMiddleware(a.logger),
	), nil
}

// CloseStreams disconnects every websocket client and waits for their
// goroutines to exit. http.Server.Shutdown doesn't track hijacked
// connections, so this has to be called separately.
func (a *API) CloseStreams() {
	a.closeOnce.Do(func() {
		close(a.streamsDone)
	})
	a.streams.Wait()
}
