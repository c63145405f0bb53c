// Package backend is a development stand-in for the event platform's admin
// API: staff login plus the two check-in endpoints, backed by DynamoDB.
package backend

import (
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/International-Combat-Archery-Alliance/checkin/attendance"
)

//go:embed openapi.yaml
var openapiDoc []byte

const AdminPath = "/api/admin"

type API struct {
	db             attendance.Repository
	auth           *Authenticator
	limiter        *RateLimiter
	logger         *slog.Logger
	env            api.Environment
	allowedOrigins []string
	now            func() time.Time
}

type Option func(a *API)

func WithRateLimiter(limiter *RateLimiter) Option {
	return func(a *API) {
		a.limiter = limiter
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(a *API) {
		a.allowedOrigins = origins
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

func NewAPI(db attendance.Repository, auth *Authenticator, logger *slog.Logger, env api.Environment, opts ...Option) *API {
	a := &API{
		db:     db,
		auth:   auth,
		logger: logger,
		env:    env,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *API) Handler() (http.Handler, error) {
	swagger, err := api.LoadSwagger(openapiDoc)
	if err != nil {
		return nil, err
	}

	requireAuth := a.auth.AuthMiddleware(a.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", a.postLogin)
	mux.Handle("POST "+AdminPath+"/scan-qr", requireAuth(http.HandlerFunc(a.postScanQR)))
	mux.Handle("POST "+AdminPath+"/mark-attendance", requireAuth(http.HandlerFunc(a.postMarkAttendance)))

	middlewares := []api.MiddlewareFunc{
		api.OpenapiValidateMiddleware(swagger, a.logger),
	}
	if a.limiter != nil {
		middlewares = append(middlewares, a.limiter.Middleware())
	}
	middlewares = append(middlewares,
		api.CorsMiddleware(a.env, a.allowedOrigins),
		api.LoggingMiddleware(a.logger),
		api.RequestIdMiddleware(a.logger),
	)

	return api.UseMiddlewares(mux, middlewares...), nil
}
