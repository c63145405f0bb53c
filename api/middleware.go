package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/google/uuid"
	middleware "github.com/oapi-codegen/nethttp-middleware"
	"github.com/rs/cors"
)

type MiddlewareFunc func(next http.Handler) http.Handler

// UseMiddlewares wraps h so the last middleware given runs first.
func UseMiddlewares(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	s := h

	for _, mw := range middlewares {
		s = mw(s)
	}

	return s
}

// RequestIdMiddleware tags every request with an id, taken from the
// X-Request-Id header when the caller sent a valid one, and stores a logger
// carrying it in the request context.
func RequestIdMiddleware(logger *slog.Logger) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestId, err := uuid.Parse(r.Header.Get("X-Request-Id"))
			if err != nil {
				requestId = uuid.New()
			}
			w.Header().Set("X-Request-Id", requestId.String())

			ctx := ctxWithRequestId(r.Context(), requestId)
			ctx = CtxWithLogger(ctx, logger.With(slog.String("request-id", requestId.String())))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func LoggingMiddleware(logger *slog.Logger) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			loggingRW := newLoggingResponseWriter(w)

			// process the request
			next.ServeHTTP(loggingRW, r)

			GetLoggerFromCtx(r.Context(), logger).InfoContext(r.Context(),
				"Access log",
				slog.String("latency", formatDuration(time.Since(start))),
				slog.Int64("request-content-length", r.ContentLength),
				slog.Int("resp-body-size", loggingRW.responseSize),
				slog.String("host", r.Host),
				slog.String("method", r.Method),
				slog.Int("status-code", loggingRW.statusCode),
				slog.String("path", r.URL.Path),
			)
		})
	}
}

// OpenapiValidateMiddleware rejects requests that don't match swagger before
// they reach a handler.
func OpenapiValidateMiddleware(swagger *openapi3.T, logger *slog.Logger) MiddlewareFunc {
	return middleware.OapiRequestValidatorWithOptions(swagger, &middleware.Options{
		ErrorHandlerWithOpts: func(ctx context.Context, err error, w http.ResponseWriter, r *http.Request, opts middleware.ErrorHandlerOpts) {
			var requestErr *openapi3filter.RequestError
			var secErr *openapi3filter.SecurityRequirementsError

			code := InternalError
			switch {
			case errors.As(err, &requestErr):
				code = InputValidationError
			case errors.As(err, &secErr):
				code = AuthError
			case opts.StatusCode == http.StatusNotFound:
				code = NotFound
			}

			WriteError(w, GetLoggerFromCtx(ctx, logger), opts.StatusCode, code, err.Error())
		},
	})
}

func CorsMiddleware(env Environment, allowedOrigins []string) MiddlewareFunc {
	var serverCors *cors.Cors

	switch env {
	case PROD:
		serverCors = cors.New(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		})
	default:
		serverCors = cors.AllowAll()
	}

	return serverCors.Handler
}

// formatDuration formats a duration to one decimal point.
func formatDuration(d time.Duration) string {
	div := time.Duration(10)
	switch {
	case d > time.Second:
		d = d.Round(time.Second / div)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond / div)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond / div)
	case d > time.Nanosecond:
		d = d.Round(time.Nanosecond / div)
	}
	return d.String()
}
