package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/session"
	"github.com/International-Combat-Archery-Alliance/checkin/validate"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultAdminPath = "/api/admin"

	tracerName      = "github.com/International-Combat-Archery-Alliance/checkin/gateway"
	requestIDHeader = "X-Request-Id"
	maxErrorBody    = 4 << 10
)

type Option func(c *Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAdminPath changes the prefix of the admin endpoints.
func WithAdminPath(path string) Option {
	return func(c *Client) {
		c.adminPath = "/" + strings.Trim(path, "/")
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// Client talks to the event platform backend on behalf of logged in staff.
// Every admin request carries the bearer token from the session store.
type Client struct {
	baseURL    string
	adminPath  string
	httpClient *http.Client
	tokens     session.Store
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewClient(baseURL string, tokens session.Store, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminPath:  DefaultAdminPath,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     tokens,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type request struct {
	method string
	path   string
	body   any
	authed bool
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("%s %s", req.method, req.path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("url.path", req.path),
		),
	)
	defer span.End()

	err := c.send(ctx, req, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) send(ctx context.Context, req request, out any) error {
	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return NewRequestFailedError("Failed to encode request body", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return NewRequestFailedError("Failed to build request", err)
	}

	requestID := uuid.New()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID.String())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	if req.authed {
		token, err := c.tokens.GetToken(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNoToken) {
				return NewNoTokenError(err)
			}
			return NewRequestFailedError("Failed to read session token", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	logger := c.logger.With(
		slog.String("requestId", requestID.String()),
		slog.String("method", req.method),
		slog.String("path", req.path),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.ErrorContext(ctx, "backend request failed", slog.Any("error", err))
		return NewRequestFailedError(fmt.Sprintf("%s %s failed", req.method, req.path), err)
	}
	defer resp.Body.Close()

	logger.DebugContext(ctx, "backend request",
		slog.Int("status-code", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.WarnContext(ctx, "backend returned an error", slog.Int("status-code", resp.StatusCode), slog.String("body", string(msg)))
		return NewUnexpectedStatusError(resp.StatusCode, fmt.Sprintf("%s %s returned %s", req.method, req.path, resp.Status))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return NewInvalidResponseError(fmt.Sprintf("%s %s returned a body that isn't JSON", req.method, req.path), err)
	}

	err = validate.Struct(out)
	if err != nil {
		return NewInvalidResponseError(fmt.Sprintf("%s %s returned an unexpected shape", req.method, req.path), err)
	}

	return nil
}
