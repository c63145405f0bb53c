// Package api holds the HTTP plumbing shared by the kiosk and the dev
// backend: environments, error bodies, request context and middleware.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

type Environment int

const (
	LOCAL Environment = iota
	PROD
)

func (e Environment) String() string {
	switch e {
	case LOCAL:
		return "LOCAL"
	case PROD:
		return "PROD"
	default:
		return "UNKNOWN"
	}
}

func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "LOCAL":
		return LOCAL, nil
	case "PROD":
		return PROD, nil
	default:
		return LOCAL, fmt.Errorf("unknown environment %q", s)
	}
}

// NewLogger returns a text logger for local development and a JSON logger
// everywhere else.
func NewLogger(env Environment) *slog.Logger {
	if env == LOCAL {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

type ErrorCode string

const (
	AuthError            ErrorCode = "AuthError"
	EmptyBody            ErrorCode = "EmptyBody"
	InputValidationError ErrorCode = "InputValidationError"
	InternalError        ErrorCode = "InternalError"
	NotFound             ErrorCode = "NotFound"
	Conflict             ErrorCode = "Conflict"
	TooManyRequests      ErrorCode = "TooManyRequests"
	Unavailable          ErrorCode = "Unavailable"
	UpstreamError        ErrorCode = "UpstreamError"
)

type Error struct {
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
}

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		logger.Error("failed to marshal response body", "error", err)
		status = http.StatusInternalServerError
		jsonBody = []byte(`{"message": "internal error", "code": "InternalError"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonBody)
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, code ErrorCode, message string) {
	WriteJSON(w, logger, status, Error{Message: message, Code: code})
}
