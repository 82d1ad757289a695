package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/backends"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/generation"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/middleware"
)

// Generator runs one generation.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*generation.Response, error)
}

// BackendAdmin administers the backend registry.
type BackendAdmin interface {
	List(ctx context.Context) ([]domain.BackendConfig, error)
	SetActive(ctx context.Context, key string) error
	UpdateCredentials(ctx context.Context, key string, creds domain.Credentials) error
}

// GuardRules exposes the configured rules and the engine cache.
type GuardRules interface {
	List(ctx context.Context) ([]domain.GuardRule, error)
}

// Pinger checks a dependency for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ BackendAdmin = (*backends.Registry)(nil)

// App carries the dependencies shared by every handler.
type App struct {
	Config     *infra.Config
	Logger     *infra.Logger
	Generator  Generator
	Records    domain.GenerationRepository
	Backends   BackendAdmin
	GuardRules GuardRules
	// InvalidateGuardRules drops the guard engine's rule snapshot.
	InvalidateGuardRules func()
	DB                   Pinger
}

func (a *App) logger() *infra.Logger {
	return infra.LoggerOrDiscard(a.Logger)
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"errorKind"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: message, ErrorKind: kind})
}

// fail maps a domain error to its status code and a localized, sanitized
// message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		a.logger().Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("error_kind", string(kind)).
			Msg("request failed")
	}
	a.error(w, status, string(kind), localizedMessage(middleware.LocaleFromContext(r.Context()), err))
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case domain.KindNoActiveBackend:
		return http.StatusServiceUnavailable
	case domain.KindContentBlocked:
		return http.StatusUnprocessableEntity
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindProviderCall, domain.KindImageExtraction:
		return http.StatusBadGateway
	case domain.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20))
	return dec.Decode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
