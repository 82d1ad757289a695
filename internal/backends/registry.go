package backends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

// Options configures the registry and router.
type Options struct {
	Scope  string
	Logger *infra.Logger
}

func (o Options) scope() string {
	if s := strings.TrimSpace(o.Scope); s != "" {
		return s
	}
	return "image"
}

// Registry administers the backend configs of one scope.
type Registry struct {
	repo   domain.BackendRepository
	scope  string
	logger *infra.Logger
	// mu serialises activations issued through this process; the repository
	// transaction covers writers in other processes.
	mu sync.Mutex
}

// NewRegistry builds a registry.
func NewRegistry(repo domain.BackendRepository, opts Options) *Registry {
	return &Registry{repo: repo, scope: opts.scope(), logger: infra.LoggerOrDiscard(opts.Logger)}
}

// Scope returns the scope the registry manages.
func (r *Registry) Scope() string { return r.scope }

// List returns every config of the scope.
func (r *Registry) List(ctx context.Context) ([]domain.BackendConfig, error) {
	return r.repo.List(ctx, r.scope)
}

// Get returns one config of the scope.
func (r *Registry) Get(ctx context.Context, key string) (*domain.BackendConfig, error) {
	cfg, err := r.repo.Get(ctx, strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	if cfg.Scope != r.scope {
		return nil, domain.ErrNotFound
	}
	return cfg, nil
}

// SetActive makes key the only active config of the scope.
func (r *Registry) SetActive(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return &domain.ValidationError{Field: "key", Message: "is required"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.repo.SetActive(ctx, r.scope, key); err != nil {
		return fmt.Errorf("activate backend %s: %w", key, err)
	}
	r.logger.Info().Str("backend", key).Str("scope", r.scope).Msg("backends: activated")
	return nil
}

// UpdateCredentials replaces the credentials of a config of the scope.
func (r *Registry) UpdateCredentials(ctx context.Context, key string, creds domain.Credentials) error {
	if _, err := r.Get(ctx, key); err != nil {
		return err
	}
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	creds.BaseURL = strings.TrimSpace(creds.BaseURL)
	creds.Model = strings.TrimSpace(creds.Model)
	return r.repo.UpdateCredentials(ctx, key, creds)
}

// RecordCall folds a call outcome into the backend's stats. Stats are
// approximate telemetry: failures are logged and dropped.
func (r *Registry) RecordCall(ctx context.Context, key string, success bool, latency time.Duration) {
	if key == "" {
		return
	}
	if err := r.repo.RecordCall(ctx, key, success, latency); err != nil {
		r.logger.Warn().Err(err).Str("backend", key).Msg("backends: stats update failed")
	}
}

// CredentialSource supplies fallback credentials per family.
type CredentialSource interface {
	Lookup(ctx context.Context, family domain.ProviderFamily) (domain.Credentials, error)
}

// Router resolves which backend serves a request.
type Router struct {
	repo   domain.BackendRepository
	creds  CredentialSource
	scope  string
	logger *infra.Logger
}

// NewRouter builds a router. creds may be nil.
func NewRouter(repo domain.BackendRepository, creds CredentialSource, opts Options) *Router {
	return &Router{repo: repo, creds: creds, scope: opts.scope(), logger: infra.LoggerOrDiscard(opts.Logger)}
}

// Resolve returns the explicitly requested backend when it exists and is
// enabled, otherwise the scope's active backend. Missing credentials are
// completed from the credential source.
func (r *Router) Resolve(ctx context.Context, requested string) (*domain.BackendConfig, error) {
	requested = strings.TrimSpace(requested)
	var (
		cfg *domain.BackendConfig
		err error
	)
	if requested != "" {
		cfg, err = r.repo.Get(ctx, requested)
		if err == nil && (!cfg.Enabled || cfg.Scope != r.scope) {
			err = domain.ErrNotFound
		}
	} else {
		cfg, err = r.repo.Active(ctx, r.scope)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.NoActiveBackendError{Scope: r.scope, Requested: requested}
		}
		return nil, fmt.Errorf("resolve backend: %w", err)
	}
	if err := r.completeCredentials(ctx, cfg); err != nil {
		return nil, err
	}
	if cfg.Credentials.APIKey == "" {
		r.logger.Warn().Str("backend", cfg.Key).Msg("backends: resolved backend has no credentials")
		return nil, &domain.NoActiveBackendError{Scope: r.scope, Requested: cfg.Key}
	}
	return cfg, nil
}

func (r *Router) completeCredentials(ctx context.Context, cfg *domain.BackendConfig) error {
	if cfg.Credentials.APIKey != "" || r.creds == nil {
		return nil
	}
	fallback, err := r.creds.Lookup(ctx, cfg.Family)
	if err != nil {
		return fmt.Errorf("load %s credentials: %w", cfg.Family, err)
	}
	cfg.Credentials.APIKey = fallback.APIKey
	if cfg.Credentials.BaseURL == "" {
		cfg.Credentials.BaseURL = fallback.BaseURL
	}
	if cfg.Credentials.Model == "" {
		cfg.Credentials.Model = fallback.Model
	}
	if cfg.Credentials.Extra == nil {
		cfg.Credentials.Extra = fallback.Extra
	}
	return nil
}
