package failover

import (
	"context"
	"errors"
	"time"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/providers/image"
)

// DefaultAlternates pairs families whose image-to-image support can stand in
// for each other.
func DefaultAlternates() map[domain.ProviderFamily]domain.ProviderFamily {
	return map[domain.ProviderFamily]domain.ProviderFamily{
		domain.FamilyGemini:    domain.FamilyOpenAI,
		domain.FamilyOpenAI:    domain.FamilyGemini,
		domain.FamilyDashScope: domain.FamilyStability,
		domain.FamilyStability: domain.FamilyDashScope,
	}
}

// BackendFinder locates the alternate backend.
type BackendFinder interface {
	FirstEnabledByFamily(ctx context.Context, scope string, family domain.ProviderFamily, excludeKey string) (*domain.BackendConfig, error)
}

// CallRecorder receives telemetry for the alternate call.
type CallRecorder interface {
	RecordCall(ctx context.Context, key string, success bool, latency time.Duration)
}

// Options configures a Coordinator.
type Options struct {
	Scope      string
	Alternates map[domain.ProviderFamily]domain.ProviderFamily
	Recorder   CallRecorder
	Logger     *infra.Logger
}

// Outcome is a successful failover.
type Outcome struct {
	Backend *domain.BackendConfig
	Result  image.Result
}

// Coordinator retries a failed image-to-image call exactly once on a backend
// of the paired family.
type Coordinator struct {
	finder     BackendFinder
	adapters   *image.Set
	scope      string
	alternates map[domain.ProviderFamily]domain.ProviderFamily
	recorder   CallRecorder
	logger     *infra.Logger
}

// NewCoordinator builds a coordinator.
func NewCoordinator(finder BackendFinder, adapters *image.Set, opts Options) *Coordinator {
	alternates := opts.Alternates
	if alternates == nil {
		alternates = DefaultAlternates()
	}
	return &Coordinator{
		finder:     finder,
		adapters:   adapters,
		scope:      opts.Scope,
		alternates: alternates,
		recorder:   opts.Recorder,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// Eligible reports whether cause on req may be failed over at all.
func (c *Coordinator) Eligible(req image.Request, cause error) bool {
	return req.HasReferences() && domain.IsRetryable(cause)
}

// AttemptFailover tries one alternate backend for a failed call. It returns
// cause unchanged when failover does not apply or no alternate is configured,
// and a FailoverError carrying both failures when the alternate also fails.
func (c *Coordinator) AttemptFailover(ctx context.Context, failed *domain.BackendConfig, req image.Request, cause error) (*Outcome, error) {
	if c == nil || failed == nil || !c.Eligible(req, cause) {
		return nil, cause
	}
	family, ok := c.alternates[failed.Family]
	if !ok {
		return nil, cause
	}
	alt, err := c.finder.FirstEnabledByFamily(ctx, c.scope, family, failed.Key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn().Err(err).Str("family", string(family)).Msg("failover: alternate lookup failed")
		}
		return nil, cause
	}
	adapter, ok := c.adapters.For(alt.Family)
	if !ok {
		return nil, cause
	}

	c.logger.Info().
		Str("request_id", req.RequestID).
		Str("failed_backend", failed.Key).
		Str("alternate_backend", alt.Key).
		Err(cause).
		Msg("failover: trying alternate backend")

	altReq := req
	altReq.Credentials = alt.Credentials
	started := time.Now()
	res, altErr := adapter.Generate(ctx, altReq)
	if c.recorder != nil {
		c.recorder.RecordCall(ctx, alt.Key, altErr == nil, time.Since(started))
	}
	if altErr != nil {
		return nil, &domain.FailoverError{Primary: cause, Alternate: altErr, AlternateBackend: alt.Key}
	}
	return &Outcome{Backend: alt, Result: res}, nil
}
