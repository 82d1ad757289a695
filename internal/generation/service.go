// Package generation runs the image generation pipeline: resolve a backend,
// build the guarded prompt, pre-check the balance, call the provider (with one
// failover), store the asset and settle the cost.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/billing"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/failover"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/guard"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/providers/image"
)

// Resolver picks the backend for a request.
type Resolver interface {
	Resolve(ctx context.Context, requested string) (*domain.BackendConfig, error)
}

// PromptBuilder merges hidden rules into the prompt.
type PromptBuilder interface {
	BuildExecutionPrompt(ctx context.Context, userPrompt, templatePrompt string, genType domain.GenerationType) guard.Result
}

// Biller pre-checks and settles the cost of a generation.
type Biller interface {
	PreCheck(ctx context.Context, userID string, cost decimal.Decimal) (billing.Charge, error)
	Settle(ctx context.Context, s billing.Settlement) billing.SettlementResult
}

// Failover retries a failed call on an alternate backend.
type Failover interface {
	AttemptFailover(ctx context.Context, failed *domain.BackendConfig, req image.Request, cause error) (*failover.Outcome, error)
}

// AssetUploader turns a produced image into a stable URL.
type AssetUploader interface {
	Upload(ctx context.Context, userID string, res image.Result) (string, error)
}

// Deps are the collaborators of a Service. Templates, Failover, Records and
// Recorder are optional.
type Deps struct {
	Router    Resolver
	Guard     PromptBuilder
	Templates domain.TemplateRepository
	Adapters  *image.Set
	Failover  Failover
	Billing   Biller
	Assets    AssetUploader
	Records   domain.GenerationRepository
	Recorder  failover.CallRecorder
	Logger    *infra.Logger
	Now       func() time.Time
	NewID     func() string
}

// Response is returned for a completed generation.
type Response struct {
	ID            string                  `json:"id"`
	ImageURL      string                  `json:"imageUrl"`
	VisiblePrompt string                  `json:"visiblePrompt"`
	Quality       domain.Quality          `json:"quality"`
	AspectRatio   domain.AspectRatio      `json:"aspectRatio"`
	PointsSpent   float64                 `json:"pointsSpent"`
	Status        domain.GenerationStatus `json:"status"`
	Backend       string                  `json:"backend"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// Service orchestrates generations.
type Service struct {
	deps   Deps
	logger *infra.Logger
	now    func() time.Time
	newID  func() string
}

// NewService validates deps and builds a Service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Router == nil:
		return nil, errors.New("generation: router is required")
	case deps.Guard == nil:
		return nil, errors.New("generation: guard engine is required")
	case deps.Adapters == nil:
		return nil, errors.New("generation: adapters are required")
	case deps.Billing == nil:
		return nil, errors.New("generation: billing engine is required")
	case deps.Assets == nil:
		return nil, errors.New("generation: asset store is required")
	}
	s := &Service{deps: deps, logger: infra.LoggerOrDiscard(deps.Logger), now: deps.Now, newID: deps.NewID}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s, nil
}

// Generate runs the pipeline for a normalized request. Validation, backend
// resolution and balance errors return before any provider is called. Errors
// after the provider call are returned typed; settlement failures never are.
func (s *Service) Generate(ctx context.Context, req domain.GenerationRequest) (*Response, error) {
	backend, err := s.deps.Router.Resolve(ctx, req.BackendID)
	if err != nil {
		return nil, err
	}
	adapter, ok := s.deps.Adapters.For(backend.Family)
	if !ok {
		return nil, &domain.NoActiveBackendError{Scope: backend.Scope, Requested: backend.Key}
	}

	tpl, err := s.loadTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	cost := backend.CostFor(req.Quality)
	templatePrompt := ""
	if tpl != nil {
		templatePrompt = tpl.Prompt
		if tpl.CostOverride != nil {
			cost = *tpl.CostOverride
		}
	}

	charge, err := s.deps.Billing.PreCheck(ctx, req.UserID, cost)
	if err != nil {
		return nil, err
	}

	prompts := s.deps.Guard.BuildExecutionPrompt(ctx, req.Prompt, templatePrompt, req.Type())
	call := image.Request{
		Prompt:          prompts.ExecutionPrompt,
		NegativePrompt:  joinNegative(prompts.NegativePrompt, req.NegativePrompt),
		ReferenceImages: req.ReferenceImages,
		AspectRatio:     req.AspectRatio,
		Quality:         req.Quality,
		Strength:        req.Strength,
		Credentials:     backend.Credentials,
		RequestID:       req.RequestID,
	}

	log := s.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Str("backend", backend.Key).
		Str("family", string(backend.Family)).
		Logger()

	started := time.Now()
	result, callErr := adapter.Generate(ctx, call)
	s.recordCall(ctx, backend.Key, callErr == nil, time.Since(started))
	served := backend
	if callErr != nil {
		log.Warn().Err(callErr).Str("error_kind", string(domain.KindOf(callErr))).Msg("generation: provider call failed")
		outcome, ferr := s.attemptFailover(ctx, backend, call, callErr)
		if ferr != nil {
			s.recordFailure(ctx, req, prompts.UserPrompt, backend.Key, ferr)
			return nil, ferr
		}
		served, result = outcome.Backend, outcome.Result
	}
	if result.IsZero() {
		err := &domain.ImageExtractionError{Provider: string(served.Family), Checked: []string{"result"}}
		s.recordFailure(ctx, req, prompts.UserPrompt, served.Key, err)
		return nil, err
	}

	url, err := s.deps.Assets.Upload(ctx, req.UserID, result)
	if err != nil {
		err = fmt.Errorf("generation: store image: %w", err)
		s.recordFailure(ctx, req, prompts.UserPrompt, served.Key, err)
		return nil, err
	}

	createdAt := s.now().UTC()
	record := &domain.GenerationRecord{
		ID:          s.newID(),
		UserID:      req.UserID,
		BackendKey:  served.Key,
		TemplateID:  req.TemplateID,
		Prompt:      prompts.UserPrompt,
		ImageURL:    url,
		Quality:     req.Quality,
		AspectRatio: req.AspectRatio,
		Status:      domain.GenerationCompleted,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	settled := s.deps.Billing.Settle(ctx, billing.Settlement{
		UserID:   req.UserID,
		Cost:     cost,
		Planned:  charge,
		Record:   record,
		Template: tpl,
	})
	if failed := settled.Failed(); len(failed) > 0 {
		log.Warn().Int("failed_steps", len(failed)).Str("record_id", record.ID).Msg("generation: settlement degraded")
	}

	log.Info().Str("record_id", record.ID).Str("served_by", served.Key).Msg("generation: completed")
	return &Response{
		ID:            record.ID,
		ImageURL:      url,
		VisiblePrompt: prompts.UserPrompt,
		Quality:       req.Quality,
		AspectRatio:   req.AspectRatio,
		PointsSpent:   settled.Charge.Total().InexactFloat64(),
		Status:        domain.GenerationCompleted,
		Backend:       served.Key,
		CreatedAt:     createdAt,
	}, nil
}

func (s *Service) loadTemplate(ctx context.Context, id string) (*domain.Template, error) {
	if id == "" || s.deps.Templates == nil {
		return nil, nil
	}
	tpl, err := s.deps.Templates.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ValidationError{Field: "templateId", Message: "unknown template"}
		}
		return nil, fmt.Errorf("generation: load template: %w", err)
	}
	return tpl, nil
}

func (s *Service) attemptFailover(ctx context.Context, backend *domain.BackendConfig, call image.Request, cause error) (*failover.Outcome, error) {
	if s.deps.Failover == nil {
		return nil, cause
	}
	return s.deps.Failover.AttemptFailover(ctx, backend, call, cause)
}

func (s *Service) recordCall(ctx context.Context, key string, success bool, latency time.Duration) {
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordCall(ctx, key, success, latency)
	}
}

// recordFailure writes a failed, uncharged record. It is best effort.
func (s *Service) recordFailure(ctx context.Context, req domain.GenerationRequest, visiblePrompt, backendKey string, cause error) {
	if s.deps.Records == nil {
		return
	}
	now := s.now().UTC()
	record := &domain.GenerationRecord{
		ID:           s.newID(),
		UserID:       req.UserID,
		BackendKey:   backendKey,
		TemplateID:   req.TemplateID,
		Prompt:       visiblePrompt,
		Quality:      req.Quality,
		AspectRatio:  req.AspectRatio,
		Status:       domain.GenerationFailed,
		ErrorMessage: domain.UserMessage(cause),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deps.Records.Create(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("generation: failed record not written")
	}
}

func joinNegative(hidden, user string) string {
	switch {
	case hidden == "":
		return user
	case user == "":
		return hidden
	}
	return hidden + ", " + user
}
