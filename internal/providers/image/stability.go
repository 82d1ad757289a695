package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

const (
	stabilityProvider     = "stability"
	stabilityDefaultBase  = "https://api.stability.ai"
	stabilityDefaultModel = "core"
	stabilityEditModel    = "sd3.5-large"
)

// StabilityAdapter speaks the Stability stable-image API. The image bytes are
// streamed back in the response body and drained in full.
type StabilityAdapter struct {
	httpClient *http.Client
	fetcher    *ReferenceFetcher
	logger     *infra.Logger
}

// NewStabilityAdapter constructs the adapter.
func NewStabilityAdapter(opts Options) *StabilityAdapter {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewReferenceFetcher(FetcherOptions{HTTPClient: opts.httpClient()})
	}
	return &StabilityAdapter{
		httpClient: opts.httpClient(),
		fetcher:    fetcher,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// stabilityEndpoint maps a model name onto its service path. sd3 variants
// share one path and carry the model as a form field.
func stabilityEndpoint(model string) (path string, modelField string) {
	switch {
	case model == "ultra":
		return "/v2beta/stable-image/generate/ultra", ""
	case strings.HasPrefix(model, "sd3"):
		return "/v2beta/stable-image/generate/sd3", model
	default:
		return "/v2beta/stable-image/generate/core", ""
	}
}

// Generate fulfils the Generator interface.
func (a *StabilityAdapter) Generate(ctx context.Context, req Request) (Result, error) {
	apiKey := strings.TrimSpace(req.Credentials.APIKey)
	if apiKey == "" {
		return Result{}, &domain.ProviderCallError{Provider: stabilityProvider, Message: "api key is missing"}
	}
	base := strings.TrimRight(firstNonEmpty(req.Credentials.BaseURL, stabilityDefaultBase), "/")
	model := strings.ToLower(firstNonEmpty(req.Credentials.Model, stabilityDefaultModel))
	path, modelField := stabilityEndpoint(model)

	if req.HasReferences() && modelField == "" {
		// Only the sd3 service accepts an init image.
		path, modelField = stabilityEndpoint(stabilityEditModel)
	}

	fields := map[string]string{
		"prompt":          strings.TrimSpace(req.Prompt),
		"negative_prompt": strings.TrimSpace(req.NegativePrompt),
		"output_format":   "png",
		"model":           modelField,
	}
	var sources []SourceImage
	if req.HasReferences() {
		src, err := a.fetcher.Fetch(ctx, stabilityProvider, req.ReferenceImages[0])
		if err != nil {
			return Result{}, err
		}
		sources = []SourceImage{src}
		strength := req.Strength
		if strength <= 0 {
			strength = 0.5
		}
		fields["strength"] = strconv.FormatFloat(strength, 'f', 2, 64)
		fields["mode"] = "image-to-image"
	} else {
		fields["aspect_ratio"] = string(req.AspectRatio)
	}

	body, contentType, err := buildMultipart(fields, "image", sources)
	if err != nil {
		return Result{}, &domain.ProviderCallError{Provider: stabilityProvider, Message: "build multipart body", Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, body)
	if err != nil {
		return Result{}, fmt.Errorf("stability: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Accept", "image/*")

	raw, header, err := do(ctx, a.httpClient, stabilityProvider, httpReq)
	if err != nil {
		// Stability answers moderation refusals with 403.
		var pce *domain.ProviderCallError
		if errors.As(err, &pce) && pce.Status == http.StatusForbidden {
			return Result{}, &domain.ContentBlockedError{Provider: stabilityProvider, Reason: pce.Message}
		}
		return Result{}, err
	}
	if reason := strings.ToUpper(strings.TrimSpace(header.Get("Finish-Reason"))); reason == "CONTENT_FILTERED" {
		return Result{}, &domain.ContentBlockedError{Provider: stabilityProvider, Reason: reason}
	}
	mime, _, _ := strings.Cut(header.Get("Content-Type"), ";")
	mime = strings.TrimSpace(mime)
	if strings.Contains(mime, "json") {
		return ExtractImageJSON(stabilityProvider, raw)
	}
	if len(raw) == 0 {
		return Result{}, &domain.ImageExtractionError{Provider: stabilityProvider, Checked: []string{"body"}}
	}
	a.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", model).
		Str("seed", header.Get("Seed")).
		Int("bytes", len(raw)).
		Msg("stability: generated image")
	return Result{Data: raw, MIMEType: detectImageType(mime, raw)}, nil
}
