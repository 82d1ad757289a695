package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

const (
	openAIProvider     = "openai"
	openAIDefaultBase  = "https://api.openai.com/v1"
	openAIDefaultModel = "gpt-image-1"
)

// blockedOpenAICodes are error codes the images API uses for safety refusals.
var blockedOpenAICodes = map[string]bool{
	"content_policy_violation": true,
	"moderation_blocked":       true,
}

type openAIGenerationRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// OpenAIAdapter speaks the OpenAI images API: JSON generations for
// text-to-image and multipart edits that upload reference bytes for
// image-to-image.
type OpenAIAdapter struct {
	httpClient *http.Client
	fetcher    *ReferenceFetcher
	logger     *infra.Logger
}

// NewOpenAIAdapter constructs the adapter.
func NewOpenAIAdapter(opts Options) *OpenAIAdapter {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewReferenceFetcher(FetcherOptions{HTTPClient: opts.httpClient()})
	}
	return &OpenAIAdapter{
		httpClient: opts.httpClient(),
		fetcher:    fetcher,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// Generate fulfils the Generator interface.
func (a *OpenAIAdapter) Generate(ctx context.Context, req Request) (Result, error) {
	apiKey := strings.TrimSpace(req.Credentials.APIKey)
	if apiKey == "" {
		return Result{}, &domain.ProviderCallError{Provider: openAIProvider, Message: "api key is missing"}
	}
	base := strings.TrimRight(firstNonEmpty(req.Credentials.BaseURL, openAIDefaultBase), "/")
	model := firstNonEmpty(req.Credentials.Model, openAIDefaultModel)

	var (
		httpReq *http.Request
		err     error
	)
	if req.HasReferences() {
		httpReq, err = a.editRequest(ctx, base, model, req)
	} else {
		httpReq, err = a.generationRequest(ctx, base, model, req)
	}
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	raw, _, err := do(ctx, a.httpClient, openAIProvider, httpReq)
	if err != nil {
		return Result{}, classifyOpenAIError(err)
	}
	var decoded openAIImageResponse
	if err := decodeJSON(openAIProvider, raw, &decoded); err != nil {
		return Result{}, err
	}
	if len(decoded.Data) > 0 {
		first := decoded.Data[0]
		if first.B64JSON != "" {
			data, err := decodeBase64(first.B64JSON)
			if err != nil {
				return Result{}, &domain.ProviderCallError{Provider: openAIProvider, Message: "decode b64_json", Err: err}
			}
			a.logger.Debug().Str("request_id", req.RequestID).Str("model", model).Int("bytes", len(data)).Msg("openai: generated image")
			return Result{Data: data, MIMEType: http.DetectContentType(data)}, nil
		}
		if strings.TrimSpace(first.URL) != "" {
			return Result{URL: strings.TrimSpace(first.URL)}, nil
		}
	}
	return ExtractImageJSON(openAIProvider, raw)
}

func (a *OpenAIAdapter) generationRequest(ctx context.Context, base, model string, req Request) (*http.Request, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		prompt += "\nDo not include: " + neg
	}
	body, err := json.Marshal(openAIGenerationRequest{
		Model:   model,
		Prompt:  prompt,
		N:       1,
		Size:    OpenAISize(req.AspectRatio),
		Quality: OpenAIQuality(req.Quality),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (a *OpenAIAdapter) editRequest(ctx context.Context, base, model string, req Request) (*http.Request, error) {
	sources, err := a.fetcher.FetchAll(ctx, openAIProvider, req.ReferenceImages)
	if err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		prompt += "\nDo not include: " + neg
	}
	fields := map[string]string{
		"model":   model,
		"prompt":  prompt,
		"n":       "1",
		"size":    OpenAISize(req.AspectRatio),
		"quality": OpenAIQuality(req.Quality),
	}
	body, contentType, err := buildMultipart(fields, "image[]", sources)
	if err != nil {
		return nil, &domain.ProviderCallError{Provider: openAIProvider, Message: "build multipart body", Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	return httpReq, nil
}

// classifyOpenAIError promotes moderation refusals to ContentBlockedError.
func classifyOpenAIError(err error) error {
	var pce *domain.ProviderCallError
	if !errors.As(err, &pce) || pce.Status != http.StatusBadRequest {
		return err
	}
	if blockedOpenAICodes[pce.Code] {
		return &domain.ContentBlockedError{Provider: openAIProvider, Reason: pce.Code}
	}
	lower := strings.ToLower(pce.Message)
	for code := range blockedOpenAICodes {
		if strings.Contains(lower, strings.ReplaceAll(code, "_", " ")) || strings.Contains(lower, code) {
			return &domain.ContentBlockedError{Provider: openAIProvider, Reason: code}
		}
	}
	if strings.Contains(lower, "safety system") {
		return &domain.ContentBlockedError{Provider: openAIProvider, Reason: "safety_system"}
	}
	return err
}

// buildMultipart writes form fields followed by one file part per source,
// each carrying its detected content type.
func buildMultipart(fields map[string]string, fileField string, sources []SourceImage) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, key := range sortedKeys(fields) {
		if fields[key] == "" {
			continue
		}
		if err := w.WriteField(key, fields[key]); err != nil {
			return nil, "", err
		}
	}
	for i, src := range sources {
		name := src.Filename
		if name == "" {
			name = fmt.Sprintf("reference-%d%s", i+1, extensionFor(src.MIMEType))
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, name))
		header.Set("Content-Type", firstNonEmpty(src.MIMEType, "image/png"))
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(src.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
