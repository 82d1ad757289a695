package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

const (
	geminiProvider     = "gemini"
	geminiDefaultBase  = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "gemini-2.5-flash-image"
)

// blockedFinishReasons are non-terminal finish reasons that mean the backend
// refused the content.
var blockedFinishReasons = map[string]bool{
	"SAFETY":                   true,
	"IMAGE_SAFETY":             true,
	"PROHIBITED_CONTENT":       true,
	"IMAGE_PROHIBITED_CONTENT": true,
	"BLOCKLIST":                true,
	"SPII":                     true,
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback struct {
		BlockReason        string `json:"blockReason,omitempty"`
		BlockReasonMessage string `json:"blockReasonMessage,omitempty"`
	} `json:"promptFeedback"`
}

// GeminiAdapter speaks Gemini's synchronous generateContent protocol. Images
// come back inline as base64 in the same call.
type GeminiAdapter struct {
	httpClient *http.Client
	fetcher    *ReferenceFetcher
	logger     *infra.Logger
}

// NewGeminiAdapter constructs the adapter.
func NewGeminiAdapter(opts Options) *GeminiAdapter {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewReferenceFetcher(FetcherOptions{HTTPClient: opts.httpClient()})
	}
	return &GeminiAdapter{
		httpClient: opts.httpClient(),
		fetcher:    fetcher,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// Generate fulfils the Generator interface.
func (a *GeminiAdapter) Generate(ctx context.Context, req Request) (Result, error) {
	apiKey := strings.TrimSpace(req.Credentials.APIKey)
	if apiKey == "" {
		return Result{}, &domain.ProviderCallError{Provider: geminiProvider, Message: "api key is missing"}
	}
	parts := []geminiPart{{Text: geminiPromptText(req)}}
	if req.HasReferences() {
		sources, err := a.fetcher.FetchAll(ctx, geminiProvider, req.ReferenceImages)
		if err != nil {
			return Result{}, err
		}
		for _, src := range sources {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: src.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(src.Data),
			}})
		}
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig: &geminiImageConfig{
				AspectRatio: string(req.AspectRatio),
				ImageSize:   GeminiImageSize(req.Quality),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	base := strings.TrimRight(firstNonEmpty(req.Credentials.BaseURL, geminiDefaultBase), "/")
	model := firstNonEmpty(req.Credentials.Model, geminiDefaultModel)
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", base, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	raw, _, err := do(ctx, a.httpClient, geminiProvider, httpReq)
	if err != nil {
		return Result{}, err
	}
	var decoded geminiGenerateContentResponse
	if err := decodeJSON(geminiProvider, raw, &decoded); err != nil {
		return Result{}, err
	}
	if reason := decoded.PromptFeedback.BlockReason; reason != "" {
		return Result{}, &domain.ContentBlockedError{Provider: geminiProvider, Reason: reason}
	}
	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := decodeBase64(part.InlineData.Data)
			if err != nil {
				return Result{}, &domain.ProviderCallError{Provider: geminiProvider, Message: "decode inline data", Err: err}
			}
			a.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", model).
				Int("bytes", len(data)).
				Msg("gemini: generated image")
			return Result{Data: data, MIMEType: firstNonEmpty(part.InlineData.MimeType, http.DetectContentType(data))}, nil
		}
		if blockedFinishReasons[strings.ToUpper(candidate.FinishReason)] {
			return Result{}, &domain.ContentBlockedError{Provider: geminiProvider, Reason: candidate.FinishReason}
		}
	}
	return ExtractImageJSON(geminiProvider, raw)
}

func geminiPromptText(req Request) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Prompt))
	if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		b.WriteString("\nAvoid: ")
		b.WriteString(neg)
	}
	if req.HasReferences() && req.Strength > 0 {
		fmt.Fprintf(&b, "\nDeviate from the reference images by about %d%%.", int(req.Strength*100+0.5))
	}
	return b.String()
}
