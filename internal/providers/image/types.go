package image

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

// SourceImage is reference image content fetched ahead of an upload.
type SourceImage struct {
	URL      string
	Data     []byte
	MIMEType string
	Filename string
}

// Request is the uniform input every adapter translates into its own wire
// protocol.
type Request struct {
	Prompt          string
	NegativePrompt  string
	ReferenceImages []string
	AspectRatio     domain.AspectRatio
	Quality         domain.Quality
	Strength        float64
	Credentials     domain.Credentials
	RequestID       string
}

// HasReferences reports whether the request is image-to-image.
func (r Request) HasReferences() bool {
	return len(r.ReferenceImages) > 0
}

// Result is a produced image: either a remote URL or fully drained bytes.
type Result struct {
	URL      string
	Data     []byte
	MIMEType string
}

// IsZero reports whether the result carries no image at all.
func (r Result) IsZero() bool {
	return strings.TrimSpace(r.URL) == "" && len(r.Data) == 0
}

// Generator is the contract implemented by every provider adapter.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// GeneratorFunc adapts a function into a Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Result, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Options carries the dependencies shared by all adapters.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Fetcher    *ReferenceFetcher
	Poller     Poller
	Logger     *infra.Logger
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Set holds one adapter per provider family.
type Set struct {
	adapters map[domain.ProviderFamily]Generator
}

// NewSet builds the four adapters over shared transport, fetcher and poller.
func NewSet(opts Options) *Set {
	client := opts.httpClient()
	opts.HTTPClient = client
	if opts.Fetcher == nil {
		opts.Fetcher = NewReferenceFetcher(FetcherOptions{HTTPClient: client})
	}
	return &Set{adapters: map[domain.ProviderFamily]Generator{
		domain.FamilyGemini:    NewGeminiAdapter(opts),
		domain.FamilyOpenAI:    NewOpenAIAdapter(opts),
		domain.FamilyStability: NewStabilityAdapter(opts),
		domain.FamilyDashScope: NewDashScopeAdapter(opts),
	}}
}

// NewSetFrom builds a Set from explicit adapters; used by tests and wiring that
// swaps a single family.
func NewSetFrom(adapters map[domain.ProviderFamily]Generator) *Set {
	copied := make(map[domain.ProviderFamily]Generator, len(adapters))
	for k, v := range adapters {
		copied[k] = v
	}
	return &Set{adapters: copied}
}

// For returns the adapter of a family.
func (s *Set) For(family domain.ProviderFamily) (Generator, bool) {
	if s == nil {
		return nil, false
	}
	g, ok := s.adapters[family]
	return g, ok
}
