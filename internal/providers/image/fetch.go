package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

const (
	maxReferenceBytes = 20 << 20
	maxResultBytes    = 32 << 20
	defaultFetchWait  = 30 * time.Second
)

// FetcherOptions configures a ReferenceFetcher.
type FetcherOptions struct {
	HTTPClient *http.Client
	// CacheTTL keeps fetched bytes for repeated references; zero disables it.
	CacheTTL time.Duration
	// AllowedHosts restricts downloads when non-empty.
	AllowedHosts []string
	// MaxBytes caps one download; zero means the reference limit.
	MaxBytes int64
}

// ReferenceFetcher downloads reference images for adapters that must upload
// bytes. Concurrent fetches of the same URL share one download.
type ReferenceFetcher struct {
	client   *http.Client
	cache    *cache.Cache
	ttl      time.Duration
	allowed  map[string]struct{}
	maxBytes int64
	timeout  time.Duration
	group    singleflight.Group
}

// NewReferenceFetcher builds a fetcher.
func NewReferenceFetcher(opts FetcherOptions) *ReferenceFetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchWait}
	}
	f := &ReferenceFetcher{client: client, ttl: opts.CacheTTL, maxBytes: opts.MaxBytes, timeout: client.Timeout}
	if f.maxBytes <= 0 {
		f.maxBytes = maxReferenceBytes
	}
	if f.timeout <= 0 {
		f.timeout = defaultFetchWait
	}
	if len(opts.AllowedHosts) > 0 {
		f.allowed = make(map[string]struct{}, len(opts.AllowedHosts))
		for _, host := range opts.AllowedHosts {
			f.allowed[strings.ToLower(strings.TrimSpace(host))] = struct{}{}
		}
	}
	if opts.CacheTTL > 0 {
		f.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return f
}

// NewResultFetcher builds the fetcher used to persist backend results. Result
// URLs point at backend CDNs, so no host allowlist or cache applies.
func NewResultFetcher(client *http.Client) *ReferenceFetcher {
	return NewReferenceFetcher(FetcherOptions{HTTPClient: client, MaxBytes: maxResultBytes})
}

// Fetch returns the bytes and content type of one reference. Failures are
// reported as ProviderCallError attributed to provider.
func (f *ReferenceFetcher) Fetch(ctx context.Context, provider, ref string) (SourceImage, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return SourceImage{}, &domain.ProviderCallError{Provider: provider, Message: "empty reference image"}
	}
	if strings.HasPrefix(strings.ToLower(ref), "data:") {
		data, mime, err := decodeDataURI(ref)
		if err != nil {
			return SourceImage{}, &domain.ProviderCallError{Provider: provider, Message: "invalid data uri reference", Err: err}
		}
		return SourceImage{Data: data, MIMEType: mime, Filename: "reference" + extensionFor(mime)}, nil
	}
	if f.cache != nil {
		if cached, ok := f.cache.Get(ref); ok {
			if src, ok := cached.(SourceImage); ok {
				return src, nil
			}
		}
	}
	// The shared download outlives any single caller.
	ch := f.group.DoChan(ref, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		return f.download(dctx, ref)
	})
	var (
		val any
		err error
	)
	select {
	case <-ctx.Done():
		return SourceImage{}, &domain.ProviderCallError{Provider: provider, Message: "fetch reference image", Err: ctx.Err()}
	case res := <-ch:
		val, err = res.Val, res.Err
	}
	if err != nil {
		return SourceImage{}, &domain.ProviderCallError{Provider: provider, Message: "fetch reference image", Err: err}
	}
	src, ok := val.(SourceImage)
	if !ok {
		return SourceImage{}, &domain.ProviderCallError{Provider: provider, Message: fmt.Sprintf("unexpected fetch result %T", val)}
	}
	if f.cache != nil {
		f.cache.Set(ref, src, f.ttl)
	}
	return src, nil
}

// FetchAll downloads every reference concurrently, preserving order.
func (f *ReferenceFetcher) FetchAll(ctx context.Context, provider string, refs []string) ([]SourceImage, error) {
	out := make([]SourceImage, len(refs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		eg.Go(func() error {
			src, err := f.Fetch(egCtx, provider, ref)
			if err != nil {
				return err
			}
			out[i] = src
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *ReferenceFetcher) download(ctx context.Context, ref string) (SourceImage, error) {
	parsed, err := url.Parse(ref)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return SourceImage{}, fmt.Errorf("invalid reference url %q", ref)
	}
	if f.allowed != nil {
		if _, ok := f.allowed[strings.ToLower(parsed.Hostname())]; !ok {
			return SourceImage{}, fmt.Errorf("reference host %q is not allowed", parsed.Hostname())
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return SourceImage{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return SourceImage{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return SourceImage{}, fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return SourceImage{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return SourceImage{}, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return SourceImage{}, fmt.Errorf("reference image is empty")
	}
	mime := detectImageType(resp.Header.Get("Content-Type"), data)
	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." || path.Ext(name) == "" {
		name = "reference" + extensionFor(mime)
	}
	return SourceImage{URL: ref, Data: data, MIMEType: mime, Filename: name}, nil
}

// detectImageType trusts an image/* header and sniffs the bytes otherwise.
func detectImageType(header string, data []byte) string {
	header = strings.ToLower(strings.TrimSpace(header))
	if mt, _, _ := strings.Cut(header, ";"); strings.HasPrefix(mt, "image/") {
		return strings.TrimSpace(mt)
	}
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return "image/png"
}

func extensionFor(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
