package failover

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/providers/image"
)

type stubFinder struct {
	backends []domain.BackendConfig
	calls    int
}

func (s *stubFinder) FirstEnabledByFamily(_ context.Context, _ string, family domain.ProviderFamily, excludeKey string) (*domain.BackendConfig, error) {
	s.calls++
	for i := range s.backends {
		b := s.backends[i]
		if b.Family == family && b.Enabled && b.Key != excludeKey {
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

type stubRecorder struct {
	keys    []string
	success []bool
}

func (r *stubRecorder) RecordCall(_ context.Context, key string, success bool, _ time.Duration) {
	r.keys = append(r.keys, key)
	r.success = append(r.success, success)
}

type countingGenerator struct {
	calls int
	creds []domain.Credentials
	res   image.Result
	err   error
}

func (g *countingGenerator) Generate(_ context.Context, req image.Request) (image.Result, error) {
	g.calls++
	g.creds = append(g.creds, req.Credentials)
	return g.res, g.err
}

var primary = &domain.BackendConfig{Key: "gemini-main", Family: domain.FamilyGemini, Enabled: true, Active: true}

func imageToImage() image.Request {
	return image.Request{Prompt: "make it blue", ReferenceImages: []string{"https://cdn.test/a.png"}}
}

func newTestCoordinator(alt *countingGenerator, rec CallRecorder) (*Coordinator, *stubFinder) {
	finder := &stubFinder{backends: []domain.BackendConfig{
		{Key: "openai-off", Family: domain.FamilyOpenAI, Enabled: false},
		{Key: "openai-alt", Family: domain.FamilyOpenAI, Enabled: true, Credentials: domain.Credentials{APIKey: "alt-key"}},
	}}
	set := image.NewSetFrom(map[domain.ProviderFamily]image.Generator{domain.FamilyOpenAI: alt})
	return NewCoordinator(finder, set, Options{Recorder: rec}), finder
}

func TestAttemptFailoverUsesAlternateFamilyOnce(t *testing.T) {
	alt := &countingGenerator{res: image.Result{URL: "https://cdn.test/out.png"}}
	rec := &stubRecorder{}
	c, _ := newTestCoordinator(alt, rec)
	cause := &domain.ProviderCallError{Provider: "gemini", Status: 503, Message: "overloaded"}

	out, err := c.AttemptFailover(context.Background(), primary, imageToImage(), cause)
	if err != nil {
		t.Fatalf("failover: %v", err)
	}
	if out.Backend.Key != "openai-alt" || out.Result.URL != "https://cdn.test/out.png" {
		t.Fatalf("outcome = %+v", out)
	}
	if alt.calls != 1 {
		t.Fatalf("alternate calls = %d, want 1", alt.calls)
	}
	if alt.creds[0].APIKey != "alt-key" {
		t.Fatalf("alternate must run with its own credentials")
	}
	if len(rec.keys) != 1 || rec.keys[0] != "openai-alt" || !rec.success[0] {
		t.Fatalf("recorder = %+v", rec)
	}
}

func TestAttemptFailoverCombinesBothErrors(t *testing.T) {
	alt := &countingGenerator{err: &domain.TimeoutError{Provider: "openai", TaskID: "t", Attempts: 60}}
	c, _ := newTestCoordinator(alt, nil)
	cause := &domain.ImageExtractionError{Provider: "gemini", Checked: []string{"data"}}

	_, err := c.AttemptFailover(context.Background(), primary, imageToImage(), cause)
	var fe *domain.FailoverError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FailoverError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("primary error must stay in the chain")
	}
	msg := err.Error()
	if !strings.Contains(msg, "gemini: no image") || !strings.Contains(msg, "openai: task t") {
		t.Fatalf("combined message = %q", msg)
	}
	if alt.calls != 1 {
		t.Fatalf("alternate calls = %d, want exactly 1", alt.calls)
	}
}

func TestAttemptFailoverSkipsTextToImage(t *testing.T) {
	alt := &countingGenerator{}
	c, finder := newTestCoordinator(alt, nil)
	cause := &domain.ProviderCallError{Provider: "gemini", Message: "down"}

	_, err := c.AttemptFailover(context.Background(), primary, image.Request{Prompt: "a cat"}, cause)
	if err != cause {
		t.Fatalf("expected original error, got %v", err)
	}
	if alt.calls != 0 || finder.calls != 0 {
		t.Fatalf("text-to-image must not fail over")
	}
}

func TestAttemptFailoverSkipsContentBlocked(t *testing.T) {
	alt := &countingGenerator{}
	c, _ := newTestCoordinator(alt, nil)
	cause := &domain.ContentBlockedError{Provider: "gemini", Reason: "SAFETY"}

	_, err := c.AttemptFailover(context.Background(), primary, imageToImage(), cause)
	if err != cause || alt.calls != 0 {
		t.Fatalf("content blocks must surface directly, got %v after %d calls", err, alt.calls)
	}
}

func TestAttemptFailoverWithoutAlternateReturnsCause(t *testing.T) {
	alt := &countingGenerator{}
	c, _ := newTestCoordinator(alt, nil)
	stab := &domain.BackendConfig{Key: "stab", Family: domain.FamilyStability, Enabled: true}
	cause := &domain.ProviderCallError{Provider: "stability", Message: "down"}

	_, err := c.AttemptFailover(context.Background(), stab, imageToImage(), cause)
	if err != cause || alt.calls != 0 {
		t.Fatalf("expected cause without alternate, got %v", err)
	}
}
