package image

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

func stabilityTestRequest() Request {
	return Request{
		Prompt:         "a castle in fog",
		NegativePrompt: "text, watermark",
		AspectRatio:    domain.Aspect3x2,
		Quality:        domain.QualityHD,
		Credentials:    domain.Credentials{APIKey: "sk-stab", BaseURL: "https://stability.test"},
	}
}

func TestStabilityAdapterDrainsImageBody(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPost, "/v2beta/stable-image/generate/core", responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"image/png"}, "Finish-Reason": []string{"SUCCESS"}},
		body:   pngBytes,
	})
	adapter := NewStabilityAdapter(Options{HTTPClient: transport.client()})

	res, err := adapter.Generate(context.Background(), stabilityTestRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.Equal(res.Data, pngBytes) || res.MIMEType != "image/png" {
		t.Fatalf("unexpected result %d bytes %q", len(res.Data), res.MIMEType)
	}
	captured, _ := transport.last(http.MethodPost, "/v2beta/stable-image/generate/core")
	if got := captured.header.Get("Accept"); got != "image/*" {
		t.Fatalf("accept = %q", got)
	}
	fields, files := readMultipart(t, captured)
	if fields["aspect_ratio"] != "3:2" || fields["negative_prompt"] != "text, watermark" {
		t.Fatalf("fields = %v", fields)
	}
	if _, ok := fields["model"]; ok {
		t.Fatalf("core endpoint must not send a model field")
	}
	if len(files) != 0 {
		t.Fatalf("text-to-image must not upload files")
	}
}

func TestStabilityAdapterImageToImageUsesSD3(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPost, "/v2beta/stable-image/generate/sd3", responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"image/png"}},
		body:   pngBytes,
	})
	adapter := NewStabilityAdapter(Options{HTTPClient: transport.client()})
	req := stabilityTestRequest()
	req.ReferenceImages = []string{pngDataURI()}
	req.Strength = 0.35

	if _, err := adapter.Generate(context.Background(), req); err != nil {
		t.Fatalf("generate: %v", err)
	}
	captured, ok := transport.last(http.MethodPost, "/v2beta/stable-image/generate/sd3")
	if !ok {
		t.Fatalf("expected sd3 call")
	}
	fields, files := readMultipart(t, captured)
	if fields["mode"] != "image-to-image" || fields["strength"] != "0.35" || fields["model"] != stabilityEditModel {
		t.Fatalf("fields = %v", fields)
	}
	if !bytes.Equal(files["image"], pngBytes) {
		t.Fatalf("init image not uploaded")
	}
}

func TestStabilityAdapterContentFiltered(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPost, "/v2beta/stable-image/generate/core", responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"image/png"}, "Finish-Reason": []string{"CONTENT_FILTERED"}},
		body:   pngBytes,
	})
	adapter := NewStabilityAdapter(Options{HTTPClient: transport.client()})

	_, err := adapter.Generate(context.Background(), stabilityTestRequest())
	if domain.KindOf(err) != domain.KindContentBlocked {
		t.Fatalf("kind = %v, want content blocked", domain.KindOf(err))
	}
}

func TestStabilityAdapterModerationStatus(t *testing.T) {
	transport := newCaptureTransport()
	transport.onJSON(http.MethodPost, "/v2beta/stable-image/generate/core", http.StatusForbidden, map[string]any{
		"name":   "content_moderation",
		"errors": []any{"Your request was flagged by our content moderation system"},
	})
	adapter := NewStabilityAdapter(Options{HTTPClient: transport.client()})

	_, err := adapter.Generate(context.Background(), stabilityTestRequest())
	if domain.KindOf(err) != domain.KindContentBlocked {
		t.Fatalf("kind = %v, want content blocked", domain.KindOf(err))
	}
}

func TestStabilityAdapterRejectsOversizedBody(t *testing.T) {
	transport := newCaptureTransport()
	body := make([]byte, maxResponseBytes+8)
	copy(body, pngBytes)
	transport.on(http.MethodPost, "/v2beta/stable-image/generate/core", responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"image/png"}},
		body:   body,
	})
	adapter := NewStabilityAdapter(Options{HTTPClient: transport.client()})

	res, err := adapter.Generate(context.Background(), stabilityTestRequest())
	var pce *domain.ProviderCallError
	if !errors.As(err, &pce) {
		t.Fatalf("expected ProviderCallError, got err=%v with %d bytes", err, len(res.Data))
	}
	if !res.IsZero() {
		t.Fatalf("truncated image must not be returned")
	}
}

func TestStabilityAdapterWrappedForbiddenIsContentBlocked(t *testing.T) {
	transport := newCaptureTransport()
	transport.onJSON(http.MethodPost, "/v2beta/stable-image/generate/core", http.StatusForbidden, map[string]any{
		"name":   "content_moderation",
		"errors": []any{"Your request was flagged by our content moderation system"},
	})
	adapter := NewStabilityAdapter(Options{HTTPClient: transport.client()})

	_, err := adapter.Generate(context.Background(), stabilityTestRequest())
	if domain.KindOf(err) != domain.KindContentBlocked {
		t.Fatalf("kind = %s", domain.KindOf(err))
	}
}
