package generation

import (
	"strings"
	"testing"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

func TestNormalizeDefaults(t *testing.T) {
	req, err := Normalize(" u1 ", Input{Prompt: "  a cat  ", ReferenceImages: []string{" ", "https://cdn.test/a.png"}})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.UserID != "u1" || req.Prompt != "a cat" {
		t.Fatalf("req = %+v", req)
	}
	if req.AspectRatio != domain.Aspect1x1 || req.Quality != domain.QualityHD {
		t.Fatalf("defaults = %s %s", req.AspectRatio, req.Quality)
	}
	if len(req.ReferenceImages) != 1 || req.Type() != domain.GenerationImageToImage {
		t.Fatalf("references = %v", req.ReferenceImages)
	}
}

func TestNormalizeDropsStrengthWithoutReferences(t *testing.T) {
	s := 0.7
	req, err := Normalize("u1", Input{Prompt: "a cat", Strength: &s})
	if err != nil || req.Strength != 0 {
		t.Fatalf("strength = %v, %v", req.Strength, err)
	}
	req, err = Normalize("u1", Input{Prompt: "a cat", Strength: &s, ReferenceImages: []string{"data:image/png;base64,iVBORw0KGgo="}})
	if err != nil || req.Strength != 0.7 {
		t.Fatalf("strength = %v, %v", req.Strength, err)
	}
}

func TestNormalizeRejects(t *testing.T) {
	tooStrong := 1.5
	cases := []struct {
		name  string
		user  string
		in    Input
		field string
	}{
		{"missing user", "", Input{Prompt: "x"}, "userId"},
		{"blank prompt", "u1", Input{Prompt: "   "}, "prompt"},
		{"long prompt", "u1", Input{Prompt: strings.Repeat("a", 4001)}, "prompt"},
		{"bad aspect", "u1", Input{Prompt: "x", AspectRatio: "5:4"}, "aspectRatio"},
		{"bad quality", "u1", Input{Prompt: "x", Quality: "16K"}, "quality"},
		{"bad reference", "u1", Input{Prompt: "x", ReferenceImages: []string{"not a url"}}, "referenceImages[0]"},
		{"too many references", "u1", Input{Prompt: "x", ReferenceImages: []string{"https://a.test/1", "https://a.test/2", "https://a.test/3", "https://a.test/4", "https://a.test/5"}}, "referenceImages"},
		{"strength range", "u1", Input{Prompt: "x", Strength: &tooStrong}, "strength"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.user, tc.in)
			ve, ok := err.(*domain.ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q (%s)", ve.Field, tc.field, ve.Message)
			}
		})
	}
}
