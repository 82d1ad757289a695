package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// GenerationType selects which guard rules apply to a request.
type GenerationType string

const (
	GenerationImage        GenerationType = "image"
	GenerationImageToImage GenerationType = "image_to_image"
	GenerationTextToImage  GenerationType = "text_to_image"
)

// AspectRatio enumerates the fixed output ratios.
type AspectRatio string

const (
	Aspect1x1  AspectRatio = "1:1"
	Aspect16x9 AspectRatio = "16:9"
	Aspect9x16 AspectRatio = "9:16"
	Aspect4x3  AspectRatio = "4:3"
	Aspect3x4  AspectRatio = "3:4"
	Aspect3x2  AspectRatio = "3:2"
	Aspect2x3  AspectRatio = "2:3"
)

var aspectRatios = []AspectRatio{Aspect1x1, Aspect16x9, Aspect9x16, Aspect4x3, Aspect3x4, Aspect3x2, Aspect2x3}

// ParseAspectRatio accepts the canonical ratio strings; empty means 1:1.
func ParseAspectRatio(s string) (AspectRatio, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Aspect1x1, true
	}
	for _, a := range aspectRatios {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// Quality enumerates output resolutions from SD to 8K.
type Quality string

const (
	QualitySD Quality = "SD"
	QualityHD Quality = "HD"
	Quality2K Quality = "2K"
	Quality4K Quality = "4K"
	Quality8K Quality = "8K"
)

// ParseQuality is case-insensitive; empty means HD.
func ParseQuality(s string) (Quality, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return QualityHD, true
	case "SD":
		return QualitySD, true
	case "HD":
		return QualityHD, true
	case "2K":
		return Quality2K, true
	case "4K":
		return Quality4K, true
	case "8K":
		return Quality8K, true
	}
	return "", false
}

// CostMultiplier scales a backend's per-image cost.
func (q Quality) CostMultiplier() decimal.Decimal {
	switch q {
	case Quality2K:
		return decimal.NewFromFloat(1.5)
	case Quality4K:
		return decimal.NewFromInt(2)
	case Quality8K:
		return decimal.NewFromInt(3)
	default:
		return decimal.NewFromInt(1)
	}
}

// GenerationRequest is the normalized, ephemeral request consumed once by the
// orchestrator.
type GenerationRequest struct {
	UserID          string
	Prompt          string
	NegativePrompt  string
	ReferenceImages []string
	AspectRatio     AspectRatio
	Quality         Quality
	BackendID       string
	TemplateID      string
	Strength        float64
	// RequestID correlates logs across the pipeline.
	RequestID string
}

// Type derives the generation type from the presence of reference images.
func (r GenerationRequest) Type() GenerationType {
	if len(r.ReferenceImages) > 0 {
		return GenerationImageToImage
	}
	return GenerationTextToImage
}

// Template is an admin-curated prompt a request may build on.
type Template struct {
	ID           string
	Name         string
	Prompt       string
	CostOverride *decimal.Decimal
	CreatorID    string
}
