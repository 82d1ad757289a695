package image

import "github.com/RahulSriwastaw/new-backend-sub000/internal/domain"

func ratio(aspect domain.AspectRatio) (int, int) {
	switch aspect {
	case domain.Aspect16x9:
		return 16, 9
	case domain.Aspect9x16:
		return 9, 16
	case domain.Aspect4x3:
		return 4, 3
	case domain.Aspect3x4:
		return 3, 4
	case domain.Aspect3x2:
		return 3, 2
	case domain.Aspect2x3:
		return 2, 3
	default:
		return 1, 1
	}
}

// DashScopeSize maps an aspect ratio to a DashScope size token.
func DashScopeSize(aspect domain.AspectRatio) string {
	switch aspect {
	case domain.Aspect16x9:
		return "1664*928"
	case domain.Aspect4x3:
		return "1472*1104"
	case domain.Aspect3x4:
		return "1104*1472"
	case domain.Aspect9x16:
		return "928*1664"
	case domain.Aspect3x2:
		return "1536*1024"
	case domain.Aspect2x3:
		return "1024*1536"
	default:
		return "1328*1328"
	}
}

// OpenAISize maps an aspect ratio onto the three sizes the images API accepts.
func OpenAISize(aspect domain.AspectRatio) string {
	w, h := ratio(aspect)
	switch {
	case w > h:
		return "1536x1024"
	case h > w:
		return "1024x1536"
	default:
		return "1024x1024"
	}
}

// OpenAIQuality maps the quality tier to the images API quality parameter.
func OpenAIQuality(q domain.Quality) string {
	switch q {
	case domain.QualitySD:
		return "low"
	case domain.QualityHD:
		return "medium"
	default:
		return "high"
	}
}

// GeminiImageSize maps the quality tier to Gemini's imageSize token.
func GeminiImageSize(q domain.Quality) string {
	switch q {
	case domain.Quality2K:
		return "2K"
	case domain.Quality4K, domain.Quality8K:
		return "4K"
	default:
		return "1K"
	}
}
