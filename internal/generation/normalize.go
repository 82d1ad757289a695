package generation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

// Input is the caller-facing generation request.
type Input struct {
	Prompt          string   `json:"prompt" validate:"required,max=4000"`
	NegativePrompt  string   `json:"negativePrompt" validate:"max=2000"`
	ReferenceImages []string `json:"referenceImages" validate:"max=4,dive,required,url|datauri"`
	AspectRatio     string   `json:"aspectRatio"`
	Quality         string   `json:"quality"`
	BackendID       string   `json:"backendId" validate:"max=128"`
	TemplateID      string   `json:"templateId" validate:"max=128"`
	Strength        *float64 `json:"strength" validate:"omitempty,gte=0,lte=1"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

// Normalize trims and validates in, returning a ValidationError for the first
// offending field.
func Normalize(userID string, in Input) (domain.GenerationRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "userId", Message: "is required"}
	}
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.NegativePrompt = strings.TrimSpace(in.NegativePrompt)
	in.BackendID = strings.TrimSpace(in.BackendID)
	in.TemplateID = strings.TrimSpace(in.TemplateID)
	refs := make([]string, 0, len(in.ReferenceImages))
	for _, ref := range in.ReferenceImages {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	in.ReferenceImages = refs

	if err := validatorInstance().Struct(in); err != nil {
		return domain.GenerationRequest{}, translateValidation(err)
	}

	aspect, ok := domain.ParseAspectRatio(in.AspectRatio)
	if !ok {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "aspectRatio", Message: fmt.Sprintf("unsupported value %q", in.AspectRatio)}
	}
	quality, ok := domain.ParseQuality(in.Quality)
	if !ok {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "quality", Message: fmt.Sprintf("unsupported value %q", in.Quality)}
	}

	req := domain.GenerationRequest{
		UserID:          userID,
		Prompt:          in.Prompt,
		NegativePrompt:  in.NegativePrompt,
		ReferenceImages: refs,
		AspectRatio:     aspect,
		Quality:         quality,
		BackendID:       in.BackendID,
		TemplateID:      in.TemplateID,
	}
	// Strength only means something when there is an image to transform.
	if in.Strength != nil && len(refs) > 0 {
		req.Strength = *in.Strength
	}
	return req, nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	return &domain.ValidationError{Field: fe.Field(), Message: describe(fe)}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Field() == "referenceImages" {
			return fmt.Sprintf("at most %s reference images are allowed", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte", "lte":
		return "must be between 0 and 1"
	case "url|datauri":
		return "must be an http(s) URL or a data URI"
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}
