package domain

// RuleType enumerates guard rule categories.
type RuleType string

const (
	RuleFacePreserve   RuleType = "face_preserve"
	RuleSafetyNSFW     RuleType = "safety_nsfw"
	RuleNegativePrompt RuleType = "negative_prompt"
	RuleQualityControl RuleType = "quality_control"
	RuleCustom         RuleType = "custom"
)

// Valid reports whether t is one of the known rule categories.
func (t RuleType) Valid() bool {
	switch t {
	case RuleFacePreserve, RuleSafetyNSFW, RuleNegativePrompt, RuleQualityControl, RuleCustom:
		return true
	}
	return false
}

// GuardRule is an admin-configured hidden instruction merged into the prompt
// sent to a backend but never persisted for the end user.
type GuardRule struct {
	ID           string
	Name         string
	Type         RuleType
	Enabled      bool
	Priority     int
	HiddenPrompt string
	ApplyTo      []GenerationType
}

// AppliesTo reports whether the rule targets the generation type. The generic
// image tag, or an empty set, matches every type.
func (r GuardRule) AppliesTo(t GenerationType) bool {
	if len(r.ApplyTo) == 0 {
		return true
	}
	for _, tag := range r.ApplyTo {
		if tag == t || tag == GenerationImage {
			return true
		}
	}
	return false
}

// IsNegative reports whether the rule feeds the negative prompt.
func (r GuardRule) IsNegative() bool {
	return r.Type == RuleNegativePrompt
}
