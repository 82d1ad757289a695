package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderFamily identifies the wire protocol an adapter speaks.
type ProviderFamily string

const (
	FamilyGemini    ProviderFamily = "gemini"
	FamilyOpenAI    ProviderFamily = "openai"
	FamilyStability ProviderFamily = "stability"
	FamilyDashScope ProviderFamily = "dashscope"
)

// Families lists every supported provider family.
var Families = []ProviderFamily{FamilyGemini, FamilyOpenAI, FamilyStability, FamilyDashScope}

// ParseFamily normalizes a stored provider identity. Aliases used by older
// configuration rows are accepted.
func ParseFamily(s string) (ProviderFamily, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini", "google", "nano-banana", "nanobanana":
		return FamilyGemini, true
	case "openai", "dall-e", "gpt-image":
		return FamilyOpenAI, true
	case "stability", "stabilityai", "stable-diffusion":
		return FamilyStability, true
	case "dashscope", "qwen", "wanx":
		return FamilyDashScope, true
	}
	return "", false
}

// Credentials are the per-backend secrets and endpoints handed to an adapter.
type Credentials struct {
	APIKey  string            `json:"api_key,omitempty"`
	BaseURL string            `json:"base_url,omitempty"`
	Model   string            `json:"model,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// BackendStats is approximate rolling telemetry. Updates are read-modify-write
// without coordination between writers, so concurrent calls may lose
// increments. It must not be used for billing.
type BackendStats struct {
	TotalCalls   int64   `json:"total_calls"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Record folds one call outcome into the running means.
func (s BackendStats) Record(success bool, latency time.Duration) BackendStats {
	n := float64(s.TotalCalls)
	outcome := 0.0
	if success {
		outcome = 1
	}
	ms := float64(latency) / float64(time.Millisecond)
	return BackendStats{
		TotalCalls:   s.TotalCalls + 1,
		SuccessRate:  (s.SuccessRate*n + outcome) / (n + 1),
		AvgLatencyMs: (s.AvgLatencyMs*n + ms) / (n + 1),
	}
}

// BackendConfig is one entry of the backend registry. At most one entry per
// scope is active at any committed point in time.
type BackendConfig struct {
	Key          string
	Scope        string
	Name         string
	Family       ProviderFamily
	Active       bool
	Enabled      bool
	Credentials  Credentials
	CostPerImage decimal.Decimal
	Stats        BackendStats
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CostFor prices one image at the given quality.
func (b BackendConfig) CostFor(q Quality) decimal.Decimal {
	return b.CostPerImage.Mul(q.CostMultiplier())
}
