package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GuardRuleRepository loads guard rules.
type GuardRuleRepository interface {
	ListEnabled(ctx context.Context) ([]GuardRule, error)
	List(ctx context.Context) ([]GuardRule, error)
}

// BackendRepository persists the backend registry.
type BackendRepository interface {
	List(ctx context.Context, scope string) ([]BackendConfig, error)
	Get(ctx context.Context, key string) (*BackendConfig, error)
	Active(ctx context.Context, scope string) (*BackendConfig, error)
	FirstEnabledByFamily(ctx context.Context, scope string, family ProviderFamily, excludeKey string) (*BackendConfig, error)
	// SetActive must flip every other entry of the scope off in the same
	// transaction as it flips key on.
	SetActive(ctx context.Context, scope, key string) error
	UpdateCredentials(ctx context.Context, key string, creds Credentials) error
	RecordCall(ctx context.Context, key string, success bool, latency time.Duration) error
}

// AccountRepository reads and mutates the two-tier balance. Mutations are
// conditional single statements so a stale snapshot cannot overspend.
type AccountRepository interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
	ConsumeCredits(ctx context.Context, userID string, amount decimal.Decimal) error
	DeductPoints(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	CreditPoints(ctx context.Context, userID string, amount decimal.Decimal) error
	AllocateCredits(ctx context.Context, userID string, amount decimal.Decimal, periodEnd *time.Time) error
}

// GenerationRepository persists generation records.
type GenerationRepository interface {
	Create(ctx context.Context, record *GenerationRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]GenerationRecord, error)
	IncrementCounter(ctx context.Context, recordID, userID string, counter Counter) error
}

// LedgerRepository appends transactions.
type LedgerRepository interface {
	Append(ctx context.Context, entry *LedgerEntry) error
}

// TemplateRepository resolves prompt templates.
type TemplateRepository interface {
	Get(ctx context.Context, id string) (*Template, error)
}
