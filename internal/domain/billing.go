package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionCreditPool is a per-user allocation of pre-paid credits.
type SubscriptionCreditPool struct {
	UserID           string
	CreditsAllocated decimal.Decimal
	CreditsUsed      decimal.Decimal
	PeriodEnd        *time.Time
}

// Remaining is allocated minus used, floored at zero. A nil pool has nothing.
func (p *SubscriptionCreditPool) Remaining() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	r := p.CreditsAllocated.Sub(p.CreditsUsed)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Account is the two-tier balance of a user.
type Account struct {
	UserID string
	Points decimal.Decimal
	Pool   *SubscriptionCreditPool
}

// LedgerDirection is the sign of a balance-affecting event.
type LedgerDirection string

const (
	LedgerDebit  LedgerDirection = "debit"
	LedgerCredit LedgerDirection = "credit"
)

// LedgerSource names the balance the entry touched.
type LedgerSource string

const (
	SourceSubscription LedgerSource = "subscription"
	SourcePoints       LedgerSource = "points"
	SourceEarning      LedgerSource = "earning"
)

// LedgerEntry is an append-only transaction record.
type LedgerEntry struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Direction   LedgerDirection
	Source      LedgerSource
	Description string
	Status      string
	Reference   string
	CreatedAt   time.Time
}
