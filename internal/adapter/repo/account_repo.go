package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/sqlinline"
)

// AccountRepositoryPG implements domain.AccountRepository using PostgreSQL.
// Balance mutations are conditional single statements.
type AccountRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(sql infra.SQLExecutor) *AccountRepositoryPG {
	return &AccountRepositoryPG{sql: sql}
}

// GetAccount loads the point balance and the current subscription pool.
func (r *AccountRepositoryPG) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	var (
		account   domain.Account
		hasPool   bool
		allocated decimal.Decimal
		used      decimal.Decimal
		periodEnd *time.Time
	)
	err := r.sql.QueryRow(ctx, sqlinline.QGetAccount, userID).
		Scan(&account.UserID, &account.Points, &hasPool, &allocated, &used, &periodEnd)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if hasPool {
		account.Pool = &domain.SubscriptionCreditPool{
			UserID:           userID,
			CreditsAllocated: allocated,
			CreditsUsed:      used,
			PeriodEnd:        periodEnd,
		}
	}
	return &account, nil
}

// ConsumeCredits adds amount to creditsUsed while the pool still covers it.
func (r *AccountRepositoryPG) ConsumeCredits(ctx context.Context, userID string, amount decimal.Decimal) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QConsumeCredits, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// DeductPoints decrements the point balance and returns what is left.
func (r *AccountRepositoryPG) DeductPoints(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	if err := r.sql.QueryRow(ctx, sqlinline.QDeductPoints, userID, amount).Scan(&remaining); err != nil {
		if infra.IsNoRows(err) {
			return decimal.Zero, domain.ErrInsufficientBalance
		}
		return decimal.Zero, err
	}
	return remaining, nil
}

// CreditPoints adds amount to the point balance, creating it when missing.
func (r *AccountRepositoryPG) CreditPoints(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := r.sql.Exec(ctx, sqlinline.QCreditPoints, userID, amount)
	return err
}

// AllocateCredits starts a fresh subscription period for the user.
func (r *AccountRepositoryPG) AllocateCredits(ctx context.Context, userID string, amount decimal.Decimal, periodEnd *time.Time) error {
	_, err := r.sql.Exec(ctx, sqlinline.QAllocateCredits, userID, amount, periodEnd)
	return err
}
