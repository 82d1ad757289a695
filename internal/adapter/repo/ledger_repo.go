package repo

import (
	"context"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/sqlinline"
)

// LedgerRepositoryPG implements domain.LedgerRepository using PostgreSQL.
type LedgerRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(sql infra.SQLExecutor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{sql: sql}
}

// Append inserts an immutable entry.
func (r *LedgerRepositoryPG) Append(ctx context.Context, e *domain.LedgerEntry) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertLedgerEntry,
		e.ID, e.UserID, e.Amount, string(e.Direction), string(e.Source), e.Description, e.Status, e.Reference, e.CreatedAt,
	)
	return err
}
