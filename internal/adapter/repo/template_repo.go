package repo

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/sqlinline"
)

// TemplateRepositoryPG implements domain.TemplateRepository using PostgreSQL.
type TemplateRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(sql infra.SQLExecutor) *TemplateRepositoryPG {
	return &TemplateRepositoryPG{sql: sql}
}

// Get loads a published template.
func (r *TemplateRepositoryPG) Get(ctx context.Context, id string) (*domain.Template, error) {
	var (
		tpl      domain.Template
		override decimal.NullDecimal
	)
	err := r.sql.QueryRow(ctx, sqlinline.QGetTemplate, id).
		Scan(&tpl.ID, &tpl.Name, &tpl.Prompt, &override, &tpl.CreatorID)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if override.Valid {
		v := override.Decimal
		tpl.CostOverride = &v
	}
	return &tpl, nil
}
