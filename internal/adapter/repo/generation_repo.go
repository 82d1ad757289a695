package repo

import (
	"context"
	"fmt"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository using PostgreSQL.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository constructs the repository.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create inserts a record.
func (r *GenerationRepositoryPG) Create(ctx context.Context, rec *domain.GenerationRecord) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGenerationRecord,
		rec.ID, rec.UserID, rec.BackendKey, rec.TemplateID, rec.Prompt, rec.ImageURL, rec.Cost,
		string(rec.Quality), string(rec.AspectRatio), string(rec.Status), rec.ErrorMessage, rec.CreatedAt,
	)
	return err
}

// ListByUser returns the newest records of a user.
func (r *GenerationRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationRecord, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerationRecords, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GenerationRecord
	for rows.Next() {
		var (
			rec                          domain.GenerationRecord
			quality, aspect, statusValue string
		)
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.BackendKey, &rec.TemplateID, &rec.Prompt, &rec.ImageURL, &rec.Cost,
			&quality, &aspect, &statusValue, &rec.ErrorMessage,
			&rec.Favorite, &rec.DownloadCount, &rec.ShareCount, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rec.Quality = domain.Quality(quality)
		rec.AspectRatio = domain.AspectRatio(aspect)
		rec.Status = domain.GenerationStatus(statusValue)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementCounter bumps a counter on a record owned by userID. The favorite
// counter toggles.
func (r *GenerationRepositoryPG) IncrementCounter(ctx context.Context, recordID, userID string, counter domain.Counter) error {
	var query string
	switch counter {
	case domain.CounterFavorite:
		query = sqlinline.QToggleFavorite
	case domain.CounterDownload:
		query = sqlinline.QIncrementDownloadCount
	case domain.CounterShare:
		query = sqlinline.QIncrementShareCount
	default:
		return &domain.ValidationError{Field: "counter", Message: fmt.Sprintf("unknown counter %q", counter)}
	}
	tag, err := r.sql.Exec(ctx, query, recordID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
