package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/sqlinline"
)

// BackendRepositoryPG implements domain.BackendRepository using PostgreSQL.
type BackendRepositoryPG struct {
	sql infra.SQLExecutor
	tx  infra.TxRunner
}

// NewBackendRepository constructs the repository. tx is required for
// SetActive.
func NewBackendRepository(sql infra.SQLExecutor, tx infra.TxRunner) *BackendRepositoryPG {
	return &BackendRepositoryPG{sql: sql, tx: tx}
}

// List returns the registry entries of a scope, active first.
func (r *BackendRepositoryPG) List(ctx context.Context, scope string) ([]domain.BackendConfig, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListBackends, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BackendConfig
	for rows.Next() {
		cfg, err := scanBackend(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads one entry by key.
func (r *BackendRepositoryPG) Get(ctx context.Context, key string) (*domain.BackendConfig, error) {
	return r.one(ctx, sqlinline.QGetBackend, key)
}

// Active loads the active, enabled entry of a scope.
func (r *BackendRepositoryPG) Active(ctx context.Context, scope string) (*domain.BackendConfig, error) {
	return r.one(ctx, sqlinline.QActiveBackend, scope)
}

// FirstEnabledByFamily finds an enabled entry of family other than excludeKey.
func (r *BackendRepositoryPG) FirstEnabledByFamily(ctx context.Context, scope string, family domain.ProviderFamily, excludeKey string) (*domain.BackendConfig, error) {
	return r.one(ctx, sqlinline.QFirstEnabledBackendByFamily, scope, string(family), excludeKey)
}

// SetActive locks the scope's rows, checks the target, and flips every row of
// the scope in a single statement inside one transaction.
func (r *BackendRepositoryPG) SetActive(ctx context.Context, scope, key string) error {
	if r.tx == nil {
		return fmt.Errorf("backend repo: transactions unavailable")
	}
	return r.tx.InTx(ctx, func(tx infra.SQLExecutor) error {
		rows, err := tx.Query(ctx, sqlinline.QLockBackendScope, scope)
		if err != nil {
			return err
		}
		found, enabled := false, false
		for rows.Next() {
			var (
				k  string
				en bool
			)
			if err := rows.Scan(&k, &en); err != nil {
				rows.Close()
				return err
			}
			if k == key {
				found, enabled = true, en
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if !found {
			return domain.ErrNotFound
		}
		if !enabled {
			return &domain.ValidationError{Field: "key", Message: "backend " + key + " is disabled"}
		}
		_, err = tx.Exec(ctx, sqlinline.QSetActiveBackend, key, scope)
		return err
	})
}

// UpdateCredentials replaces the stored credentials of an entry.
func (r *BackendRepositoryPG) UpdateCredentials(ctx context.Context, key string, creds domain.Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateBackendCredentials, key, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordCall folds one call outcome into the entry's rolling stats.
func (r *BackendRepositoryPG) RecordCall(ctx context.Context, key string, success bool, latency time.Duration) error {
	outcome := 0.0
	if success {
		outcome = 1
	}
	_, err := r.sql.Exec(ctx, sqlinline.QRecordBackendCall, key, outcome, float64(latency)/float64(time.Millisecond))
	return err
}

// Upsert creates or updates an entry without touching its active flag.
func (r *BackendRepositoryPG) Upsert(ctx context.Context, cfg domain.BackendConfig) error {
	raw, err := json.Marshal(cfg.Credentials)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QUpsertBackend,
		cfg.Key, cfg.Scope, cfg.Name, string(cfg.Family), cfg.Enabled, raw, cfg.CostPerImage)
	return err
}

func (r *BackendRepositoryPG) one(ctx context.Context, query string, args ...any) (*domain.BackendConfig, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, domain.ErrNotFound
	}
	return scanBackend(rows)
}

func scanBackend(row pgx.Row) (*domain.BackendConfig, error) {
	var (
		cfg      domain.BackendConfig
		provider string
		rawCreds []byte
	)
	if err := row.Scan(
		&cfg.Key, &cfg.Scope, &cfg.Name, &provider, &cfg.Active, &cfg.Enabled, &rawCreds,
		&cfg.CostPerImage, &cfg.Stats.TotalCalls, &cfg.Stats.SuccessRate, &cfg.Stats.AvgLatencyMs,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	family, ok := domain.ParseFamily(provider)
	if !ok {
		return nil, fmt.Errorf("backend %s: unknown provider %q", cfg.Key, provider)
	}
	cfg.Family = family
	if len(rawCreds) > 0 {
		if err := json.Unmarshal(rawCreds, &cfg.Credentials); err != nil {
			return nil, fmt.Errorf("backend %s: decode credentials: %w", cfg.Key, err)
		}
	}
	return &cfg, nil
}
