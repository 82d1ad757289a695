package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/sqlinline"
)

// Store keeps one fallback credential set per provider family in the
// integration_tokens table. Backends without their own api key borrow it.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

type properties struct {
	BaseURL string            `json:"base_url,omitempty"`
	Model   string            `json:"model,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// Lookup returns the stored credentials of a family. A family with nothing
// stored yields empty credentials and no error.
func (s *Store) Lookup(ctx context.Context, family domain.ProviderFamily) (domain.Credentials, error) {
	var (
		token string
		raw   []byte
	)
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, string(family)).Scan(&token, &raw); err != nil {
		if infra.IsNoRows(err) {
			return domain.Credentials{}, nil
		}
		return domain.Credentials{}, err
	}
	var props properties
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &props); err != nil {
			return domain.Credentials{}, err
		}
	}
	return domain.Credentials{
		APIKey:  strings.TrimSpace(token),
		BaseURL: strings.TrimSpace(props.BaseURL),
		Model:   strings.TrimSpace(props.Model),
		Extra:   props.Extra,
	}, nil
}

// Save stores the fallback credentials of a family.
func (s *Store) Save(ctx context.Context, family domain.ProviderFamily, creds domain.Credentials) error {
	key := strings.TrimSpace(creds.APIKey)
	if key == "" {
		return errors.New(string(family) + " api key is required")
	}
	return s.upsert(ctx, string(family), key, properties{
		BaseURL: strings.TrimSpace(creds.BaseURL),
		Model:   strings.TrimSpace(creds.Model),
		Extra:   creds.Extra,
	})
}

func (s *Store) upsert(ctx context.Context, provider, token string, props properties) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
