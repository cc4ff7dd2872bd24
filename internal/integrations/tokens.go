// Package integrations holds credential storage shared by the provider
// packages.
package integrations

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

// TokenStore persists per-brand provider credentials.
type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Upsert stores or replaces the credential for (brand, provider).
func (s *TokenStore) Upsert(ctx context.Context, token *models.IntegrationToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO integration_tokens (id, brand_id, provider, access_token, refresh_token, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (brand_id, provider) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   expires_at = EXCLUDED.expires_at,
		   updated_at = NOW()`,
		token.ID, token.BrandID, token.Provider,
		token.AccessToken, token.RefreshToken, token.ExpiresAt)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Get loads the credential for (brand, provider). A missing row means the
// integration was never connected.
func (s *TokenStore) Get(ctx context.Context, brandID, provider string) (*models.IntegrationToken, error) {
	var t models.IntegrationToken
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, provider, access_token, refresh_token, expires_at, updated_at
		 FROM integration_tokens WHERE brand_id = $1 AND provider = $2`,
		brandID, provider,
	).Scan(&t.ID, &t.BrandID, &t.Provider, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewIntegrationNotConnectedError(provider)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get_integration_token", err)
	}
	return &t, nil
}
