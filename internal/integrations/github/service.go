// Package github registers content webhooks on a brand's repository.
package github

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	gogithub "github.com/google/go-github/v61/github"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/validation"
	"github.com/stephennewman/contextmemo-sub002/internal/integrations"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

var hookEvents = []string{"push", "release"}

type Service struct {
	db             *sql.DB
	tokens         *integrations.TokenStore
	webhookBaseURL string
	logger         logger.Logger

	// overridable in tests to point the client at a stub server
	newClient func(ctx context.Context, accessToken string) *gogithub.Client
}

func NewService(db *sql.DB, tokens *integrations.TokenStore, cfg *config.Config, log logger.Logger) *Service {
	return &Service{
		db:             db,
		tokens:         tokens,
		webhookBaseURL: strings.TrimRight(cfg.Integrations.GitHub.WebhookBaseURL, "/"),
		logger:         log.WithFields(map[string]interface{}{"component": "github"}),
		newClient: func(ctx context.Context, accessToken string) *gogithub.Client {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
			return gogithub.NewClient(oauth2.NewClient(ctx, ts))
		},
	}
}

// EnsureWebhook creates the content webhook on the repository, or updates
// the existing one, with a freshly generated secret.
func (s *Service) EnsureWebhook(ctx context.Context, brandID, repoOwner, repoName string) (*models.WebhookConfig, error) {
	if repoOwner == "" || repoName == "" {
		return nil, apperrors.NewValidationError("repoOwner and repoName are required")
	}
	if !validation.ValidateURL(s.webhookBaseURL) {
		return nil, apperrors.NewValidationError("webhook base URL is not configured")
	}

	token, err := s.tokens.Get(ctx, brandID, models.ProviderGitHub)
	if err != nil {
		return nil, err
	}
	client := s.newClient(ctx, token.AccessToken)

	secret, err := generateSecret()
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("secret_gen", err)
	}

	hook := &gogithub.Hook{
		Active: gogithub.Bool(true),
		Events: hookEvents,
		Config: &gogithub.HookConfig{
			URL:         gogithub.String(s.webhookBaseURL + "/webhooks/github"),
			ContentType: gogithub.String("json"),
			Secret:      gogithub.String(secret),
		},
	}

	existing, err := s.loadConfig(ctx, brandID)
	if err != nil {
		return nil, err
	}

	var created *gogithub.Hook
	if existing != nil && existing.RepoOwner == repoOwner && existing.RepoName == repoName {
		created, _, err = client.Repositories.EditHook(ctx, repoOwner, repoName, existing.HookID, hook)
	} else {
		created, _, err = client.Repositories.CreateHook(ctx, repoOwner, repoName, hook)
	}
	if err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError(models.ProviderGitHub, err)
	}

	cfg := &models.WebhookConfig{
		ID:        uuid.New().String(),
		BrandID:   brandID,
		RepoOwner: repoOwner,
		RepoName:  repoName,
		HookID:    created.GetID(),
		Secret:    secret,
	}
	if existing != nil {
		cfg.ID = existing.ID
	}
	if err := s.saveConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("github webhook ensured", map[string]interface{}{
		"brandId": brandID,
		"repo":    repoOwner + "/" + repoName,
		"hookId":  cfg.HookID,
	})
	return cfg, nil
}

// RotateSecret generates a new secret for the registered webhook and
// patches it on GitHub before persisting.
func (s *Service) RotateSecret(ctx context.Context, brandID string) (*models.WebhookConfig, error) {
	existing, err := s.loadConfig(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperrors.NewIntegrationNotConnectedError(models.ProviderGitHub)
	}

	token, err := s.tokens.Get(ctx, brandID, models.ProviderGitHub)
	if err != nil {
		return nil, err
	}
	client := s.newClient(ctx, token.AccessToken)

	secret, err := generateSecret()
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("secret_gen", err)
	}

	hook := &gogithub.Hook{
		Config: &gogithub.HookConfig{
			URL:         gogithub.String(s.webhookBaseURL + "/webhooks/github"),
			ContentType: gogithub.String("json"),
			Secret:      gogithub.String(secret),
		},
	}
	_, _, err = client.Repositories.EditHook(ctx, existing.RepoOwner, existing.RepoName, existing.HookID, hook)
	if err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError(models.ProviderGitHub, err)
	}

	existing.Secret = secret
	if err := s.saveConfig(ctx, existing); err != nil {
		return nil, err
	}

	s.logger.Info("github webhook secret rotated", map[string]interface{}{
		"brandId": brandID,
		"hookId":  existing.HookID,
	})
	return existing, nil
}

func (s *Service) loadConfig(ctx context.Context, brandID string) (*models.WebhookConfig, error) {
	var cfg models.WebhookConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, repo_owner, repo_name, hook_id, secret, updated_at
		 FROM webhook_configs WHERE brand_id = $1`, brandID,
	).Scan(&cfg.ID, &cfg.BrandID, &cfg.RepoOwner, &cfg.RepoName, &cfg.HookID, &cfg.Secret, &cfg.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewQueryExecutionFailedError("load_webhook_config", err)
	}
	return &cfg, nil
}

func (s *Service) saveConfig(ctx context.Context, cfg *models.WebhookConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_configs (id, brand_id, repo_owner, repo_name, hook_id, secret, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (brand_id) DO UPDATE SET
		   repo_owner = EXCLUDED.repo_owner,
		   repo_name = EXCLUDED.repo_name,
		   hook_id = EXCLUDED.hook_id,
		   secret = EXCLUDED.secret,
		   updated_at = NOW()`,
		cfg.ID, cfg.BrandID, cfg.RepoOwner, cfg.RepoName, cfg.HookID, cfg.Secret)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
