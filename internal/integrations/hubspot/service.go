package hubspot

import (
	"context"
	"database/sql"
	"strings"

	"golang.org/x/oauth2"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/integrations"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

// SyncResult reports what happened to one memo during post sync.
type SyncResult struct {
	MemoID string `json:"memoId"`
	PostID string `json:"postId"`
	Action string `json:"action"` // created | updated
}

type Service struct {
	db     *sql.DB
	tokens *integrations.TokenStore
	client *Client
	oauth  *oauth2.Config
	logger logger.Logger
}

func NewService(db *sql.DB, tokens *integrations.TokenStore, cfg *config.Config, log logger.Logger) *Service {
	hubspotCfg := cfg.Integrations.HubSpot
	return &Service{
		db:     db,
		tokens: tokens,
		client: NewClient(hubspotCfg.BaseURL),
		oauth: &oauth2.Config{
			ClientID:     hubspotCfg.ClientID,
			ClientSecret: hubspotCfg.ClientSecret,
			RedirectURL:  hubspotCfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://app.hubspot.com/oauth/authorize",
				TokenURL: "https://api.hubapi.com/oauth/v1/token",
			},
		},
		logger: log.WithFields(map[string]interface{}{"component": "hubspot"}),
	}
}

// Connect exchanges the OAuth authorization code and stores the credential.
func (s *Service) Connect(ctx context.Context, brandID, code string) error {
	if strings.TrimSpace(code) == "" {
		return apperrors.NewValidationError("authorization code is required")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return apperrors.NewOAuthExchangeFailedError(models.ProviderHubSpot, err)
	}

	err = s.tokens.Upsert(ctx, &models.IntegrationToken{
		BrandID:      brandID,
		Provider:     models.ProviderHubSpot,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	})
	if err != nil {
		return err
	}

	s.logger.Info("hubspot connected", map[string]interface{}{"brandId": brandID})
	return nil
}

// ListPosts returns the connected portal's blog posts.
func (s *Service) ListPosts(ctx context.Context, brandID string, limit int) ([]BlogPost, error) {
	token, err := s.accessToken(ctx, brandID)
	if err != nil {
		return nil, err
	}
	return s.client.ListPosts(ctx, token, limit)
}

// SyncMemo pushes one published memo as a blog post, creating or updating
// by slug.
func (s *Service) SyncMemo(ctx context.Context, brandID, memoID string) (*SyncResult, error) {
	token, err := s.accessToken(ctx, brandID)
	if err != nil {
		return nil, err
	}

	var m models.Memo
	err = s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, slug, title, body, status FROM memos WHERE id = $1 AND brand_id = $2`,
		memoID, brandID,
	).Scan(&m.ID, &m.BrandID, &m.Slug, &m.Title, &m.Body, &m.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeMemoNotFound, memoID)
		}
		return nil, apperrors.NewQueryExecutionFailedError("load_memo", err)
	}
	if m.Status != models.MemoPublished {
		return nil, apperrors.NewValidationError("only published memos can be synced")
	}

	post := &BlogPost{
		Name:     m.Title,
		PostBody: m.Body,
		Slug:     m.Slug,
	}

	existing, err := s.client.ListPosts(ctx, token, 100)
	if err != nil {
		return nil, err
	}
	for _, candidate := range existing {
		if candidate.Slug == m.Slug {
			post.ID = candidate.ID
			break
		}
	}

	result := &SyncResult{MemoID: m.ID}
	if post.ID != "" {
		updated, err := s.client.UpdatePost(ctx, token, post)
		if err != nil {
			return nil, err
		}
		result.PostID = updated.ID
		result.Action = "updated"
	} else {
		created, err := s.client.CreatePost(ctx, token, post)
		if err != nil {
			return nil, err
		}
		result.PostID = created.ID
		result.Action = "created"
	}

	s.logger.Info("memo synced to hubspot", map[string]interface{}{
		"brandId": brandID,
		"memoId":  m.ID,
		"postId":  result.PostID,
		"action":  result.Action,
	})
	return result, nil
}

// accessToken returns a live access token, refreshing through the oauth2
// token source when the stored one has expired.
func (s *Service) accessToken(ctx context.Context, brandID string) (string, error) {
	stored, err := s.tokens.Get(ctx, brandID, models.ProviderHubSpot)
	if err != nil {
		return "", err
	}

	source := s.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.ExpiresAt,
	})
	fresh, err := source.Token()
	if err != nil {
		return "", apperrors.NewOAuthExchangeFailedError(models.ProviderHubSpot, err)
	}

	if fresh.AccessToken != stored.AccessToken {
		stored.AccessToken = fresh.AccessToken
		if fresh.RefreshToken != "" {
			stored.RefreshToken = fresh.RefreshToken
		}
		stored.ExpiresAt = fresh.Expiry
		if err := s.tokens.Upsert(ctx, stored); err != nil {
			return "", err
		}
	}
	return fresh.AccessToken, nil
}
