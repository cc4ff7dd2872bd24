package searchconsole

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/integrations"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

const defaultPullWindow = 28 // days

// PullResult summarizes one stats pull.
type PullResult struct {
	Provider string `json:"provider"`
	Days     int    `json:"days"`
	Upserted int    `json:"upserted"`
}

type Service struct {
	db      *sql.DB
	tokens  *integrations.TokenStore
	google  statsFetcher
	bing    statsFetcher
	oauth   *oauth2.Config
	bingKey string
	logger  logger.Logger
}

func NewService(db *sql.DB, tokens *integrations.TokenStore, cfg *config.Config, log logger.Logger) *Service {
	scCfg := cfg.Integrations.SearchConsole
	return &Service{
		db:     db,
		tokens: tokens,
		google: newGoogleClient(),
		bing:   newBingClient(scCfg.Bing.BaseURL, scCfg.Bing.APIKey),
		oauth: &oauth2.Config{
			ClientID:     scCfg.Google.ClientID,
			ClientSecret: scCfg.Google.ClientSecret,
			RedirectURL:  scCfg.Google.RedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/webmasters.readonly"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		bingKey: scCfg.Bing.APIKey,
		logger:  log.WithFields(map[string]interface{}{"component": "searchconsole"}),
	}
}

// Connect links a provider. Google exchanges an OAuth code; Bing only needs
// the configured API key and stores a marker credential.
func (s *Service) Connect(ctx context.Context, brandID, provider, code string) error {
	switch provider {
	case models.ProviderGoogleSearchConsole:
		if strings.TrimSpace(code) == "" {
			return apperrors.NewValidationError("authorization code is required")
		}
		token, err := s.oauth.Exchange(ctx, code)
		if err != nil {
			return apperrors.NewOAuthExchangeFailedError(provider, err)
		}
		return s.tokens.Upsert(ctx, &models.IntegrationToken{
			BrandID:      brandID,
			Provider:     provider,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresAt:    token.Expiry,
		})

	case models.ProviderBingWebmaster:
		if s.bingKey == "" {
			return apperrors.NewIntegrationNotConnectedError(provider)
		}
		return s.tokens.Upsert(ctx, &models.IntegrationToken{
			BrandID:     brandID,
			Provider:    provider,
			AccessToken: "configured",
			ExpiresAt:   time.Now().AddDate(10, 0, 0),
		})

	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown provider: %s", provider))
	}
}

// Pull fetches the last pull window of daily stats for the brand's domain
// and upserts them into search_stats.
func (s *Service) Pull(ctx context.Context, brandID, provider string) (*PullResult, error) {
	fetcher, err := s.fetcherFor(provider)
	if err != nil {
		return nil, err
	}

	accessToken := ""
	if provider == models.ProviderGoogleSearchConsole {
		token, err := s.freshGoogleToken(ctx, brandID)
		if err != nil {
			return nil, err
		}
		accessToken = token
	} else {
		if _, err := s.tokens.Get(ctx, brandID, provider); err != nil {
			return nil, err
		}
	}

	var domain string
	if err := s.db.QueryRowContext(ctx,
		`SELECT domain FROM brands WHERE id = $1`, brandID).Scan(&domain); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeBrandNotFound, brandID)
		}
		return nil, apperrors.NewQueryExecutionFailedError("load_brand_domain", err)
	}

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -defaultPullWindow)
	stats, err := fetcher.Fetch(ctx, accessToken, "https://"+domain, from, to)
	if err != nil {
		return nil, err
	}

	upserted := 0
	for _, stat := range stats {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO search_stats (id, brand_id, provider, date, clicks, impressions, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (brand_id, provider, date) DO UPDATE SET
			   clicks = EXCLUDED.clicks,
			   impressions = EXCLUDED.impressions,
			   position = EXCLUDED.position`,
			uuid.New().String(), brandID, provider, stat.Date,
			stat.Clicks, stat.Impressions, stat.Position)
		if err != nil {
			return nil, apperrors.NewDatabaseInsertFailedError(err)
		}
		upserted++
	}

	s.logger.Info("search stats pulled", map[string]interface{}{
		"brandId":  brandID,
		"provider": provider,
		"days":     len(stats),
	})
	return &PullResult{Provider: provider, Days: len(stats), Upserted: upserted}, nil
}

// Stats returns the stored daily stats for a brand, newest first.
func (s *Service) Stats(ctx context.Context, brandID, provider string, limit int) ([]models.SearchStat, error) {
	if limit <= 0 {
		limit = 90
	}

	query := `SELECT id, brand_id, provider, date, clicks, impressions, position
		FROM search_stats WHERE brand_id = $1`
	args := []interface{}{brandID}
	if provider != "" {
		query += ` AND provider = $2`
		args = append(args, provider)
	}
	query += fmt.Sprintf(` ORDER BY date DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_search_stats", err)
	}
	defer rows.Close()

	stats := []models.SearchStat{}
	for rows.Next() {
		var stat models.SearchStat
		if err := rows.Scan(&stat.ID, &stat.BrandID, &stat.Provider, &stat.Date,
			&stat.Clicks, &stat.Impressions, &stat.Position); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_search_stat", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_search_stats", err)
	}
	return stats, nil
}

func (s *Service) fetcherFor(provider string) (statsFetcher, error) {
	switch provider {
	case models.ProviderGoogleSearchConsole:
		return s.google, nil
	case models.ProviderBingWebmaster:
		return s.bing, nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown provider: %s", provider))
	}
}

func (s *Service) freshGoogleToken(ctx context.Context, brandID string) (string, error) {
	stored, err := s.tokens.Get(ctx, brandID, models.ProviderGoogleSearchConsole)
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
		return "", apperrors.NewOAuthExchangeFailedError(models.ProviderGoogleSearchConsole, err)
	}

	if fresh.AccessToken != stored.AccessToken {
		stored.AccessToken = fresh.AccessToken
		stored.ExpiresAt = fresh.Expiry
		if err := s.tokens.Upsert(ctx, stored); err != nil {
			return "", err
		}
	}
	return fresh.AccessToken, nil
}
