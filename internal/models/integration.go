package models

import "time"

// Integration providers.
const (
	ProviderHubSpot             = "hubspot"
	ProviderGitHub              = "github"
	ProviderGoogleSearchConsole = "google_search_console"
	ProviderBingWebmaster       = "bing_webmaster"
)

// IntegrationToken is a stored OAuth credential for a brand integration.
type IntegrationToken struct {
	ID           string    `json:"id"`
	BrandID      string    `json:"brandId"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WebhookConfig is a registered GitHub webhook for a brand's repository.
type WebhookConfig struct {
	ID        string    `json:"id"`
	BrandID   string    `json:"brandId"`
	RepoOwner string    `json:"repoOwner"`
	RepoName  string    `json:"repoName"`
	HookID    int64     `json:"hookId"`
	Secret    string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SearchStat is one day of search-console performance for a brand.
type SearchStat struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brandId"`
	Provider    string    `json:"provider"`
	Date        time.Time `json:"date"`
	Clicks      int       `json:"clicks"`
	Impressions int       `json:"impressions"`
	Position    float64   `json:"position"`
}
