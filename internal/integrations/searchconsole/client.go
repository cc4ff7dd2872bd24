// Package searchconsole pulls daily search performance from Google Search
// Console or Bing Webmaster Tools into search_stats.
package searchconsole

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/httpclient"
)

// DailyStat is one day of clicks/impressions/position for a site.
type DailyStat struct {
	Date        time.Time
	Clicks      int
	Impressions int
	Position    float64
}

// statsFetcher is implemented per provider.
type statsFetcher interface {
	Fetch(ctx context.Context, accessToken, siteURL string, from, to time.Time) ([]DailyStat, error)
}

// googleClient queries the Search Console analytics API.
type googleClient struct {
	baseURL    string
	httpClient *httpclient.Client
}

func newGoogleClient() *googleClient {
	return &googleClient{
		baseURL:    "https://searchconsole.googleapis.com/webmasters/v3",
		httpClient: httpclient.NewClient(30 * time.Second),
	}
}

func (c *googleClient) Fetch(ctx context.Context, accessToken, siteURL string, from, to time.Time) ([]DailyStat, error) {
	endpoint := fmt.Sprintf("%s/sites/%s/searchAnalytics/query", c.baseURL, url.PathEscape(siteURL))

	payload := map[string]interface{}{
		"startDate":  from.Format("2006-01-02"),
		"endDate":    to.Format("2006-01-02"),
		"dimensions": []string{"date"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError("google_search_console", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError("google_search_console", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError("google_search_console", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError("google_search_console", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamAPIFailedError("google_search_console",
			fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed struct {
		Rows []struct {
			Keys        []string `json:"keys"`
			Clicks      float64  `json:"clicks"`
			Impressions float64  `json:"impressions"`
			Position    float64  `json:"position"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError("google_search_console", err)
	}

	stats := make([]DailyStat, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		if len(row.Keys) == 0 {
			continue
		}
		day, err := time.Parse("2006-01-02", row.Keys[0])
		if err != nil {
			continue
		}
		stats = append(stats, DailyStat{
			Date:        day,
			Clicks:      int(row.Clicks),
			Impressions: int(row.Impressions),
			Position:    row.Position,
		})
	}
	return stats, nil
}

// bingClient queries the Webmaster Tools JSON API with an API key.
type bingClient struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func newBingClient(baseURL, apiKey string) *bingClient {
	if baseURL == "" {
		baseURL = "https://ssl.bing.com/webmaster/api.svc/json"
	}
	return &bingClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(30 * time.Second),
	}
}

func (c *bingClient) Fetch(ctx context.Context, _ string, siteURL string, from, to time.Time) ([]DailyStat, error) {
	endpoint := fmt.Sprintf("%s/GetRankAndTrafficStats?siteUrl=%s&apikey=%s",
		c.baseURL, url.QueryEscape(siteURL), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError("bing_webmaster", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError("bing_webmaster", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamAPIFailedError("bing_webmaster",
			fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed struct {
		D []struct {
			Date        string  `json:"Date"`
			Clicks      int     `json:"Clicks"`
			Impressions int     `json:"Impressions"`
			AvgPosition float64 `json:"AvgImpressionPosition"`
		} `json:"d"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewUpstreamAPIFailedError("bing_webmaster", err)
	}

	stats := []DailyStat{}
	for _, row := range parsed.D {
		day, err := parseBingDate(row.Date)
		if err != nil || day.Before(from) || day.After(to) {
			continue
		}
		stats = append(stats, DailyStat{
			Date:        day,
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			Position:    row.AvgPosition,
		})
	}
	return stats, nil
}

// parseBingDate accepts both ISO dates and the legacy /Date(ms)/ form.
func parseBingDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	var ms int64
	if _, err := fmt.Sscanf(raw, "/Date(%d)/", &ms); err == nil {
		return time.UnixMilli(ms).UTC().Truncate(24 * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", raw)
}
