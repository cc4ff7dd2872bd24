package searchconsole

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/integrations"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

type fakeFetcher struct {
	stats []DailyStat
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, _, _ string, _, _ time.Time) ([]DailyStat, error) {
	return f.stats, f.err
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeFetcher, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Integrations.SearchConsole.Bing.APIKey = "bing-key"

	service := NewService(db, integrations.NewTokenStore(db), cfg, logger.NewNoOpLogger())
	fetcher := &fakeFetcher{}
	service.bing = fetcher
	return service, mock, fetcher, func() { db.Close() }
}

func TestConnectUnknownProvider(t *testing.T) {
	service, _, _, cleanup := newTestService(t)
	defer cleanup()

	err := service.Connect(context.Background(), "brand-1", "yandex", "")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
}

func TestConnectBingStoresMarker(t *testing.T) {
	service, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO integration_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := service.Connect(context.Background(), "brand-1", models.ProviderBingWebmaster, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPullNotConnected(t *testing.T) {
	service, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM integration_tokens").
		WithArgs("brand-1", models.ProviderBingWebmaster).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := service.Pull(context.Background(), "brand-1", models.ProviderBingWebmaster)
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeIntegrationNotConnected, stdErr.Code)
}

func TestPullUpsertsDailyRows(t *testing.T) {
	service, mock, fetcher, cleanup := newTestService(t)
	defer cleanup()

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	fetcher.stats = []DailyStat{
		{Date: day, Clicks: 12, Impressions: 340, Position: 4.2},
		{Date: day.AddDate(0, 0, -1), Clicks: 9, Impressions: 280, Position: 5.1},
	}

	mock.ExpectQuery("SELECT (.+) FROM integration_tokens").
		WithArgs("brand-1", models.ProviderBingWebmaster).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "brand_id", "provider", "access_token", "refresh_token", "expires_at", "updated_at",
		}).AddRow("tok-1", "brand-1", models.ProviderBingWebmaster, "configured", "", time.Now().Add(time.Hour), time.Now()))
	mock.ExpectQuery("SELECT domain FROM brands").
		WithArgs("brand-1").
		WillReturnRows(sqlmock.NewRows([]string{"domain"}).AddRow("acme.com"))
	mock.ExpectExec("INSERT INTO search_stats").
		WithArgs(sqlmock.AnyArg(), "brand-1", models.ProviderBingWebmaster, day, 12, 340, 4.2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO search_stats").
		WithArgs(sqlmock.AnyArg(), "brand-1", models.ProviderBingWebmaster, day.AddDate(0, 0, -1), 9, 280, 5.1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := service.Pull(context.Background(), "brand-1", models.ProviderBingWebmaster)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Upserted)
	assert.Equal(t, 2, result.Days)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseBingDate(t *testing.T) {
	iso, err := parseBingDate("2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, 2026, iso.Year())

	legacy, err := parseBingDate("/Date(1756512000000)/")
	require.NoError(t, err)
	assert.False(t, legacy.IsZero())

	_, err = parseBingDate("yesterday")
	require.Error(t, err)
}
