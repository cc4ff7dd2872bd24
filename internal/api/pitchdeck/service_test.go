package pitchdeck

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/email"
)

type fakeSender struct {
	sent []*email.Message
}

func (f *fakeSender) Send(_ context.Context, msg *email.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *miniredis.Miniredis, *fakeSender, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{}
	cfg.PitchDeck.CodeTTL = 900
	cfg.PitchDeck.AccessTTL = 86400
	cfg.PitchDeck.MaxAttempts = 5
	cfg.PitchDeck.RequestsPerHour = 3

	sender := &fakeSender{}
	service := NewService(db, redisClient, sender, cfg, logger.NewNoOpLogger())
	return service, mock, mr, sender, func() {
		redisClient.Close()
		mr.Close()
		db.Close()
	}
}

// extractCode pulls the 6-digit code out of the sent email body.
func extractCode(t *testing.T, body string) string {
	t.Helper()
	for _, word := range strings.Fields(body) {
		trimmed := strings.TrimSuffix(word, ".")
		if len(trimmed) == 6 && strings.Trim(trimmed, "0123456789") == "" {
			return trimmed
		}
	}
	t.Fatalf("no code found in body: %s", body)
	return ""
}

func TestRequestCodeStoresHashAndSendsEmail(t *testing.T) {
	service, _, mr, sender, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, service.RequestCode(context.Background(), "Guest@Example.com"))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "guest@example.com", sender.sent[0].To)

	code := extractCode(t, sender.sent[0].Body)
	stored, err := mr.Get("pitch:code:guest@example.com")
	require.NoError(t, err)
	assert.Equal(t, hashCode(code), stored)
	assert.NotContains(t, stored, code)
}

func TestRequestCodeThrottled(t *testing.T) {
	service, _, _, sender, cleanup := newTestService(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, service.RequestCode(ctx, "guest@example.com"))
	}

	err := service.RequestCode(ctx, "guest@example.com")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeRateLimited, stdErr.Code)
	assert.Len(t, sender.sent, 3)
}

func TestVerifyHappyPath(t *testing.T) {
	service, mock, mr, sender, cleanup := newTestService(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.RequestCode(ctx, "guest@example.com"))
	code := extractCode(t, sender.sent[0].Body)

	mock.ExpectExec(`INSERT INTO pitch_access \(id, email, code_hash, granted_at\)`).
		WithArgs(sqlmock.AnyArg(), "guest@example.com", hashCode(code)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	token, err := service.Verify(ctx, "guest@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// code is single-use
	assert.False(t, mr.Exists("pitch:code:guest@example.com"))
	addr, err := mr.Get("pitch:access:" + token)
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", addr)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyWrongCodeFiveTimesInvalidates(t *testing.T) {
	service, _, mr, sender, cleanup := newTestService(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.RequestCode(ctx, "guest@example.com"))

	for i := 0; i < 4; i++ {
		_, err := service.Verify(ctx, "guest@example.com", "000000")
		require.Error(t, err)
		stdErr, ok := err.(*apperrors.StandardError)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeAccessCodeInvalid, stdErr.Code)
	}

	_, err := service.Verify(ctx, "guest@example.com", "000000")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeAccessCodeExhausted, stdErr.Code)
	assert.False(t, mr.Exists("pitch:code:guest@example.com"))

	// even the right code no longer works
	code := extractCode(t, sender.sent[0].Body)
	_, err = service.Verify(ctx, "guest@example.com", code)
	require.Error(t, err)
}

func TestVerifyExpiredCode(t *testing.T) {
	service, _, _, _, cleanup := newTestService(t)
	defer cleanup()

	_, err := service.Verify(context.Background(), "guest@example.com", "123456")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeAccessCodeInvalid, stdErr.Code)
}

func TestLogViewRequiresAccessToken(t *testing.T) {
	service, _, _, _, cleanup := newTestService(t)
	defer cleanup()

	err := service.LogView(context.Background(), "bogus-token", "series-a", "traction")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, stdErr.Code)
}

func TestLogViewInsertsRow(t *testing.T) {
	service, mock, mr, _, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, mr.Set("pitch:access:tok-1", "guest@example.com"))

	mock.ExpectExec("INSERT INTO pitch_views").
		WithArgs(sqlmock.AnyArg(), "series-a", "guest@example.com", "traction").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, service.LogView(context.Background(), "tok-1", "series-a", "traction"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
