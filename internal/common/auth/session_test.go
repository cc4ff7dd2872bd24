package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

func TestLookupCacheHit(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	store := NewStore(db, redisClient, logger.NewNoOpLogger(), 5*time.Minute)

	cached, _ := json.Marshal(&Session{
		Token:     "tok-1",
		UserID:    "user-1",
		Email:     "a@b.co",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	redisMock.ExpectGet("sess:tok-1").SetVal(string(cached))

	sess, err := store.Lookup(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)

	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestLookupCacheMissFallsThroughToDB(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	store := NewStore(db, redisClient, logger.NewNoOpLogger(), 5*time.Minute)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	redisMock.ExpectGet("sess:tok-2").RedisNil()

	dbMock.ExpectQuery("SELECT s.token, s.user_id, u.email, s.expires_at").
		WithArgs("tok-2").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "email", "expires_at"}).
			AddRow("tok-2", "user-2", "c@d.co", expires))

	data, _ := json.Marshal(&Session{
		Token: "tok-2", UserID: "user-2", Email: "c@d.co", ExpiresAt: expires,
	})
	redisMock.ExpectSet("sess:tok-2", data, 5*time.Minute).SetVal("OK")

	sess, err := store.Lookup(context.Background(), "tok-2")
	require.NoError(t, err)
	assert.Equal(t, "user-2", sess.UserID)
	assert.Equal(t, "c@d.co", sess.Email)

	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestLookupExpiredSession(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	store := NewStore(db, redisClient, logger.NewNoOpLogger(), 5*time.Minute)

	redisMock.ExpectGet("sess:tok-3").RedisNil()
	dbMock.ExpectQuery("SELECT s.token, s.user_id, u.email, s.expires_at").
		WithArgs("tok-3").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "email", "expires_at"}).
			AddRow("tok-3", "user-3", "e@f.co", time.Now().Add(-time.Minute)))

	_, err = store.Lookup(context.Background(), "tok-3")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestLookupUnknownToken(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	store := NewStore(db, redisClient, logger.NewNoOpLogger(), 5*time.Minute)

	redisMock.ExpectGet("sess:missing").RedisNil()
	dbMock.ExpectQuery("SELECT s.token, s.user_id, u.email, s.expires_at").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "email", "expires_at"}))

	_, err = store.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = store.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestRequireOrgRoleOrdering(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		minRole string
		wantErr bool
	}{
		{"admin satisfies member", "admin", "member", false},
		{"owner satisfies admin", "owner", "admin", false},
		{"member rejected for admin", "member", "admin", true},
		{"admin rejected for owner", "admin", "owner", true},
		{"exact match allowed", "member", "member", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, dbMock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			redisClient, _ := redismock.NewClientMock()
			store := NewStore(db, redisClient, logger.NewNoOpLogger(), time.Minute)

			dbMock.ExpectQuery("SELECT role FROM organization_members").
				WithArgs("org-1", "user-1").
				WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(tt.role))

			err = store.RequireOrgRole(context.Background(), "user-1", "org-1", tt.minRole)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequireBrandAccess(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	store := NewStore(db, redisClient, logger.NewNoOpLogger(), time.Minute)

	dbMock.ExpectQuery("SELECT b.org_id FROM brands b").
		WithArgs("brand-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"org_id"}).AddRow("org-1"))

	orgID, err := store.RequireBrandAccess(context.Background(), "user-1", "brand-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", orgID)

	dbMock.ExpectQuery("SELECT b.org_id FROM brands b").
		WithArgs("brand-2", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"org_id"}))

	_, err = store.RequireBrandAccess(context.Background(), "user-1", "brand-2")
	assert.Error(t, err)
}
