package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

const testCookie = "cm_session"

type echoRegistrar struct{}

func (echoRegistrar) Register(api *echo.Group, public *echo.Group) {
	api.GET("/whoami", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"userId": CurrentSession(c).UserID})
	})
	public.GET("/open", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
}

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock, redismock.ClientMock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	redisClient, redisMock := redismock.NewClientMock()
	sessions := auth.NewStore(db, redisClient, logger.NewNoOpLogger(), time.Minute)

	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.Auth.SessionCookie = testCookie

	return New(cfg, sessions, logger.NewNoOpLogger(), echoRegistrar{}), dbMock, redisMock
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestPublicRouteSkipsAuth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIRouteRejectsMissingSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRouteAcceptsSessionCookie(t *testing.T) {
	srv, dbMock, redisMock := newTestServer(t)

	redisMock.ExpectGet("sess:tok-1").RedisNil()
	dbMock.ExpectQuery("SELECT s.token, s.user_id, u.email, s.expires_at").
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "email", "expires_at"}).
			AddRow("tok-1", "user-1", "a@b.co", time.Now().Add(time.Hour)))
	redisMock.Regexp().ExpectSet("sess:tok-1", `.*`, time.Minute).SetVal("OK")

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "tok-1"})
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":"user-1"`)
}

func TestAPIRouteAcceptsBearerFallback(t *testing.T) {
	srv, dbMock, redisMock := newTestServer(t)

	redisMock.ExpectGet("sess:tok-2").RedisNil()
	dbMock.ExpectQuery("SELECT s.token, s.user_id, u.email, s.expires_at").
		WithArgs("tok-2").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "email", "expires_at"}).
			AddRow("tok-2", "user-2", "c@d.co", time.Now().Add(time.Hour)))
	redisMock.Regexp().ExpectSet("sess:tok-2", `.*`, time.Minute).SetVal("OK")

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer tok-2")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteReturnsJSONError(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)
}
