package server

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
)

const sessionContextKey = "session"

// SessionAuth resolves the session cookie (or bearer token) on every request
// under /api. Requests without a valid session never reach a handler.
func SessionAuth(store *auth.Store, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ""
			if cookie, err := c.Cookie(cookieName); err == nil {
				token = cookie.Value
			}
			if token == "" {
				header := c.Request().Header.Get(echo.HeaderAuthorization)
				if strings.HasPrefix(header, "Bearer ") {
					token = strings.TrimPrefix(header, "Bearer ")
				}
			}
			if token == "" {
				return apperrors.NewUnauthorizedError("missing session")
			}

			sess, err := store.Lookup(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrSessionInvalid) || errors.Is(err, auth.ErrSessionExpired) {
					return apperrors.NewUnauthorizedError("invalid or expired session")
				}
				return apperrors.ConvertToStandardError(err, apperrors.ErrCodeQueryExecutionFailed, "session lookup failed")
			}

			c.Set(sessionContextKey, sess)
			return next(c)
		}
	}
}

// CurrentSession returns the session attached by SessionAuth. Handlers on
// authenticated routes can rely on it being present.
func CurrentSession(c echo.Context) *auth.Session {
	sess, _ := c.Get(sessionContextKey).(*auth.Session)
	return sess
}
