// internal/common/auth/session.go
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

var (
	ErrSessionInvalid = errors.New("SESSION_INVALID")
	ErrSessionExpired = errors.New("SESSION_EXPIRED")
)

// Session is the authenticated caller attached to each request.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store validates session cookies against the sessions table with a
// short-lived Redis cache in front.
type Store struct {
	db       *sql.DB
	redis    *redis.Client
	logger   logger.Logger
	cacheTTL time.Duration
}

func NewStore(db *sql.DB, redisClient *redis.Client, log logger.Logger, cacheTTL time.Duration) *Store {
	return &Store{
		db:       db,
		redis:    redisClient,
		logger:   log.WithFields(map[string]interface{}{"component": "auth"}),
		cacheTTL: cacheTTL,
	}
}

// Lookup resolves a session token to its user. Expired sessions are treated
// the same as unknown tokens at the API boundary but are distinguished here
// for logging.
func (s *Store) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	cacheKey := "sess:" + token
	if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var sess Session
		if err := json.Unmarshal([]byte(val), &sess); err == nil {
			if time.Now().After(sess.ExpiresAt) {
				return nil, ErrSessionExpired
			}
			return &sess, nil
		}
	}

	var sess Session
	query := `SELECT s.token, s.user_id, u.email, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = $1`
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&sess.Token, &sess.UserID, &sess.Email, &sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("session lookup: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	if data, err := json.Marshal(&sess); err == nil {
		if err := s.redis.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
			s.logger.Debug("session cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return &sess, nil
}

// OrgRole returns the caller's role in an organization, or an empty string
// when not a member.
func (s *Store) OrgRole(ctx context.Context, userID, orgID string) (string, error) {
	var role string
	query := `SELECT role FROM organization_members WHERE org_id = $1 AND user_id = $2`
	err := s.db.QueryRowContext(ctx, query, orgID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("org role lookup: %w", err)
	}
	return role, nil
}

// RequireOrgRole verifies membership with at least the given role.
// Role ordering: member < admin < owner.
func (s *Store) RequireOrgRole(ctx context.Context, userID, orgID, minRole string) error {
	role, err := s.OrgRole(ctx, userID, orgID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("org_role", err)
	}
	if role == "" {
		return apperrors.NewForbiddenError(fmt.Sprintf("not a member of organization %s", orgID))
	}
	if roleRank(role) < roleRank(minRole) {
		return apperrors.NewForbiddenError(fmt.Sprintf("role %s required", minRole))
	}
	return nil
}

// RequireBrandAccess verifies that the caller belongs to the organization
// owning the brand and returns that org id.
func (s *Store) RequireBrandAccess(ctx context.Context, userID, brandID string) (string, error) {
	var orgID string
	query := `SELECT b.org_id FROM brands b
		JOIN organization_members m ON m.org_id = b.org_id
		WHERE b.id = $1 AND m.user_id = $2`
	err := s.db.QueryRowContext(ctx, query, brandID, userID).Scan(&orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.NewNotFoundError(apperrors.ErrCodeBrandNotFound, brandID)
		}
		return "", apperrors.NewQueryExecutionFailedError("brand_access", err)
	}
	return orgID, nil
}

func roleRank(role string) int {
	switch role {
	case "owner":
		return 3
	case "admin":
		return 2
	case "member":
		return 1
	default:
		return 0
	}
}
