// Package pitchdeck implements the email-gated pitch deck funnel: code
// request, verification, and view logging.
package pitchdeck

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/metrics"
	"github.com/stephennewman/contextmemo-sub002/internal/common/validation"
	"github.com/stephennewman/contextmemo-sub002/internal/email"
)

const (
	codeKeyPrefix     = "pitch:code:"
	attemptsKeyPrefix = "pitch:attempts:"
	throttleKeyPrefix = "pitch:throttle:"
	accessKeyPrefix   = "pitch:access:"
)

type Service struct {
	db          *sql.DB
	redis       *redis.Client
	sender      email.Sender
	codeTTL     time.Duration
	accessTTL   time.Duration
	maxAttempts int
	maxRequests int
	logger      logger.Logger
}

func NewService(db *sql.DB, redisClient *redis.Client, sender email.Sender, cfg *config.Config, log logger.Logger) *Service {
	return &Service{
		db:          db,
		redis:       redisClient,
		sender:      sender,
		codeTTL:     time.Duration(cfg.PitchDeck.CodeTTL) * time.Second,
		accessTTL:   time.Duration(cfg.PitchDeck.AccessTTL) * time.Second,
		maxAttempts: cfg.PitchDeck.MaxAttempts,
		maxRequests: cfg.PitchDeck.RequestsPerHour,
		logger:      log.WithFields(map[string]interface{}{"component": "pitchdeck"}),
	}
}

// RequestCode generates a 6-digit code, stores its hash, and emails it.
// Requests are throttled per email address.
func (s *Service) RequestCode(ctx context.Context, rawEmail string) error {
	addr := strings.ToLower(strings.TrimSpace(rawEmail))
	if !validation.ValidateEmail(addr) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid email: %s", rawEmail))
	}

	throttleKey := throttleKeyPrefix + addr
	count, err := s.redis.Incr(ctx, throttleKey).Result()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("pitch_throttle", err)
	}
	if count == 1 {
		s.redis.Expire(ctx, throttleKey, time.Hour)
	}
	if count > int64(s.maxRequests) {
		return apperrors.NewRateLimitedError(fmt.Sprintf("too many code requests for %s", addr))
	}

	code, err := generateCode()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("pitch_code_gen", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, codeKeyPrefix+addr, hashCode(code), s.codeTTL)
	pipe.Del(ctx, attemptsKeyPrefix+addr)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewQueryExecutionFailedError("pitch_code_store", err)
	}

	msg := &email.Message{
		To:      addr,
		Subject: "Your Context Memo access code",
		Body:    fmt.Sprintf("Your access code is %s. It expires in %d minutes.", code, int(s.codeTTL.Minutes())),
		Kind:    "pitch_code",
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}

	s.logger.Info("pitch access code sent", map[string]interface{}{"email": addr})
	return nil
}

// Verify checks a submitted code against the stored hash in constant time.
// Five failed attempts invalidate the code. Success grants a 24 h access
// token and records the grant.
func (s *Service) Verify(ctx context.Context, rawEmail, code string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(rawEmail))
	if !validation.ValidateEmail(addr) {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid email: %s", rawEmail))
	}

	storedHash, err := s.redis.Get(ctx, codeKeyPrefix+addr).Result()
	if err == redis.Nil {
		metrics.PitchCodeVerifications.WithLabelValues("expired").Inc()
		return "", invalidCodeError()
	}
	if err != nil {
		return "", apperrors.NewQueryExecutionFailedError("pitch_code_load", err)
	}

	if subtle.ConstantTimeCompare([]byte(storedHash), []byte(hashCode(code))) != 1 {
		attempts, err := s.redis.Incr(ctx, attemptsKeyPrefix+addr).Result()
		if err == nil && attempts == 1 {
			s.redis.Expire(ctx, attemptsKeyPrefix+addr, s.codeTTL)
		}
		if err == nil && attempts >= int64(s.maxAttempts) {
			s.redis.Del(ctx, codeKeyPrefix+addr)
			metrics.PitchCodeVerifications.WithLabelValues("exhausted").Inc()
			return "", &apperrors.StandardError{
				Code:    apperrors.ErrCodeAccessCodeExhausted,
				Message: "Too many failed attempts, request a new code",
			}
		}
		metrics.PitchCodeVerifications.WithLabelValues("invalid").Inc()
		return "", invalidCodeError()
	}

	token := uuid.New().String()
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, accessKeyPrefix+token, addr, s.accessTTL)
	pipe.Del(ctx, codeKeyPrefix+addr)
	pipe.Del(ctx, attemptsKeyPrefix+addr)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", apperrors.NewQueryExecutionFailedError("pitch_access_store", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO pitch_access (id, email, code_hash, granted_at) VALUES ($1, $2, $3, NOW())`,
		uuid.New().String(), addr, storedHash); err != nil {
		s.logger.Warn("pitch access row insert failed", map[string]interface{}{
			"email": addr,
			"error": err.Error(),
		})
	}

	metrics.PitchCodeVerifications.WithLabelValues("success").Inc()
	s.logger.Info("pitch access granted", map[string]interface{}{"email": addr})
	return token, nil
}

// LogView records a section view for a verified visitor.
func (s *Service) LogView(ctx context.Context, token, slug, section string) error {
	if strings.TrimSpace(slug) == "" {
		return apperrors.NewValidationError("slug is required")
	}

	addr, err := s.redis.Get(ctx, accessKeyPrefix+token).Result()
	if err == redis.Nil {
		return apperrors.NewUnauthorizedError("access token is invalid or expired")
	}
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("pitch_access_load", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pitch_views (id, deck_slug, email, section, viewed_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New().String(), slug, addr, section)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func invalidCodeError() *apperrors.StandardError {
	return &apperrors.StandardError{
		Code:    apperrors.ErrCodeAccessCodeInvalid,
		Message: "Invalid or expired access code",
	}
}
