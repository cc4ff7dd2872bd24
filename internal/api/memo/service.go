// Package memo serves generated memos: listing, publishing into the search
// index, search, and public view logging.
package memo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
	"github.com/stephennewman/contextmemo-sub002/internal/search"
)

type Service struct {
	db     *sql.DB
	index  *search.MemoIndex
	logger logger.Logger
}

func NewService(db *sql.DB, index *search.MemoIndex, log logger.Logger) *Service {
	return &Service{
		db:     db,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "memo"}),
	}
}

// ListForBrand returns memo rows without bodies.
func (s *Service) ListForBrand(ctx context.Context, brandID string) ([]models.Memo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand_id, slug, title, status, published_at, created_at
		 FROM memos WHERE brand_id = $1 ORDER BY created_at DESC`, brandID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_memos", err)
	}
	defer rows.Close()

	memos := []models.Memo{}
	for rows.Next() {
		var m models.Memo
		if err := rows.Scan(&m.ID, &m.BrandID, &m.Slug, &m.Title, &m.Status, &m.PublishedAt, &m.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_memo", err)
		}
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_memos", err)
	}
	return memos, nil
}

// Get returns one memo including its body.
func (s *Service) Get(ctx context.Context, memoID string) (*models.Memo, error) {
	var m models.Memo
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, slug, title, body, status, published_at, created_at
		 FROM memos WHERE id = $1`, memoID,
	).Scan(&m.ID, &m.BrandID, &m.Slug, &m.Title, &m.Body, &m.Status, &m.PublishedAt, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeMemoNotFound, memoID)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get_memo", err)
	}
	return &m, nil
}

// Publish flips a memo to published, stamps the time, and indexes it for
// search. Publishing an already-published memo re-indexes it.
func (s *Service) Publish(ctx context.Context, memoID string) (*models.Memo, error) {
	m, err := s.Get(ctx, memoID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE memos SET status = $1, published_at = $2 WHERE id = $3`,
		models.MemoPublished, now, memoID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("publish_memo", err)
	}
	m.Status = models.MemoPublished
	m.PublishedAt = &now

	err = s.index.Index(ctx, &search.MemoDocument{
		MemoID:      m.ID,
		BrandID:     m.BrandID,
		Title:       m.Title,
		Body:        m.Body,
		Slug:        m.Slug,
		PublishedAt: now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("memo published", map[string]interface{}{
		"memoId":  m.ID,
		"brandId": m.BrandID,
		"slug":    m.Slug,
	})
	return m, nil
}

// Search queries the index scoped to a brand.
func (s *Service) Search(ctx context.Context, brandID, q string, limit int) ([]search.MemoHit, error) {
	if q == "" {
		return []search.MemoHit{}, nil
	}
	return s.index.Search(ctx, brandID, q, limit)
}

// LogView records a public memo view. The memo must exist and be published.
func (s *Service) LogView(ctx context.Context, memoID, viewerIP, referrer string) error {
	m, err := s.Get(ctx, memoID)
	if err != nil {
		return err
	}
	if m.Status != models.MemoPublished {
		return apperrors.NewNotFoundError(apperrors.ErrCodeMemoNotFound, memoID)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memo_views (id, memo_id, viewer_ip, referrer, viewed_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New().String(), memoID, viewerIP, referrer)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}
