// Package backfill classifies tracked queries that are missing a market
// vertical.
package backfill

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/extraction"
	"github.com/stephennewman/contextmemo-sub002/internal/llm"
)

const batchSize = 25

type classification struct {
	ID       string `json:"id"`
	Vertical string `json:"vertical"`
}

// Result summarizes one backfill run.
type Result struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

type Service struct {
	db     *sql.DB
	llm    *llm.Client
	logger logger.Logger
}

func NewService(db *sql.DB, llmClient *llm.Client, log logger.Logger) *Service {
	return &Service{
		db:     db,
		llm:    llmClient,
		logger: log.WithFields(map[string]interface{}{"component": "backfill"}),
	}
}

// Run classifies the brand's NULL-vertical queries in batches. A batch
// whose completion cannot be parsed is skipped and counted, never retried
// within the run.
func (s *Service) Run(ctx context.Context, brandID string) (*Result, error) {
	result := &Result{}

	for {
		batch, err := s.nextBatch(ctx, brandID)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		result.Processed += len(batch)

		updated, err := s.classifyBatch(ctx, batch)
		if err != nil {
			s.logger.Warn("backfill batch skipped", map[string]interface{}{
				"brandId": brandID,
				"size":    len(batch),
				"error":   err.Error(),
			})
			result.Skipped += len(batch)
			// unclassified rows stay NULL and would be re-selected forever;
			// stop the run after a failed batch
			break
		}
		result.Updated += updated
		result.Skipped += len(batch) - updated

		// rows that stay NULL would be re-selected next round; a batch
		// with zero updates means the run can no longer make progress
		if updated == 0 {
			s.logger.Warn("backfill made no progress, stopping", map[string]interface{}{
				"brandId": brandID,
				"size":    len(batch),
			})
			break
		}

		if len(batch) < batchSize {
			break
		}
	}

	s.logger.Info("vertical backfill finished", map[string]interface{}{
		"brandId":   brandID,
		"processed": result.Processed,
		"updated":   result.Updated,
		"skipped":   result.Skipped,
	})
	return result, nil
}

type pendingQuery struct {
	ID   string
	Text string
}

func (s *Service) nextBatch(ctx context.Context, brandID string) ([]pendingQuery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text FROM queries
		 WHERE brand_id = $1 AND vertical IS NULL
		 ORDER BY created_at LIMIT $2`, brandID, batchSize)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("backfill_batch", err)
	}
	defer rows.Close()

	batch := []pendingQuery{}
	for rows.Next() {
		var q pendingQuery
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_query", err)
		}
		batch = append(batch, q)
	}
	return batch, rows.Err()
}

func (s *Service) classifyBatch(ctx context.Context, batch []pendingQuery) (int, error) {
	var lines strings.Builder
	for _, q := range batch {
		fmt.Fprintf(&lines, "%s: %s\n", q.ID, q.Text)
	}

	completion, err := s.llm.Complete(ctx, "vertical_backfill", extraction.VerticalPrompt(lines.String()))
	if err != nil {
		return 0, err
	}

	var classifications []classification
	if err := llm.ExtractJSONArray(completion, &classifications); err != nil {
		return 0, apperrors.NewLLMResponseInvalidError(err.Error())
	}
	if len(classifications) == 0 {
		return 0, &apperrors.StandardError{
			Code:    apperrors.ErrCodeClassificationEmpty,
			Message: "model returned an empty classification list",
		}
	}

	valid := map[string]bool{}
	for _, q := range batch {
		valid[q.ID] = true
	}

	updated := 0
	for _, cls := range classifications {
		vertical := strings.TrimSpace(cls.Vertical)
		if !valid[cls.ID] || vertical == "" {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE queries SET vertical = $1 WHERE id = $2 AND vertical IS NULL`,
			vertical, cls.ID)
		if err != nil {
			s.logger.Warn("vertical update failed", map[string]interface{}{
				"queryId": cls.ID,
				"error":   err.Error(),
			})
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}
	return updated, nil
}
