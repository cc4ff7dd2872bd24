package positioning

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stephennewman/contextmemo-sub002/internal/api/brand"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

// knownSections are the writable positioning sections. elevator_pitches is
// an object keyed short/medium/long, the rest are strings or string lists.
var knownSections = map[string]bool{
	"mission":          true,
	"vision":           true,
	"differentiators":  true,
	"pillars":          true,
	"elevator_pitches": true,
	"proof_points":     true,
	"objections":       true,
}

type Service struct {
	db     *sql.DB
	logger logger.Logger
}

func NewService(db *sql.DB, log logger.Logger) *Service {
	return &Service{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "positioning"}),
	}
}

// Get returns the positioning document and the stored score.
func (s *Service) Get(ctx context.Context, brandID string) (map[string]interface{}, int, error) {
	blob, _, err := brand.LoadContext(ctx, s.db, brandID)
	if err != nil {
		return nil, 0, err
	}

	var score int
	if err := s.db.QueryRowContext(ctx,
		`SELECT context_filled_score FROM brands WHERE id = $1`, brandID,
	).Scan(&score); err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("get_filled_score", err)
	}

	positioning := blob.Positioning
	if positioning == nil {
		positioning = map[string]interface{}{}
	}
	return positioning, score, nil
}

// UpdateSection merges one named section into the positioning document,
// bumps the context version, and recomputes the score.
func (s *Service) UpdateSection(ctx context.Context, brandID, section string, value json.RawMessage) (map[string]interface{}, int, error) {
	if !knownSections[section] {
		return nil, 0, &apperrors.StandardError{
			Code:    apperrors.ErrCodeUnknownSection,
			Message: fmt.Sprintf("unknown positioning section: %s", section),
		}
	}

	blob, version, err := brand.LoadContext(ctx, s.db, brandID)
	if err != nil {
		return nil, 0, err
	}
	if blob.Positioning == nil {
		blob.Positioning = map[string]interface{}{}
	}

	var decoded interface{}
	if err := json.Unmarshal(value, &decoded); err != nil {
		return nil, 0, apperrors.NewValidationError(fmt.Sprintf("section %s: value is not valid JSON", section))
	}
	blob.Positioning[section] = decoded

	if err := brand.SaveContext(ctx, s.db, brandID, blob, version); err != nil {
		return nil, 0, err
	}

	score := ComputeFilledScore(blob.Positioning)
	if err := brand.UpdateFilledScore(ctx, s.db, brandID, score); err != nil {
		return nil, 0, err
	}

	s.logger.Info("positioning section updated", map[string]interface{}{
		"brandId": brandID,
		"section": section,
		"score":   score,
	})
	return blob.Positioning, score, nil
}
