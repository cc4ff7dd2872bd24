// Package competitor manages the tracked competitor set of a brand and its
// LLM-backed entity reclassification.
package competitor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/validation"
	"github.com/stephennewman/contextmemo-sub002/internal/llm"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

const revalidateBatchSize = 20

const classifyPromptTemplate = `You are classifying companies by entity type.
For each entry, decide whether it is a "competitor", "publisher", "analyst", or "directory".

Entries:
{{entries}}

Respond with a JSON array only, one object per entry:
[{"id": "<id>", "entity_type": "<type>"}]`

type createRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

type classification struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
}

// RevalidateResult summarizes one revalidation run.
type RevalidateResult struct {
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
		logger: log.WithFields(map[string]interface{}{"component": "competitor"}),
	}
}

func (s *Service) List(ctx context.Context, brandID string) ([]models.Competitor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand_id, name, domain, entity_type, source, created_at
		 FROM competitors WHERE brand_id = $1 ORDER BY created_at`, brandID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_competitors", err)
	}
	defer rows.Close()

	competitors := []models.Competitor{}
	for rows.Next() {
		var c models.Competitor
		if err := rows.Scan(&c.ID, &c.BrandID, &c.Name, &c.Domain, &c.EntityType, &c.Source, &c.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_competitor", err)
		}
		competitors = append(competitors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_competitors", err)
	}
	return competitors, nil
}

// Create inserts a competitor, deduplicating on (brand_id, lower(domain)).
// Re-posting an existing domain returns the existing row unchanged.
func (s *Service) Create(ctx context.Context, brandID string, req *createRequest) (*models.Competitor, bool, error) {
	name := strings.TrimSpace(req.Name)
	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	if name == "" {
		return nil, false, apperrors.NewValidationError("competitor name is required")
	}
	if !validation.ValidateDomain(domain) {
		return nil, false, apperrors.NewValidationError(fmt.Sprintf("invalid domain: %s", req.Domain))
	}

	existing, err := s.findByDomain(ctx, brandID, domain)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.logger.Info("competitor already tracked", map[string]interface{}{
			"brandId": brandID,
			"domain":  domain,
		})
		return existing, false, nil
	}

	c := &models.Competitor{
		ID:         uuid.New().String(),
		BrandID:    brandID,
		Name:       name,
		Domain:     domain,
		EntityType: models.EntityCompetitor,
		Source:     "manual",
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO competitors (id, brand_id, name, domain, entity_type, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (brand_id, domain) DO NOTHING
		 RETURNING created_at`,
		c.ID, c.BrandID, c.Name, c.Domain, c.EntityType, c.Source,
	).Scan(&c.CreatedAt)
	if err != nil {
		// conflict under a concurrent insert: fall back to the winner's row
		if err == sql.ErrNoRows {
			winner, ferr := s.findByDomain(ctx, brandID, domain)
			if ferr != nil {
				return nil, false, ferr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("competitor added", map[string]interface{}{
		"brandId":      brandID,
		"competitorId": c.ID,
		"domain":       domain,
	})
	return c, true, nil
}

func (s *Service) Delete(ctx context.Context, brandID, competitorID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM competitors WHERE id = $1 AND brand_id = $2`, competitorID, brandID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("delete_competitor", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError(apperrors.ErrCodeCompetitorNotFound, competitorID)
	}
	return nil
}

// Revalidate asks the model to reclassify every competitor's entity type in
// batches. Items whose classification fails to parse keep their old type.
func (s *Service) Revalidate(ctx context.Context, brandID string) (*RevalidateResult, error) {
	competitors, err := s.List(ctx, brandID)
	if err != nil {
		return nil, err
	}

	result := &RevalidateResult{}
	for start := 0; start < len(competitors); start += revalidateBatchSize {
		end := start + revalidateBatchSize
		if end > len(competitors) {
			end = len(competitors)
		}
		batch := competitors[start:end]
		result.Processed += len(batch)

		updated, err := s.revalidateBatch(ctx, batch)
		if err != nil {
			s.logger.Warn("revalidation batch skipped", map[string]interface{}{
				"brandId": brandID,
				"size":    len(batch),
				"error":   err.Error(),
			})
			result.Skipped += len(batch)
			continue
		}
		result.Updated += updated
		result.Skipped += len(batch) - updated
	}

	s.logger.Info("competitor revalidation finished", map[string]interface{}{
		"brandId":   brandID,
		"processed": result.Processed,
		"updated":   result.Updated,
		"skipped":   result.Skipped,
	})
	return result, nil
}

func (s *Service) revalidateBatch(ctx context.Context, batch []models.Competitor) (int, error) {
	var entries strings.Builder
	for _, c := range batch {
		fmt.Fprintf(&entries, "- id=%s name=%q domain=%s current=%s\n", c.ID, c.Name, c.Domain, c.EntityType)
	}
	prompt := strings.NewReplacer("{{entries}}", entries.String()).Replace(classifyPromptTemplate)

	completion, err := s.llm.Complete(ctx, "competitor_revalidate", prompt)
	if err != nil {
		return 0, err
	}

	var classifications []classification
	if err := llm.ExtractJSONArray(completion, &classifications); err != nil {
		return 0, apperrors.NewLLMResponseInvalidError(err.Error())
	}

	valid := map[string]bool{}
	for _, c := range batch {
		valid[c.ID] = true
	}

	updated := 0
	for _, cls := range classifications {
		if !valid[cls.ID] || !models.ValidEntityType(cls.EntityType) {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE competitors SET entity_type = $1 WHERE id = $2`, cls.EntityType, cls.ID)
		if err != nil {
			s.logger.Warn("entity type update failed", map[string]interface{}{
				"competitorId": cls.ID,
				"error":        err.Error(),
			})
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}
	return updated, nil
}

func (s *Service) findByDomain(ctx context.Context, brandID, domain string) (*models.Competitor, error) {
	var c models.Competitor
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, name, domain, entity_type, source, created_at
		 FROM competitors WHERE brand_id = $1 AND LOWER(domain) = $2`,
		brandID, domain,
	).Scan(&c.ID, &c.BrandID, &c.Name, &c.Domain, &c.EntityType, &c.Source, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewQueryExecutionFailedError("find_competitor", err)
	}
	return &c, nil
}
