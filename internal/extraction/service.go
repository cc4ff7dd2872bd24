package extraction

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/stephennewman/contextmemo-sub002/internal/api/brand"
	"github.com/stephennewman/contextmemo-sub002/internal/api/positioning"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/validation"
	"github.com/stephennewman/contextmemo-sub002/internal/llm"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

const maxContentChars = 24000

// Result is returned by an extraction run.
type Result struct {
	Context     models.BrandContext `json:"context"`
	Version     int                 `json:"version"`
	FilledScore int                 `json:"filledScore"`
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
		logger: log.WithFields(map[string]interface{}{"component": "extraction"}),
	}
}

// Extract renders the profile prompt from the supplied website content and
// the brand's stored inputs, calls the model, and merges the returned
// profile into the context blob. Human-edited values always win over
// extracted ones.
func (s *Service) Extract(ctx context.Context, brandID, content string) (*Result, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required")
	}
	content = truncateContent(content, maxContentChars)

	var domain string
	if err := s.db.QueryRowContext(ctx,
		`SELECT domain FROM brands WHERE id = $1`, brandID).Scan(&domain); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeBrandNotFound, brandID)
		}
		return nil, apperrors.NewQueryExecutionFailedError("load_brand", err)
	}

	blob, version, err := brand.LoadContext(ctx, s.db, brandID)
	if err != nil {
		return nil, err
	}

	prompt := renderPrompt(profilePrompt, map[string]string{
		"domain":      domain,
		"content":     content,
		"personas":    summarizePersonas(blob.Personas),
		"competitors": s.summarizeCompetitors(ctx, brandID),
		"queries":     s.summarizeQueries(ctx, brandID),
	})

	completion, err := s.llm.Complete(ctx, "profile_extract", prompt)
	if err != nil {
		return nil, err
	}

	var extracted map[string]interface{}
	if err := llm.ExtractJSON(completion, &extracted); err != nil {
		return nil, &apperrors.StandardError{
			Code:    apperrors.ErrCodeExtractionFailed,
			Message: "model returned no usable profile",
			Details: err.Error(),
		}
	}

	existing, err := contextToMap(blob)
	if err != nil {
		return nil, err
	}
	merged := deepMerge(existing, extracted)

	updated, err := mapToContext(merged)
	if err != nil {
		return nil, &apperrors.StandardError{
			Code:    apperrors.ErrCodeExtractionFailed,
			Message: "merged profile does not fit the context shape",
			Details: err.Error(),
		}
	}

	if len(updated.Personas) == 0 {
		s.derivePersonas(ctx, domain, updated)
	}

	if err := brand.SaveContext(ctx, s.db, brandID, updated, version); err != nil {
		return nil, err
	}

	score := positioning.ComputeFilledScore(updated.Positioning)
	if err := brand.UpdateFilledScore(ctx, s.db, brandID, score); err != nil {
		return nil, err
	}

	s.seedQueries(ctx, brandID, domain, updated)
	s.discoverCompetitors(ctx, brandID, domain, updated)

	s.logger.Info("brand profile extracted", map[string]interface{}{
		"brandId": brandID,
		"version": version + 1,
		"score":   score,
	})
	return &Result{Context: *updated, Version: version + 1, FilledScore: score}, nil
}

// derivePersonas fills in personas from the company summary when the
// profile extraction returned none. Failures leave the blob untouched.
func (s *Service) derivePersonas(ctx context.Context, domain string, blob *models.BrandContext) {
	prompt := renderPrompt(personaPrompt, map[string]string{
		"domain":  domain,
		"summary": blob.Summary,
	})
	completion, err := s.llm.Complete(ctx, "persona_derive", prompt)
	if err != nil {
		s.logger.Warn("persona derivation failed", map[string]interface{}{"error": err.Error()})
		return
	}

	var personas []models.Persona
	if err := llm.ExtractJSONArray(completion, &personas); err != nil {
		s.logger.Warn("persona derivation returned no usable array", map[string]interface{}{"error": err.Error()})
		return
	}

	kept := personas[:0]
	for _, p := range personas {
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		p.ID = uuid.New().String()
		kept = append(kept, p)
	}
	blob.Personas = kept
}

// seedQueries generates an initial tracked-query set for brands that have
// none yet, one batch per funnel stage the model proposes.
func (s *Service) seedQueries(ctx context.Context, brandID, domain string, blob *models.BrandContext) {
	var existing int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queries WHERE brand_id = $1`, brandID).Scan(&existing); err != nil {
		s.logger.Warn("query seed count check failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if existing > 0 {
		return
	}

	prompt := renderPrompt(queryFunnelPrompt, map[string]string{
		"domain":   domain,
		"summary":  blob.Summary,
		"personas": summarizePersonas(blob.Personas),
	})
	completion, err := s.llm.Complete(ctx, "query_seed", prompt)
	if err != nil {
		s.logger.Warn("query seeding failed", map[string]interface{}{"error": err.Error()})
		return
	}

	var proposed []struct {
		Text        string `json:"text"`
		FunnelStage string `json:"funnel_stage"`
	}
	if err := llm.ExtractJSONArray(completion, &proposed); err != nil {
		s.logger.Warn("query seeding returned no usable array", map[string]interface{}{"error": err.Error()})
		return
	}

	inserted := 0
	for _, q := range proposed {
		text := strings.TrimSpace(q.Text)
		if text == "" || !validFunnelStage(q.FunnelStage) {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO queries (id, brand_id, text, funnel_stage, created_at)
			 VALUES ($1, $2, $3, $4, NOW())`,
			uuid.New().String(), brandID, text, q.FunnelStage); err != nil {
			s.logger.Warn("query seed insert failed", map[string]interface{}{"error": err.Error()})
			return
		}
		inserted++
	}
	s.logger.Info("seeded tracked queries", map[string]interface{}{
		"brandId": brandID,
		"count":   inserted,
	})
}

// discoverCompetitors asks the model for direct competitors and records
// any with a plausible domain not already tracked.
func (s *Service) discoverCompetitors(ctx context.Context, brandID, domain string, blob *models.BrandContext) {
	prompt := renderPrompt(competitorDiscoveryPrompt, map[string]string{
		"domain":  domain,
		"summary": blob.Summary,
	})
	completion, err := s.llm.Complete(ctx, "competitor_discover", prompt)
	if err != nil {
		s.logger.Warn("competitor discovery failed", map[string]interface{}{"error": err.Error()})
		return
	}

	var proposed []struct {
		Name   string `json:"name"`
		Domain string `json:"domain"`
	}
	if err := llm.ExtractJSONArray(completion, &proposed); err != nil {
		s.logger.Warn("competitor discovery returned no usable array", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, c := range proposed {
		name := strings.TrimSpace(c.Name)
		candidate := strings.ToLower(strings.TrimSpace(c.Domain))
		if name == "" || !validation.ValidateDomain(candidate) || candidate == domain {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO competitors (id, brand_id, name, domain, entity_type, source, created_at)
			 VALUES ($1, $2, $3, $4, 'competitor', 'extracted', NOW())
			 ON CONFLICT (brand_id, domain) DO NOTHING`,
			uuid.New().String(), brandID, name, candidate); err != nil {
			s.logger.Warn("competitor discovery insert failed", map[string]interface{}{"error": err.Error()})
			return
		}
	}
}

func validFunnelStage(stage string) bool {
	switch stage {
	case "awareness", "consideration", "decision":
		return true
	}
	return false
}

// truncateContent caps content at max bytes without splitting a UTF-8
// sequence mid-rune.
func truncateContent(content string, max int) string {
	if len(content) <= max {
		return content
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

func summarizePersonas(personas []models.Persona) string {
	if len(personas) == 0 {
		return "none"
	}
	titles := make([]string, len(personas))
	for i, p := range personas {
		titles[i] = p.Title
	}
	return strings.Join(titles, ", ")
}

func (s *Service) summarizeCompetitors(ctx context.Context, brandID string) string {
	return s.collectColumn(ctx,
		`SELECT name FROM competitors WHERE brand_id = $1 ORDER BY created_at LIMIT 25`, brandID)
}

func (s *Service) summarizeQueries(ctx context.Context, brandID string) string {
	return s.collectColumn(ctx,
		`SELECT text FROM queries WHERE brand_id = $1 ORDER BY created_at LIMIT 25`, brandID)
}

func (s *Service) collectColumn(ctx context.Context, query, brandID string) string {
	rows, err := s.db.QueryContext(ctx, query, brandID)
	if err != nil {
		return "none"
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err == nil {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, "; ")
}

func contextToMap(blob *models.BrandContext) (map[string]interface{}, error) {
	raw, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return out, nil
}

func mapToContext(m map[string]interface{}) (*models.BrandContext, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var blob models.BrandContext
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, err
	}
	return &blob, nil
}
