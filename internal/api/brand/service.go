// Package brand manages brand settings and owns persistence of the brand
// context blob.
package brand

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/validation"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

const brandColumns = `id, org_id, name, domain, auto_publish, context,
	context_version, context_filled_score, created_at, updated_at`

type Service struct {
	db     *sql.DB
	logger logger.Logger
}

func NewService(db *sql.DB, log logger.Logger) *Service {
	return &Service{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "brand"}),
	}
}

// ListForUser returns every brand in organizations the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Brand, error) {
	query := fmt.Sprintf(`SELECT %s FROM brands b
		JOIN organization_members m ON m.org_id = b.org_id
		WHERE m.user_id = $1
		ORDER BY b.created_at`, qualifyColumns("b", brandColumns))
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_brands", err)
	}
	defer rows.Close()

	brands := []models.Brand{}
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_brand", err)
		}
		brands = append(brands, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_brands", err)
	}
	return brands, nil
}

// Get returns one brand including its context blob.
func (s *Service) Get(ctx context.Context, brandID string) (*models.Brand, error) {
	query := fmt.Sprintf(`SELECT %s FROM brands b WHERE b.id = $1`, qualifyColumns("b", brandColumns))
	row := s.db.QueryRowContext(ctx, query, brandID)
	b, err := scanBrand(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeBrandNotFound, brandID)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get_brand", err)
	}
	return b, nil
}

// Update applies a partial settings change.
func (s *Service) Update(ctx context.Context, brandID string, req *updateBrandRequest) (*models.Brand, error) {
	sets := []string{}
	args := []interface{}{}
	idx := 1

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperrors.NewValidationError("name cannot be empty")
		}
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, strings.TrimSpace(*req.Name))
		idx++
	}
	if req.Domain != nil {
		if !validation.ValidateDomain(*req.Domain) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid domain: %s", *req.Domain))
		}
		sets = append(sets, fmt.Sprintf("domain = $%d", idx))
		args = append(args, strings.ToLower(strings.TrimSpace(*req.Domain)))
		idx++
	}
	if req.AutoPublish != nil {
		sets = append(sets, fmt.Sprintf("auto_publish = $%d", idx))
		args = append(args, *req.AutoPublish)
		idx++
	}
	if len(sets) == 0 {
		return nil, apperrors.NewValidationError("no updatable fields in request")
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, brandID)
	query := fmt.Sprintf("UPDATE brands SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("update_brand", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NewNotFoundError(apperrors.ErrCodeBrandNotFound, brandID)
	}

	s.logger.Info("brand settings updated", map[string]interface{}{
		"brandId": brandID,
		"fields":  len(sets) - 1,
	})
	return s.Get(ctx, brandID)
}

// contextSections are the top-level blob sections writable through the
// context route.
var contextSections = map[string]bool{
	"summary":  true,
	"personas": true,
	"offers":   true,
	"theme":    true,
}

// ReplaceContextSection replaces one named section of the context blob and
// bumps the version.
func (s *Service) ReplaceContextSection(ctx context.Context, brandID, section string, value json.RawMessage) (*models.Brand, error) {
	if !contextSections[section] {
		return nil, &apperrors.StandardError{
			Code:    apperrors.ErrCodeUnknownSection,
			Message: fmt.Sprintf("unknown context section: %s", section),
		}
	}

	blob, version, err := LoadContext(ctx, s.db, brandID)
	if err != nil {
		return nil, err
	}

	switch section {
	case "summary":
		var summary string
		if err := json.Unmarshal(value, &summary); err != nil {
			return nil, apperrors.NewValidationError("summary must be a string")
		}
		blob.Summary = summary
	case "personas":
		var personas []models.Persona
		if err := json.Unmarshal(value, &personas); err != nil {
			return nil, apperrors.NewValidationError("personas must be a persona array")
		}
		blob.Personas = personas
	case "offers":
		var offers []models.Offer
		if err := json.Unmarshal(value, &offers); err != nil {
			return nil, apperrors.NewValidationError("offers must be an offer array")
		}
		blob.Offers = offers
	case "theme":
		var theme models.Theme
		if err := json.Unmarshal(value, &theme); err != nil {
			return nil, apperrors.NewValidationError("theme must be an object")
		}
		blob.Theme = &theme
	}

	if err := SaveContext(ctx, s.db, brandID, blob, version); err != nil {
		return nil, err
	}

	s.logger.Info("brand context section replaced", map[string]interface{}{
		"brandId": brandID,
		"section": section,
		"version": version + 1,
	})
	return s.Get(ctx, brandID)
}

// LoadContext reads the context blob and its current version. Shared with
// the persona, positioning, and extraction packages, which all mutate the
// same document.
func LoadContext(ctx context.Context, db *sql.DB, brandID string) (*models.BrandContext, int, error) {
	var raw []byte
	var version int
	err := db.QueryRowContext(ctx,
		`SELECT context, context_version FROM brands WHERE id = $1`, brandID,
	).Scan(&raw, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, apperrors.NewNotFoundError(apperrors.ErrCodeBrandNotFound, brandID)
		}
		return nil, 0, apperrors.NewQueryExecutionFailedError("load_context", err)
	}

	blob := &models.BrandContext{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, blob); err != nil {
			return nil, 0, apperrors.NewQueryExecutionFailedError("decode_context", err)
		}
	}
	return blob, version, nil
}

// SaveContext writes the blob back with optimistic version check and bumps
// the version. A concurrent writer since LoadContext makes the update a
// no-op and surfaces as a conflict.
func SaveContext(ctx context.Context, db *sql.DB, brandID string, blob *models.BrandContext, expectVersion int) error {
	raw, err := json.Marshal(blob)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("encode_context", err)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE brands SET context = $1, context_version = context_version + 1, updated_at = NOW()
		 WHERE id = $2 AND context_version = $3`,
		raw, brandID, expectVersion,
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("save_context", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewBusinessRuleError(
			"brand context changed concurrently",
			fmt.Sprintf("brand %s version %d is stale", brandID, expectVersion),
		)
	}
	return nil
}

// UpdateFilledScore persists a recomputed positioning completeness score.
func UpdateFilledScore(ctx context.Context, db *sql.DB, brandID string, score int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE brands SET context_filled_score = $1 WHERE id = $2`, score, brandID,
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update_filled_score", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBrand(row rowScanner) (*models.Brand, error) {
	var b models.Brand
	var raw []byte
	err := row.Scan(
		&b.ID, &b.OrgID, &b.Name, &b.Domain, &b.AutoPublish, &raw,
		&b.ContextVersion, &b.ContextFilledScore, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &b.Context); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
	}
	return &b, nil
}

func qualifyColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
