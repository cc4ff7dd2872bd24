// Package persona manages the personas array inside the brand context blob.
package persona

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/stephennewman/contextmemo-sub002/internal/api/brand"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

// personaInput is the client-writable part of a persona. IDs are assigned
// server-side.
type personaInput struct {
	Title      string   `json:"title"`
	Seniority  string   `json:"seniority"`
	Function   string   `json:"function"`
	Priorities []string `json:"priorities"`
}

type Service struct {
	db     *sql.DB
	logger logger.Logger
}

func NewService(db *sql.DB, log logger.Logger) *Service {
	return &Service{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "persona"}),
	}
}

func (s *Service) List(ctx context.Context, brandID string) ([]models.Persona, error) {
	blob, _, err := brand.LoadContext(ctx, s.db, brandID)
	if err != nil {
		return nil, err
	}
	if blob.Personas == nil {
		return []models.Persona{}, nil
	}
	return blob.Personas, nil
}

func (s *Service) Create(ctx context.Context, brandID string, input *personaInput) (*models.Persona, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	blob, version, err := brand.LoadContext(ctx, s.db, brandID)
	if err != nil {
		return nil, err
	}

	p := models.Persona{
		ID:         uuid.New().String(),
		Title:      strings.TrimSpace(input.Title),
		Seniority:  strings.TrimSpace(input.Seniority),
		Function:   strings.TrimSpace(input.Function),
		Priorities: input.Priorities,
	}
	blob.Personas = append(blob.Personas, p)

	if err := brand.SaveContext(ctx, s.db, brandID, blob, version); err != nil {
		return nil, err
	}

	s.logger.Info("persona created", map[string]interface{}{
		"brandId":   brandID,
		"personaId": p.ID,
	})
	return &p, nil
}

func (s *Service) Update(ctx context.Context, brandID, personaID string, input *personaInput) (*models.Persona, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	blob, version, err := brand.LoadContext(ctx, s.db, brandID)
	if err != nil {
		return nil, err
	}

	idx := findPersona(blob.Personas, personaID)
	if idx < 0 {
		return nil, apperrors.NewNotFoundError(apperrors.ErrCodePersonaNotFound, personaID)
	}

	p := &blob.Personas[idx]
	p.Title = strings.TrimSpace(input.Title)
	p.Seniority = strings.TrimSpace(input.Seniority)
	p.Function = strings.TrimSpace(input.Function)
	p.Priorities = input.Priorities

	if err := brand.SaveContext(ctx, s.db, brandID, blob, version); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, brandID, personaID string) error {
	blob, version, err := brand.LoadContext(ctx, s.db, brandID)
	if err != nil {
		return err
	}

	idx := findPersona(blob.Personas, personaID)
	if idx < 0 {
		return apperrors.NewNotFoundError(apperrors.ErrCodePersonaNotFound, personaID)
	}
	blob.Personas = append(blob.Personas[:idx], blob.Personas[idx+1:]...)

	if err := brand.SaveContext(ctx, s.db, brandID, blob, version); err != nil {
		return err
	}

	s.logger.Info("persona deleted", map[string]interface{}{
		"brandId":   brandID,
		"personaId": personaID,
	})
	return nil
}

func validateInput(input *personaInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return apperrors.NewValidationError("persona title is required")
	}
	return nil
}

func findPersona(personas []models.Persona, id string) int {
	for i := range personas {
		if personas[i].ID == id {
			return i
		}
	}
	return -1
}
