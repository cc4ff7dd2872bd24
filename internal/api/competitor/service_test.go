package competitor

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

func competitorRow(id, name, domain, entityType string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "brand_id", "name", "domain", "entity_type", "source", "created_at",
	}).AddRow(id, "brand-1", name, domain, entityType, "manual", time.Now())
}

func TestCreateCompetitorIdempotentOnDomain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, nil, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT (.+) FROM competitors WHERE brand_id = (.+) LOWER").
		WithArgs("brand-1", "rival.io").
		WillReturnRows(competitorRow("comp-1", "Rival", "rival.io", "competitor"))

	c, created, err := service.Create(context.Background(), "brand-1", &createRequest{
		Name:   "Rival Again",
		Domain: "RIVAL.io",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "comp-1", c.ID)
	assert.Equal(t, "Rival", c.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCompetitorInsertsNewDomain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, nil, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT (.+) FROM competitors WHERE brand_id = (.+) LOWER").
		WithArgs("brand-1", "newco.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO competitors").
		WithArgs(sqlmock.AnyArg(), "brand-1", "NewCo", "newco.com", "competitor", "manual").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	c, created, err := service.Create(context.Background(), "brand-1", &createRequest{
		Name:   "NewCo",
		Domain: "newco.com",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "competitor", c.EntityType)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCompetitorValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, nil, logger.NewNoOpLogger())

	tests := []struct {
		name string
		req  createRequest
	}{
		{"missing name", createRequest{Domain: "rival.io"}},
		{"bad domain", createRequest{Name: "Rival", Domain: "not a domain"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := service.Create(context.Background(), "brand-1", &tt.req)
			require.Error(t, err)
			stdErr, ok := err.(*apperrors.StandardError)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
		})
	}
}

func TestDeleteCompetitorNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, nil, logger.NewNoOpLogger())

	mock.ExpectExec("DELETE FROM competitors").
		WithArgs("comp-9", "brand-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = service.Delete(context.Background(), "brand-1", "comp-9")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeCompetitorNotFound, stdErr.Code)
}
