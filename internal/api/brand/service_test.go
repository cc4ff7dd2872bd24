package brand

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

func brandRows(t *testing.T, contextJSON string) *sqlmock.Rows {
	t.Helper()
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "org_id", "name", "domain", "auto_publish", "context",
		"context_version", "context_filled_score", "created_at", "updated_at",
	}).AddRow("brand-1", "org-1", "Acme", "acme.com", true, []byte(contextJSON), 3, 45, now, now)
}

func TestGetBrand(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT (.+) FROM brands b WHERE b.id").
		WithArgs("brand-1").
		WillReturnRows(brandRows(t, `{"summary":"industrial sensors","personas":[{"id":"p1","title":"Ops lead"}]}`))

	b, err := service.Get(context.Background(), "brand-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", b.Name)
	assert.Equal(t, 3, b.ContextVersion)
	assert.Equal(t, "industrial sensors", b.Context.Summary)
	require.Len(t, b.Context.Personas, 1)
	assert.Equal(t, "Ops lead", b.Context.Personas[0].Title)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBrandNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT (.+) FROM brands b WHERE b.id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = service.Get(context.Background(), "missing")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeBrandNotFound, stdErr.Code)
}

func TestUpdateBrandValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, logger.NewNoOpLogger())

	tests := []struct {
		name string
		req  updateBrandRequest
	}{
		{"empty name", updateBrandRequest{Name: strPtr("  ")}},
		{"bad domain", updateBrandRequest{Domain: strPtr("not a domain")}},
		{"nothing to update", updateBrandRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Update(context.Background(), "brand-1", &tt.req)
			require.Error(t, err)
			stdErr, ok := err.(*apperrors.StandardError)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
		})
	}
}

func TestReplaceContextSectionUnknown(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, logger.NewNoOpLogger())

	_, err = service.ReplaceContextSection(context.Background(), "brand-1", "mission", json.RawMessage(`"x"`))
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnknownSection, stdErr.Code)
}

func TestReplaceContextSectionBumpsVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT context, context_version FROM brands").
		WithArgs("brand-1").
		WillReturnRows(sqlmock.NewRows([]string{"context", "context_version"}).
			AddRow([]byte(`{"summary":"old"}`), 3))
	mock.ExpectExec("UPDATE brands SET context = (.+) context_version = context_version \\+ 1").
		WithArgs(sqlmock.AnyArg(), "brand-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM brands b WHERE b.id").
		WithArgs("brand-1").
		WillReturnRows(brandRows(t, `{"summary":"new"}`))

	b, err := service.ReplaceContextSection(context.Background(), "brand-1", "summary", json.RawMessage(`"new"`))
	require.NoError(t, err)
	assert.Equal(t, "new", b.Context.Summary)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveContextStaleVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE brands SET context").
		WithArgs(sqlmock.AnyArg(), "brand-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = SaveContext(context.Background(), db, "brand-1", &models.BrandContext{}, 2)
	require.Error(t, err)
}

func strPtr(s string) *string { return &s }
