package privacy

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Privacy.PageSize = 500

	service := NewService(db, nil, nil, cfg, logger.NewNoOpLogger())
	return service, mock, func() { db.Close() }
}

func expectBrandIDs(mock sqlmock.Sqlmock, ids ...string) {
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	mock.ExpectQuery("SELECT id FROM brands WHERE org_id").
		WithArgs("org-1").
		WillReturnRows(rows)
}

func TestDeleteRunsChildTablesFirst(t *testing.T) {
	service, mock, cleanup := newTestService(t)
	defer cleanup()

	expectBrandIDs(mock, "brand-1")

	// ordered: every table in the cascade, children before parents
	for _, pattern := range []string{
		"DELETE FROM query_results",
		"DELETE FROM queries",
		"DELETE FROM memo_views",
		"DELETE FROM memos",
		"DELETE FROM competitors",
		"DELETE FROM search_stats",
		"DELETE FROM webhook_configs",
		"DELETE FROM integration_tokens",
		"DELETE FROM brands",
		"DELETE FROM organization_invites",
		"DELETE FROM organization_members",
		"DELETE FROM organizations",
	} {
		mock.ExpectExec(pattern).WillReturnResult(sqlmock.NewResult(0, 2))
	}
	mock.ExpectExec(`INSERT INTO privacy_audit \(id, org_id, action, actor, detail, created_at\)`).
		WithArgs(sqlmock.AnyArg(), "org-1", "delete", "user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := service.Delete(context.Background(), "org-1", "user-1")
	require.NoError(t, err)
	assert.Len(t, result.Deleted, 12)
	assert.Equal(t, 2, result.Deleted["organizations"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStopsAtFirstFailure(t *testing.T) {
	service, mock, cleanup := newTestService(t)
	defer cleanup()

	expectBrandIDs(mock, "brand-1")

	mock.ExpectExec("DELETE FROM query_results").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM queries").WillReturnError(errTestDB)

	_, err := service.Delete(context.Background(), "org-1", "user-1")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDeleteFailed, stdErr.Code)
	assert.Equal(t, "queries", stdErr.Metadata["table"])

	// nothing after the failing table ran
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportBuildsManifest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	cfg := &config.Config{}
	cfg.Privacy.PageSize = 500
	service := NewService(db, nil, nil, cfg, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT id FROM brands WHERE org_id").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("brand-1"))
	mock.ExpectQuery("SELECT id FROM memos WHERE brand_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("memo-1"))
	mock.ExpectQuery("SELECT id FROM queries WHERE brand_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectQuery(`SELECT \* FROM organizations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("org-1", "Acme"))
	mock.ExpectQuery(`SELECT \* FROM organization_members`).
		WillReturnRows(sqlmock.NewRows([]string{"org_id", "user_id"}).
			AddRow("org-1", "user-1").AddRow("org-1", "user-2"))
	mock.ExpectQuery(`SELECT \* FROM organization_invites`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM brands`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("brand-1"))
	mock.ExpectQuery(`SELECT \* FROM competitors`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM memos`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("memo-1"))
	mock.ExpectQuery(`SELECT \* FROM memo_views`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM queries`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM search_stats`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM webhook_configs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM integration_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO privacy_audit \(id, org_id, action, actor, detail, created_at\)`).
		WithArgs(sqlmock.AnyArg(), "org-1", "export", "user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc, err := service.Export(context.Background(), "org-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", doc.OrgID)
	assert.Equal(t, 2, doc.Manifest["organization_members"])
	assert.Equal(t, 1, doc.Manifest["memos"])
	assert.Equal(t, 0, doc.Manifest["query_results"])
	assert.Equal(t, "Acme", doc.Tables["organizations"][0]["name"])
}

func TestExportTablePagesWithStableOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{}
	cfg.Privacy.PageSize = 2
	service := NewService(db, nil, nil, cfg, logger.NewNoOpLogger())

	// brand_id is not unique in memos, so id must break ties between pages
	pattern := `SELECT \* FROM memos WHERE brand_id = ANY\(\$1\) ORDER BY brand_id, id LIMIT \$2 OFFSET \$3`
	mock.ExpectQuery(pattern).
		WithArgs(sqlmock.AnyArg(), 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("memo-1").AddRow("memo-2"))
	mock.ExpectQuery(pattern).
		WithArgs(sqlmock.AnyArg(), 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("memo-3"))

	rows, err := service.exportTable(context.Background(), "memos", "brand_id", []string{"brand-1"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "memo-1", rows[0]["id"])
	assert.Equal(t, "memo-3", rows[2]["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportEmptyKeysSkipsQuery(t *testing.T) {
	service, _, cleanup := newTestService(t)
	defer cleanup()

	rows, err := service.exportTable(context.Background(), "query_results", "query_id", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

var errTestDB = &timeoutErr{}

type timeoutErr struct{}

func (e *timeoutErr) Error() string { return "connection reset" }
