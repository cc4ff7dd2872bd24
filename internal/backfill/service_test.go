package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/llm"
)

func testLLMClient(t *testing.T, completion string) *llm.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": completion})
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.APIs.GenAI.BaseURL = srv.URL
	cfg.APIs.GenAI.Timeout = 5000
	return llm.NewClient(cfg, logger.NewNoOpLogger())
}

func pendingRows(pairs ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "text"})
	for i := 0; i < len(pairs); i += 2 {
		rows.AddRow(pairs[i], pairs[i+1])
	}
	return rows
}

func TestRunClassifiesPendingQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := testLLMClient(t, `[{"id":"q-1","vertical":"fintech"},{"id":"q-2","vertical":"logistics"}]`)
	service := NewService(db, client, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT id, text FROM queries").
		WithArgs("brand-1", batchSize).
		WillReturnRows(pendingRows("q-1", "best invoicing tool", "q-2", "freight tracking api"))
	mock.ExpectExec("UPDATE queries SET vertical").
		WithArgs("fintech", "q-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE queries SET vertical").
		WithArgs("logistics", "q-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := service.Run(context.Background(), "brand-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 0, result.Skipped)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSkipsUnknownIDsAndBlankVerticals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := testLLMClient(t, `[{"id":"q-1","vertical":"healthcare"},{"id":"bogus","vertical":"x"},{"id":"q-2","vertical":"  "}]`)
	service := NewService(db, client, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT id, text FROM queries").
		WithArgs("brand-1", batchSize).
		WillReturnRows(pendingRows("q-1", "hipaa compliant crm", "q-2", "untagged query"))
	mock.ExpectExec("UPDATE queries SET vertical").
		WithArgs("healthcare", "q-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := service.Run(context.Background(), "brand-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCountsUnparseableBatchAsSkipped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := testLLMClient(t, "sorry, I cannot classify these")
	service := NewService(db, client, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT id, text FROM queries").
		WithArgs("brand-1", batchSize).
		WillReturnRows(pendingRows("q-1", "some query"))

	result, err := service.Run(context.Background(), "brand-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Skipped)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStopsWhenFullBatchYieldsNoUpdates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// parseable completion, but no usable rows: blank verticals only
	client := testLLMClient(t, `[{"id":"q-0","vertical":""},{"id":"q-1","vertical":" "}]`)
	service := NewService(db, client, logger.NewNoOpLogger())

	rows := sqlmock.NewRows([]string{"id", "text"})
	for i := 0; i < batchSize; i++ {
		rows.AddRow(fmt.Sprintf("q-%d", i), fmt.Sprintf("query %d", i))
	}
	// a single SELECT: the run must stop rather than re-select the same
	// NULL rows forever
	mock.ExpectQuery("SELECT id, text FROM queries").
		WithArgs("brand-1", batchSize).
		WillReturnRows(rows)

	result, err := service.Run(context.Background(), "brand-1")
	require.NoError(t, err)
	assert.Equal(t, batchSize, result.Processed)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, batchSize, result.Skipped)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunNothingPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, nil, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT id, text FROM queries").
		WithArgs("brand-1", batchSize).
		WillReturnRows(pendingRows())

	result, err := service.Run(context.Background(), "brand-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
