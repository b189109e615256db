package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-intel/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO import_batches`).
		WithArgs(pgxmock.AnyArg(), "march-sync", "pending", "ops@example.com", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	b, err := s.CreateBatch(context.Background(), "march-sync", "ops@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BatchStatusPending, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBatchStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE import_batches SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "missing-batch").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateBatchStatus(context.Background(), "missing-batch", model.BatchStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDocumentByExternalID_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM documents WHERE external_id = \$1`).
		WithArgs("unknown-ext").
		WillReturnError(pgx.ErrNoRows)

	doc, err := s.GetDocumentByExternalID(context.Background(), "unknown-ext")
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDocument_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM documents WHERE id = \$1`).
		WithArgs("missing-doc").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDocument(context.Background(), "missing-doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get document")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetImportStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents SET import_status`).
		WithArgs("fetching", pgxmock.AnyArg(), "doc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SetImportStatus(context.Background(), "doc-1", model.ImportStatusFetching)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveProcessingError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents SET extraction_error`).
		WithArgs(pgxmock.AnyArg(), "error", pgxmock.AnyArg(), "doc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SaveProcessingError(context.Background(), "doc-1", &model.ProcessingError{
		Message:   "retries exhausted",
		Status:    503,
		Type:      "transient_provider",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByImportStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"import_status", "count"}).
		AddRow("pending", 4).
		AddRow("extracted", 2).
		AddRow("error", 1)
	mock.ExpectQuery(`SELECT import_status, COUNT\(\*\) FROM documents GROUP BY import_status`).
		WillReturnRows(rows)

	counts, err := s.CountByImportStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, counts[model.ImportStatusPending])
	assert.Equal(t, 2, counts[model.ImportStatusExtracted])
	assert.Equal(t, 1, counts[model.ImportStatusError])
	assert.Equal(t, 7, counts.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "Blake Residence", "Jordan Blake", "", "Closed Won", 100, "proposal_import", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CreateLead(context.Background(), &model.Lead{
		Name:        "Blake Residence",
		ClientName:  "Jordan Blake",
		DealStage:   "Closed Won",
		Probability: 100,
		Source:      "proposal_import",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
