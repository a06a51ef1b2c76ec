package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradedocs/internal/model"
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

func TestPostgresStore_CreateIngestion_SeedsUploadStep(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ingestion`).
		WithArgs(pgxmock.AnyArg(), "lc-001", "invoice.pdf", "pdf", int64(2048),
			"pending", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.IngestionRecord{
		SetKey:           "lc-001",
		OriginalFilename: "invoice.pdf",
		FileType:         "pdf",
		SizeBytes:        2048,
	}
	require.NoError(t, s.CreateIngestion(context.Background(), rec))

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.IngestionStatusPending, rec.Status)
	require.Len(t, rec.ProcessingSteps, 1)
	assert.Equal(t, model.StageUpload, rec.ProcessingSteps[0].Stage)
	assert.Equal(t, model.StepCompleted, rec.ProcessingSteps[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetIngestion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	steps, err := json.Marshal([]model.ProcessingStep{
		{Stage: model.StageUpload, Status: model.StepCompleted, Timestamp: now},
		{Stage: model.StageValidation, Status: model.StepCompleted, Timestamp: now},
	})
	require.NoError(t, err)

	docType := "Commercial Invoice"
	text := "COMMERCIAL INVOICE\nTotal: 100,000.00"
	mock.ExpectQuery(`SELECT .+ FROM ingestion WHERE id = \$1`).
		WithArgs("ing-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "set_key", "original_filename", "file_type", "size_bytes",
			"status", "document_type", "extracted_text", "confidence",
			"extracted_data", "processing_steps", "error_message",
			"created_date", "updated_date", "completion_date",
		}).AddRow(
			"ing-1", "lc-001", "invoice.pdf", "pdf", int64(2048),
			"processing", &docType, &text, 0.92,
			[]byte(`{"total_amount":"100000.00"}`), steps, nil,
			now, now, nil,
		))

	rec, err := s.GetIngestion(context.Background(), "ing-1")
	require.NoError(t, err)
	assert.Equal(t, "lc-001", rec.SetKey)
	assert.Equal(t, model.IngestionStatusProcessing, rec.Status)
	assert.Equal(t, model.DocumentType("Commercial Invoice"), rec.DocumentType)
	assert.Equal(t, "100000.00", rec.ExtractedData["total_amount"])
	require.Len(t, rec.ProcessingSteps, 2)
	assert.Equal(t, model.StageValidation, rec.ProcessingSteps[1].Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetIngestion_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM ingestion WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetIngestion(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListIngestions_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM ingestion WHERE 1=1 AND status = \$1 AND set_key = \$2 ORDER BY created_date DESC LIMIT \$3`).
		WithArgs("error", "lc-001", 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "set_key", "original_filename", "file_type", "size_bytes",
			"status", "document_type", "extracted_text", "confidence",
			"extracted_data", "processing_steps", "error_message",
			"created_date", "updated_date", "completion_date",
		}))

	recs, err := s.ListIngestions(context.Background(), IngestionFilter{
		Status: model.IngestionStatusError,
		SetKey: "lc-001",
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendStep(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE ingestion SET processing_steps = processing_steps \|\| \$1::jsonb`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "ing-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.AppendStep(context.Background(), "ing-1", model.ProcessingStep{
		Stage:     model.StageOCR,
		Status:    model.StepCompleted,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatus_ClearsErrorWhenEmpty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE ingestion SET status = \$1, error_message = \$2`).
		WithArgs("processing", (*string)(nil), pgxmock.AnyArg(), "ing-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateStatus(context.Background(), "ing-1", model.IngestionStatusProcessing, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResetIngestion_ClearsDerivedRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ingestion_fields WHERE ingestion_id = \$1`).
		WithArgs("ing-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM ingestion_txt WHERE ingestion_id = \$1`).
		WithArgs("ing-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM ingestion_pdf WHERE ingestion_id = \$1`).
		WithArgs("ing-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE ingestion SET status = \$1, document_type = NULL`).
		WithArgs("pending", pgxmock.AnyArg(), pgxmock.AnyArg(), "ing-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, s.ResetIngestion(context.Background(), "ing-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceOpenDiscrepancies(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM discrepancies WHERE document_set_id = \$1 AND status = \$2`).
		WithArgs("set-1", "open").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO discrepancies`).
		WithArgs(pgxmock.AnyArg(), "set-1", model.DiscrepancyAmountMismatch, "high",
			pgxmock.AnyArg(), "total_amount", "100000.00", "95000.00",
			"UCP 600 Article 18(b)", "open", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.ReplaceOpenDiscrepancies(context.Background(), "set-1", []model.Discrepancy{
		{
			DiscrepancyType:  model.DiscrepancyAmountMismatch,
			Severity:         model.SeverityHigh,
			Description:      "invoice amount exceeds credit amount",
			FieldName:        "total_amount",
			ExpectedValue:    "100000.00",
			ActualValue:      "95000.00",
			UCPRuleReference: "UCP 600 Article 18(b)",
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveDiscrepancy_AlreadyResolved(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE discrepancies SET status = \$1`).
		WithArgs("resolved", pgxmock.AnyArg(), "amended LC received", "disc-1", "open").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ResolveDiscrepancy(context.Background(), "disc-1", "amended LC received")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStuck(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cutoff := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery(`SELECT .+ FROM ingestion WHERE status = \$1 AND updated_date < \$2`).
		WithArgs("processing", cutoff).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "set_key", "original_filename", "file_type", "size_bytes",
			"status", "document_type", "extracted_text", "confidence",
			"extracted_data", "processing_steps", "error_message",
			"created_date", "updated_date", "completion_date",
		}))

	recs, err := s.ListStuck(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
