package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradedocs/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedIngestion(t *testing.T, st *SQLiteStore, setKey string) *model.IngestionRecord {
	t.Helper()
	rec := &model.IngestionRecord{
		SetKey:           setKey,
		OriginalFilename: "invoice.pdf",
		FileType:         "pdf",
		SizeBytes:        2048,
	}
	require.NoError(t, st.CreateIngestion(context.Background(), rec))
	return rec
}

// --- Ingestion records ---

func TestSQLite_CreateAndGetIngestion(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := seedIngestion(t, st, "lc-001")
	assert.NotEmpty(t, rec.ID)

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "lc-001", got.SetKey)
	assert.Equal(t, "invoice.pdf", got.OriginalFilename)
	assert.Equal(t, model.IngestionStatusPending, got.Status)
	require.Len(t, got.ProcessingSteps, 1)
	assert.Equal(t, model.StageUpload, got.ProcessingSteps[0].Stage)
	assert.Equal(t, model.StepCompleted, got.ProcessingSteps[0].Status)
}

func TestSQLite_GetIngestion_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetIngestion(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_AppendStep_PreservesOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	rec := seedIngestion(t, st, "")

	for _, stage := range []model.Stage{model.StageValidation, model.StageOCR} {
		require.NoError(t, st.AppendStep(ctx, rec.ID, model.ProcessingStep{
			Stage:     stage,
			Status:    model.StepCompleted,
			Timestamp: time.Now().UTC(),
		}))
	}

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.ProcessingSteps, 3)
	assert.Equal(t, model.StageUpload, got.ProcessingSteps[0].Stage)
	assert.Equal(t, model.StageValidation, got.ProcessingSteps[1].Stage)
	assert.Equal(t, model.StageOCR, got.ProcessingSteps[2].Stage)
	assert.True(t, model.StepsArePrefix(got.ProcessingSteps))
}

func TestSQLite_UpdateStatus_RoundTripsErrorMessage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	rec := seedIngestion(t, st, "")

	require.NoError(t, st.UpdateStatus(ctx, rec.ID, model.IngestionStatusError, "invalid document"))

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestionStatusError, got.Status)
	assert.Equal(t, "invalid document", got.ErrorMessage)

	// Empty message clears the column.
	require.NoError(t, st.UpdateStatus(ctx, rec.ID, model.IngestionStatusProcessing, ""))
	got, err = st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ErrorMessage)
}

func TestSQLite_MarkCompleted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	rec := seedIngestion(t, st, "")

	require.NoError(t, st.UpdateStatus(ctx, rec.ID, model.IngestionStatusError, "stuck"))

	at := time.Now().UTC()
	require.NoError(t, st.MarkCompleted(ctx, rec.ID, at))

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestionStatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, at, *got.CompletedAt, time.Second)
}

func TestSQLite_SetExtractedDataAndText(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	rec := seedIngestion(t, st, "")

	require.NoError(t, st.SetExtractedText(ctx, rec.ID, "COMMERCIAL INVOICE", 0.87))
	require.NoError(t, st.SetExtractedData(ctx, rec.ID, map[string]string{"total_amount": "100000.00"}))
	require.NoError(t, st.SetDocumentType(ctx, rec.ID, model.DocTypeCommercialInvoice))

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "COMMERCIAL INVOICE", got.ExtractedText)
	assert.InDelta(t, 0.87, got.Confidence, 1e-9)
	assert.Equal(t, "100000.00", got.ExtractedData["total_amount"])
	assert.Equal(t, model.DocTypeCommercialInvoice, got.DocumentType)
}

func TestSQLite_ListIngestions_FilterByStatusAndSet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := seedIngestion(t, st, "lc-001")
	b := seedIngestion(t, st, "lc-001")
	seedIngestion(t, st, "lc-002")
	require.NoError(t, st.UpdateStatus(ctx, a.ID, model.IngestionStatusError, "invalid document"))

	errored, err := st.ListIngestions(ctx, IngestionFilter{Status: model.IngestionStatusError})
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, a.ID, errored[0].ID)

	inSet, err := st.ListIngestions(ctx, IngestionFilter{SetKey: "lc-001"})
	require.NoError(t, err)
	assert.Len(t, inSet, 2)

	pendingInSet, err := st.ListIngestions(ctx, IngestionFilter{
		Status: model.IngestionStatusPending,
		SetKey: "lc-001",
	})
	require.NoError(t, err)
	require.Len(t, pendingInSet, 1)
	assert.Equal(t, b.ID, pendingInSet[0].ID)
}

func TestSQLite_ListStuck_OnlyOldProcessing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	stuck := seedIngestion(t, st, "")
	require.NoError(t, st.UpdateStatus(ctx, stuck.ID, model.IngestionStatusProcessing, ""))
	fresh := seedIngestion(t, st, "")
	require.NoError(t, st.UpdateStatus(ctx, fresh.ID, model.IngestionStatusProcessing, ""))

	// A cutoff in the future catches both; one in the past catches none.
	got, err := st.ListStuck(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = st.ListStuck(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_ResetIngestion_ClearsDerivedState(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	rec := seedIngestion(t, st, "lc-001")

	require.NoError(t, st.AppendStep(ctx, rec.ID, model.ProcessingStep{
		Stage: model.StageValidation, Status: model.StepCompleted, Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, st.SetExtractedText(ctx, rec.ID, "text", 0.9))
	require.NoError(t, st.SetDocumentType(ctx, rec.ID, model.DocTypeCommercialInvoice))
	require.NoError(t, st.UpsertFields(ctx, []model.FieldExtraction{
		{IngestionID: rec.ID, FormID: "form_1", FieldName: "total_amount", FieldValue: "100", ExtractionMethod: model.ExtractionMethodPattern},
	}))
	require.NoError(t, st.MarkCompleted(ctx, rec.ID, time.Now().UTC()))

	require.NoError(t, st.ResetIngestion(ctx, rec.ID))

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestionStatusPending, got.Status)
	assert.Empty(t, got.DocumentType)
	assert.Empty(t, got.ExtractedText)
	assert.Nil(t, got.CompletedAt)
	require.Len(t, got.ProcessingSteps, 1)
	assert.Equal(t, model.StageUpload, got.ProcessingSteps[0].Stage)

	fields, err := st.GetFields(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

// --- Artifacts and fields ---

func TestSQLite_Artifacts_UpsertOnRerun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	rec := seedIngestion(t, st, "")

	txt := &model.TextArtifact{
		IngestionID: rec.ID, FormID: "form_1",
		Content: "first pass", Confidence: 0.5, Language: "en",
		CharacterCount: 10, WordCount: 2,
	}
	require.NoError(t, st.SaveTextArtifact(ctx, txt))
	txt.Content = "second pass"
	txt.Confidence = 0.9
	require.NoError(t, st.SaveTextArtifact(ctx, txt))

	pdf := &model.FormArtifact{
		IngestionID: rec.ID, FormID: "form_1",
		DocumentType: model.DocTypeGeneric, FormsDetected: 1,
	}
	require.NoError(t, st.SaveFormArtifact(ctx, pdf))
	pdf.DocumentType = model.DocTypeLetterOfCredit
	require.NoError(t, st.SaveFormArtifact(ctx, pdf))
}

func TestSQLite_UpsertFields_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	rec := seedIngestion(t, st, "")

	rows := []model.FieldExtraction{
		{IngestionID: rec.ID, FormID: "form_1", FieldName: "total_amount", FieldValue: "100000.00", Confidence: 0.9, ExtractionMethod: model.ExtractionMethodPattern},
		{IngestionID: rec.ID, FormID: "form_1", FieldName: "currency", FieldValue: "USD", Confidence: 0.8, ExtractionMethod: model.ExtractionMethodPattern},
	}
	require.NoError(t, st.UpsertFields(ctx, rows))

	// Re-running with a changed value updates in place, no duplicates.
	rows[0].FieldValue = "95000.00"
	require.NoError(t, st.UpsertFields(ctx, rows))

	fields, err := st.GetFields(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	byName := map[string]string{}
	for _, f := range fields {
		byName[f.FieldName] = f.FieldValue
	}
	assert.Equal(t, "95000.00", byName["total_amount"])
	assert.Equal(t, "USD", byName["currency"])
}

// --- Document sets ---

func TestSQLite_GetOrCreateSet_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	expected := []model.DocumentType{model.DocTypeCommercialInvoice, model.DocTypeLetterOfCredit}
	first, err := st.GetOrCreateSet(ctx, "lc-001", expected)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentSetPending, first.Status)
	assert.Equal(t, expected, first.ExpectedDocumentTypes)

	second, err := st.GetOrCreateSet(ctx, "lc-001", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, expected, second.ExpectedDocumentTypes)
}

func TestSQLite_SetMembersAndSnapshot(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	set, err := st.GetOrCreateSet(ctx, "lc-001", []model.DocumentType{
		model.DocTypeCommercialInvoice, model.DocTypeLetterOfCredit,
	})
	require.NoError(t, err)

	invoice := seedIngestion(t, st, "lc-001")
	credit := seedIngestion(t, st, "lc-001")
	require.NoError(t, st.AddSetMember(ctx, set.ID, invoice.ID))
	require.NoError(t, st.AddSetMember(ctx, set.ID, credit.ID))
	// Duplicate add is a no-op.
	require.NoError(t, st.AddSetMember(ctx, set.ID, invoice.ID))

	got, err := st.GetSet(ctx, "lc-001")
	require.NoError(t, err)
	assert.Equal(t, []string{invoice.ID, credit.ID}, got.MemberIngestionIDs)

	// Only completed members appear in the snapshot.
	require.NoError(t, st.SetDocumentType(ctx, invoice.ID, model.DocTypeCommercialInvoice))
	require.NoError(t, st.UpsertFields(ctx, []model.FieldExtraction{
		{IngestionID: invoice.ID, FormID: "form_1", FieldName: "total_amount", FieldValue: "100000.00", ExtractionMethod: model.ExtractionMethodPattern},
	}))
	require.NoError(t, st.MarkCompleted(ctx, invoice.ID, time.Now().UTC()))

	snap, err := st.GetSetSnapshot(ctx, "lc-001")
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, invoice.ID, snap.Members[0].IngestionID)
	assert.Equal(t, model.DocTypeCommercialInvoice, snap.Members[0].DocumentType)
	require.NotNil(t, snap.Field(model.DocTypeCommercialInvoice, "total_amount"))
	assert.Equal(t, "100000.00", snap.Field(model.DocTypeCommercialInvoice, "total_amount").FieldValue)
	assert.False(t, snap.HasType(model.DocTypeLetterOfCredit))
}

func TestSQLite_MarkSetEvaluated(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	set, err := st.GetOrCreateSet(ctx, "lc-001", nil)
	require.NoError(t, err)

	at := time.Now().UTC()
	require.NoError(t, st.MarkSetEvaluated(ctx, set.ID, model.DocumentSetComplete, at))

	got, err := st.GetSet(ctx, "lc-001")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentSetComplete, got.Status)
	require.NotNil(t, got.EvaluatedAt)
	assert.WithinDuration(t, at, *got.EvaluatedAt, time.Second)
}

// --- Discrepancies ---

func TestSQLite_ReplaceOpenDiscrepancies_PreservesResolved(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	set, err := st.GetOrCreateSet(ctx, "lc-001", nil)
	require.NoError(t, err)

	require.NoError(t, st.ReplaceOpenDiscrepancies(ctx, set.ID, []model.Discrepancy{
		{DiscrepancyType: model.DiscrepancyAmountMismatch, Severity: model.SeverityHigh, FieldName: "total_amount"},
		{DiscrepancyType: model.DiscrepancyDocumentMissing, Severity: model.SeverityHigh, FieldName: "document"},
	}))

	open, err := st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyOpen)
	require.NoError(t, err)
	require.Len(t, open, 2)

	// Resolve one, then re-evaluate with a single finding. The
	// resolved row must survive the replacement.
	require.NoError(t, st.ResolveDiscrepancy(ctx, open[0].ID, "waived by applicant"))
	require.NoError(t, st.ReplaceOpenDiscrepancies(ctx, set.ID, []model.Discrepancy{
		{DiscrepancyType: model.DiscrepancyDateDiscrepancy, Severity: model.SeverityMedium, FieldName: "shipment_date"},
	}))

	all, err := st.ListDiscrepancies(ctx, set.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	resolved, err := st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "waived by applicant", resolved[0].ResolutionNotes)
	require.NotNil(t, resolved[0].ResolvedAt)

	open, err = st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, model.DiscrepancyDateDiscrepancy, open[0].DiscrepancyType)
}

func TestSQLite_ResolveDiscrepancy_Twice(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	set, err := st.GetOrCreateSet(ctx, "lc-001", nil)
	require.NoError(t, err)
	require.NoError(t, st.ReplaceOpenDiscrepancies(ctx, set.ID, []model.Discrepancy{
		{DiscrepancyType: model.DiscrepancyAmountMismatch, Severity: model.SeverityHigh},
	}))
	open, err := st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, st.ResolveDiscrepancy(ctx, open[0].ID, "first"))
	err = st.ResolveDiscrepancy(ctx, open[0].ID, "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}
