package docset

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradedocs/internal/config"
	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/registry"
	"github.com/sells-group/tradedocs/internal/rules"
	"github.com/sells-group/tradedocs/internal/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	engine := rules.NewEngine(registry.Default(), config.RulesConfig{SimilarityThreshold: 0.7})
	return NewAggregator(st, engine, registry.Default(), ""), st
}

// completeMember persists a completed ingestion of the given type and
// notifies the aggregator, the way the pipeline does after its last
// stage.
func completeMember(t *testing.T, agg *Aggregator, st store.Store, setKey string, docType model.DocumentType, fields map[string]string) *model.IngestionRecord {
	t.Helper()
	ctx := context.Background()

	rec := &model.IngestionRecord{
		SetKey:           setKey,
		OriginalFilename: string(docType) + ".pdf",
		FileType:         "pdf",
		SizeBytes:        2048,
	}
	require.NoError(t, st.CreateIngestion(ctx, rec))
	require.NoError(t, st.SetDocumentType(ctx, rec.ID, docType))

	var rows []model.FieldExtraction
	for name, value := range fields {
		rows = append(rows, model.FieldExtraction{
			IngestionID:      rec.ID,
			FormID:           "form_1",
			FieldName:        name,
			FieldValue:       value,
			Confidence:       0.9,
			ExtractionMethod: model.ExtractionMethodPattern,
		})
	}
	require.NoError(t, st.UpsertFields(ctx, rows))
	require.NoError(t, st.MarkCompleted(ctx, rec.ID, time.Now().UTC()))

	done, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	require.NoError(t, agg.RecordCompleted(ctx, done))
	return done
}

func compliantFields(docType model.DocumentType) map[string]string {
	switch docType {
	case model.DocTypeCommercialInvoice:
		return map[string]string{
			"total_amount":         "100,000.00",
			"description_of_goods": "Electronic components",
		}
	case model.DocTypeLetterOfCredit:
		return map[string]string{
			"lc_amount":            "100,000.00",
			"expiry_date":          "2030-12-31",
			"description_of_goods": "Electronic components",
		}
	case model.DocTypeBillOfLading:
		return map[string]string{
			"shipment_date": "2025-01-05",
		}
	default:
		return nil
	}
}

func TestRecordCompleted_EmptySetKeyIsStandalone(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	rec := &model.IngestionRecord{OriginalFilename: "solo.pdf", FileType: "pdf", SizeBytes: 10}
	require.NoError(t, st.CreateIngestion(ctx, rec))
	require.NoError(t, st.MarkCompleted(ctx, rec.ID, time.Now().UTC()))
	require.NoError(t, agg.RecordCompleted(ctx, rec))

	_, err := st.GetSet(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordCompleted_IncompleteSetNotEvaluated(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	completeMember(t, agg, st, "TXN-100", model.DocTypeCommercialInvoice, compliantFields(model.DocTypeCommercialInvoice))

	set, err := st.GetSet(ctx, "TXN-100")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentSetPending, set.Status)
	assert.Nil(t, set.EvaluatedAt)
	assert.Len(t, set.MemberIngestionIDs, 1)
}

func TestRecordCompleted_CompleteSetEvaluatedOnce(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	completeMember(t, agg, st, "TXN-200", model.DocTypeCommercialInvoice, compliantFields(model.DocTypeCommercialInvoice))
	completeMember(t, agg, st, "TXN-200", model.DocTypeLetterOfCredit, compliantFields(model.DocTypeLetterOfCredit))
	last := completeMember(t, agg, st, "TXN-200", model.DocTypeBillOfLading, compliantFields(model.DocTypeBillOfLading))

	set, err := st.GetSet(ctx, "TXN-200")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentSetComplete, set.Status)
	require.NotNil(t, set.EvaluatedAt)
	firstEval := *set.EvaluatedAt

	open, err := st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyOpen)
	require.NoError(t, err)
	assert.Empty(t, open)

	// A repeat notification with no newer completion is a no-op.
	require.NoError(t, agg.RecordCompleted(ctx, last))
	set, err = st.GetSet(ctx, "TXN-200")
	require.NoError(t, err)
	assert.True(t, set.EvaluatedAt.Equal(firstEval))
}

func TestRecordCompleted_StoresOpenDiscrepancies(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	inv := compliantFields(model.DocTypeCommercialInvoice)
	inv["total_amount"] = "120,000.00"
	completeMember(t, agg, st, "TXN-300", model.DocTypeCommercialInvoice, inv)
	completeMember(t, agg, st, "TXN-300", model.DocTypeLetterOfCredit, compliantFields(model.DocTypeLetterOfCredit))
	completeMember(t, agg, st, "TXN-300", model.DocTypeBillOfLading, compliantFields(model.DocTypeBillOfLading))

	set, err := st.GetSet(ctx, "TXN-300")
	require.NoError(t, err)

	open, err := st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, model.DiscrepancyAmountMismatch, open[0].DiscrepancyType)
	assert.Equal(t, set.ID, open[0].DocumentSetID)
	assert.Equal(t, model.DiscrepancyOpen, open[0].Status)
	assert.NotEmpty(t, open[0].ID)
}

func TestReevaluation_PreservesResolvedRows(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	inv := compliantFields(model.DocTypeCommercialInvoice)
	inv["total_amount"] = "120,000.00"
	invoice := completeMember(t, agg, st, "TXN-400", model.DocTypeCommercialInvoice, inv)
	completeMember(t, agg, st, "TXN-400", model.DocTypeLetterOfCredit, compliantFields(model.DocTypeLetterOfCredit))
	completeMember(t, agg, st, "TXN-400", model.DocTypeBillOfLading, compliantFields(model.DocTypeBillOfLading))

	set, err := st.GetSet(ctx, "TXN-400")
	require.NoError(t, err)
	open, err := st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.NoError(t, st.ResolveDiscrepancy(ctx, open[0].ID, "amendment received"))

	// The invoice is corrected and re-runs; the member completes again
	// after the first evaluation.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.UpsertFields(ctx, []model.FieldExtraction{{
		IngestionID:      invoice.ID,
		FormID:           "form_1",
		FieldName:        "total_amount",
		FieldValue:       "100,000.00",
		Confidence:       0.9,
		ExtractionMethod: model.ExtractionMethodPattern,
	}}))
	require.NoError(t, st.MarkCompleted(ctx, invoice.ID, time.Now().UTC()))
	fresh, err := st.GetIngestion(ctx, invoice.ID)
	require.NoError(t, err)
	require.NoError(t, agg.RecordCompleted(ctx, fresh))

	open, err = st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyOpen)
	require.NoError(t, err)
	assert.Empty(t, open)

	resolved, err := st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "amendment received", resolved[0].ResolutionNotes)
}

func TestReevaluate_ForcesFreshEvaluation(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	completeMember(t, agg, st, "TXN-500", model.DocTypeCommercialInvoice, compliantFields(model.DocTypeCommercialInvoice))
	completeMember(t, agg, st, "TXN-500", model.DocTypeLetterOfCredit, compliantFields(model.DocTypeLetterOfCredit))
	completeMember(t, agg, st, "TXN-500", model.DocTypeBillOfLading, compliantFields(model.DocTypeBillOfLading))

	set, err := st.GetSet(ctx, "TXN-500")
	require.NoError(t, err)
	require.NotNil(t, set.EvaluatedAt)
	first := *set.EvaluatedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, agg.Reevaluate(ctx, "TXN-500"))

	set, err = st.GetSet(ctx, "TXN-500")
	require.NoError(t, err)
	assert.True(t, set.EvaluatedAt.After(first))
}

func TestReevaluate_IncompleteSetIsNoOp(t *testing.T) {
	agg, st := newTestAggregator(t)
	ctx := context.Background()

	completeMember(t, agg, st, "TXN-600", model.DocTypeCommercialInvoice, compliantFields(model.DocTypeCommercialInvoice))
	require.NoError(t, agg.Reevaluate(ctx, "TXN-600"))

	set, err := st.GetSet(ctx, "TXN-600")
	require.NoError(t, err)
	assert.Nil(t, set.EvaluatedAt)
}
