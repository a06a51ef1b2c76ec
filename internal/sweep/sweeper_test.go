package sweep

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradedocs/internal/config"
	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/pipeline"
	"github.com/sells-group/tradedocs/internal/store"
)

type recordingNotifier struct {
	completed []string
}

func (n *recordingNotifier) RecordCompleted(_ context.Context, rec *model.IngestionRecord) error {
	n.completed = append(n.completed, rec.ID)
	return nil
}

func newTestSweeper(t *testing.T) (*Sweeper, store.Store, *recordingNotifier) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	notifier := &recordingNotifier{}
	sw := NewSweeper(config.SweepConfig{}, st, pipeline.NewKeyedLocks(), notifier)
	return sw, st, notifier
}

// seedStuck creates a record parked in processing after the given
// stages, mimicking a run that died mid-pipeline.
func seedStuck(t *testing.T, st store.Store, stages []model.Stage) *model.IngestionRecord {
	t.Helper()
	past := time.Now().UTC().Add(-90 * time.Minute)

	rec := &model.IngestionRecord{
		OriginalFilename: "stuck.pdf",
		FileType:         "pdf",
		SizeBytes:        4096,
		Status:           model.IngestionStatusProcessing,
	}
	for _, stage := range stages {
		rec.ProcessingSteps = append(rec.ProcessingSteps, model.ProcessingStep{
			Stage: stage, Status: model.StepCompleted, Timestamp: past,
		})
	}
	require.NoError(t, st.CreateIngestion(context.Background(), rec))
	return rec
}

func TestReclaim_WithExtractedDataCompletes(t *testing.T) {
	sw, st, notifier := newTestSweeper(t)
	ctx := context.Background()

	rec := seedStuck(t, st, []model.Stage{model.StageUpload, model.StageValidation, model.StageOCR})
	require.NoError(t, st.SetExtractedData(ctx, rec.ID, map[string]string{"invoice_number": "INV-7"}))

	require.NoError(t, sw.reclaim(ctx, rec.ID))

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestionStatusCompleted, got.Status)
	require.Len(t, got.ProcessingSteps, len(model.CanonicalStages))
	assert.True(t, model.StepsArePrefix(got.ProcessingSteps))
	assert.True(t, model.StatusConsistent(got))
	assert.NotNil(t, got.CompletedAt)

	// The two filled-in stages carry the recovery note.
	assert.Equal(t, "recovered", got.ProcessingSteps[3].Note)
	assert.Equal(t, "recovered", got.ProcessingSteps[4].Note)
	assert.Equal(t, model.StageClassification, got.ProcessingSteps[3].Stage)
	assert.Equal(t, model.StageExtraction, got.ProcessingSteps[4].Stage)

	assert.Equal(t, []string{rec.ID}, notifier.completed)
}

func TestReclaim_WithoutDataErrorsOut(t *testing.T) {
	sw, st, notifier := newTestSweeper(t)
	ctx := context.Background()

	rec := seedStuck(t, st, []model.Stage{model.StageUpload, model.StageValidation})

	require.NoError(t, sw.reclaim(ctx, rec.ID))

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestionStatusError, got.Status)
	assert.Equal(t, stuckMessage, got.ErrorMessage)
	require.Len(t, got.ProcessingSteps, 3)
	assert.Equal(t, model.StageOCR, got.ProcessingSteps[2].Stage)
	assert.Equal(t, model.StepError, got.ProcessingSteps[2].Status)
	assert.True(t, model.StatusConsistent(got))
	assert.Empty(t, notifier.completed)
}

func TestReclaim_SkipsRecordsNoLongerProcessing(t *testing.T) {
	sw, st, _ := newTestSweeper(t)
	ctx := context.Background()

	rec := seedStuck(t, st, []model.Stage{model.StageUpload})
	require.NoError(t, st.UpdateStatus(ctx, rec.ID, model.IngestionStatusError, "failed elsewhere"))

	require.NoError(t, sw.reclaim(ctx, rec.ID))

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestionStatusError, got.Status)
	assert.Equal(t, "failed elsewhere", got.ErrorMessage)
	assert.Len(t, got.ProcessingSteps, 1)
}

func TestRunOnce_NothingStuck(t *testing.T) {
	sw, st, notifier := newTestSweeper(t)
	ctx := context.Background()

	// A fresh processing record is inside the stuck window and must be
	// left alone.
	rec := &model.IngestionRecord{
		OriginalFilename: "fresh.pdf",
		FileType:         "pdf",
		SizeBytes:        100,
		Status:           model.IngestionStatusProcessing,
	}
	require.NoError(t, st.CreateIngestion(ctx, rec))

	require.NoError(t, sw.RunOnce(ctx))

	got, err := st.GetIngestion(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestionStatusProcessing, got.Status)
	assert.Empty(t, notifier.completed)
}
