package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tradedocs/internal/config"
	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/ocr"
	"github.com/sells-group/tradedocs/internal/resilience"
	"github.com/sells-group/tradedocs/internal/store"
)

// formID for single-form documents. Form splitting records one
// artifact per detected form; the pipeline currently treats each
// upload as one form.
const primaryFormID = "form_1"

// CompletionNotifier receives completed records; the document set
// aggregator implements it.
type CompletionNotifier interface {
	RecordCompleted(ctx context.Context, rec *model.IngestionRecord) error
}

// Controller drives a record through the stage sequence: upload is
// recorded at creation, then validation, ocr, classification and
// extraction run in strict order with one ProcessingStep appended per
// stage.
type Controller struct {
	cfg      *config.Config
	store    store.Store
	provider ocr.Provider
	spool    *Spool
	locks    *KeyedLocks
	breaker  *resilience.CircuitBreaker
	notifier CompletionNotifier
	retryCfg resilience.RetryConfig

	cancelMu  sync.Mutex
	cancelled map[string]bool
}

// NewController creates a pipeline controller. locks may be shared
// with the recovery sweep; notifier may be nil.
func NewController(cfg *config.Config, st store.Store, provider ocr.Provider, spool *Spool, locks *KeyedLocks, notifier CompletionNotifier) *Controller {
	if locks == nil {
		locks = NewKeyedLocks()
	}
	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Provider.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Provider.MaxAttempts
	}
	retryCfg.OnRetry = resilience.RetryLogger("ocr", "extract")
	return &Controller{
		cfg:      cfg,
		store:    st,
		provider: provider,
		spool:    spool,
		locks:    locks,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
		}),
		notifier:  notifier,
		retryCfg:  retryCfg,
		cancelled: make(map[string]bool),
	}
}

// Enqueue creates an ingestion record for the payload and spools the
// bytes without processing. Batch callers enqueue everything first and
// hand the ids to RunMany.
func (c *Controller) Enqueue(ctx context.Context, filename, setKey string, data []byte) (*model.IngestionRecord, error) {
	rec := &model.IngestionRecord{
		SetKey:           setKey,
		OriginalFilename: filepath.Base(filename),
		FileType:         fileExt(filename),
		SizeBytes:        int64(len(data)),
	}
	if err := c.store.CreateIngestion(ctx, rec); err != nil {
		return nil, resilience.NewPersistenceError("create ingestion", err)
	}
	if _, err := c.spool.Write(rec.ID, rec.FileType, data); err != nil {
		return nil, err
	}
	return rec, nil
}

// Ingest enqueues the payload and runs the pipeline to completion.
func (c *Controller) Ingest(ctx context.Context, filename, setKey string, data []byte) (*model.IngestionRecord, error) {
	rec, err := c.Enqueue(ctx, filename, setKey, data)
	if err != nil {
		return nil, err
	}
	if err := c.Run(ctx, rec.ID); err != nil {
		return nil, err
	}
	return c.store.GetIngestion(ctx, rec.ID)
}

// Run processes a record through its remaining stages. Completed
// records are a no-op; use Rerun to force. Errored records restart
// from a clean slate rather than resuming mid-history.
func (c *Controller) Run(ctx context.Context, id string) error {
	return c.run(ctx, id, false)
}

// Rerun forces a full re-run: stage history, artifacts and field rows
// are cleared atomically before processing restarts.
func (c *Controller) Rerun(ctx context.Context, id string) error {
	return c.run(ctx, id, true)
}

// RunMany processes ids concurrently with bounded parallelism. A
// record failing terminally does not abort the batch; the first
// persistence-level error is returned after all workers finish.
func (c *Controller) RunMany(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	workers := c.cfg.Pipeline.Workers
	if workers <= 0 {
		workers = 4
	}
	g.SetLimit(workers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := c.Run(gctx, id); err != nil {
				zap.L().Error("pipeline: record failed",
					zap.String("ingestion_id", id),
					zap.Error(err),
				)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Cancel marks a record for cancellation. The in-flight stage
// completes; the controller halts before the next stage starts.
func (c *Controller) Cancel(id string) {
	c.cancelMu.Lock()
	c.cancelled[id] = true
	c.cancelMu.Unlock()
}

func (c *Controller) isCancelled(id string) bool {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	return c.cancelled[id]
}

func (c *Controller) clearCancel(id string) {
	c.cancelMu.Lock()
	delete(c.cancelled, id)
	c.cancelMu.Unlock()
}

func (c *Controller) run(ctx context.Context, id string, force bool) error {
	c.locks.Lock(id)
	defer c.locks.Unlock(id)
	defer c.clearCancel(id)

	log := zap.L().With(zap.String("ingestion_id", id))

	rec, err := c.store.GetIngestion(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == model.IngestionStatusCompleted && !force {
		log.Debug("pipeline: already completed, skipping")
		return nil
	}
	// An errored record carries the failed stage as its trailing step,
	// so resuming from the step count would skip that stage. Errored
	// records always restart from a clean slate.
	if rec.Status == model.IngestionStatusError {
		force = true
	}
	if force {
		if err := c.store.ResetIngestion(ctx, id); err != nil {
			return resilience.NewPersistenceError("reset ingestion", err)
		}
		rec, err = c.store.GetIngestion(ctx, id)
		if err != nil {
			return err
		}
	}

	if err := c.store.UpdateStatus(ctx, id, model.IngestionStatusProcessing, ""); err != nil {
		return resilience.NewPersistenceError("update status", err)
	}

	state := &runState{}
	for {
		stage, ok := model.NextStage(rec.ProcessingSteps)
		if !ok {
			break
		}

		if c.isCancelled(id) {
			log.Info("pipeline: cancelled", zap.String("stage", string(stage)))
			return c.fail(ctx, id, stage, "cancelled")
		}

		start := time.Now()
		err := c.runStage(ctx, rec, stage, state)
		if err != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Error(err),
			)
			var pe *resilience.PersistenceError
			if errors.As(err, &pe) {
				// Record stays at last-known-good; stage writes are
				// idempotent so a later run can retry it.
				return err
			}
			return c.fail(ctx, id, stage, failureMessage(err))
		}

		step := model.ProcessingStep{Stage: stage, Status: model.StepCompleted, Timestamp: time.Now().UTC()}
		if err := c.store.AppendStep(ctx, id, step); err != nil {
			return resilience.NewPersistenceError("append step", err)
		}
		rec.ProcessingSteps = append(rec.ProcessingSteps, step)
		log.Info("pipeline: stage complete",
			zap.String("stage", string(stage)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}

	completedAt := time.Now().UTC()
	if err := c.store.MarkCompleted(ctx, id, completedAt); err != nil {
		return resilience.NewPersistenceError("mark completed", err)
	}
	rec.Status = model.IngestionStatusCompleted
	rec.CompletedAt = &completedAt
	log.Info("pipeline: record completed", zap.String("document_type", string(rec.DocumentType)))

	if c.notifier != nil {
		if err := c.notifier.RecordCompleted(ctx, rec); err != nil {
			// Evaluation failures never undo a completed record; the
			// next completion or sweep will re-trigger the set.
			log.Warn("pipeline: set notification failed", zap.Error(err))
		}
	}
	return nil
}

// fail appends an error step for the failing stage and flips the
// record to error status with the message.
func (c *Controller) fail(ctx context.Context, id string, stage model.Stage, message string) error {
	step := model.ProcessingStep{
		Stage:     stage,
		Status:    model.StepError,
		Timestamp: time.Now().UTC(),
		Note:      message,
	}
	if err := c.store.AppendStep(ctx, id, step); err != nil {
		return resilience.NewPersistenceError("append error step", err)
	}
	if err := c.store.UpdateStatus(ctx, id, model.IngestionStatusError, message); err != nil {
		return resilience.NewPersistenceError("update status", err)
	}
	return nil
}

// runState carries in-memory stage outputs within a single run.
type runState struct {
	providerFields []ocr.Field
}

func (c *Controller) runStage(ctx context.Context, rec *model.IngestionRecord, stage model.Stage, state *runState) error {
	switch stage {
	case model.StageValidation:
		return c.validate(rec)
	case model.StageOCR:
		return c.runOCR(ctx, rec, state)
	case model.StageClassification:
		return c.classify(ctx, rec)
	case model.StageExtraction:
		return c.extract(ctx, rec, state)
	default:
		return eris.Errorf("pipeline: unexpected stage %q", stage)
	}
}

func (c *Controller) runOCR(ctx context.Context, rec *model.IngestionRecord, state *runState) error {
	// A missing or unreadable spool file is not a provider outage; it
	// fails the stage immediately without touching the retry budget.
	data, err := c.spool.Read(rec.ID, rec.FileType)
	if err != nil {
		return eris.Wrap(err, "pipeline: read spooled payload")
	}

	result, err := resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*ocr.Result, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*ocr.Result, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Provider.Timeout())
			defer cancel()
			return c.provider.Extract(callCtx, data, rec.OriginalFilename)
		})
	})
	if err != nil {
		return err
	}

	if err := c.store.SetExtractedText(ctx, rec.ID, result.Text, result.Confidence); err != nil {
		return resilience.NewPersistenceError("set extracted text", err)
	}
	if err := c.store.SaveTextArtifact(ctx, &model.TextArtifact{
		IngestionID:    rec.ID,
		FormID:         primaryFormID,
		Content:        result.Text,
		Confidence:     result.Confidence,
		Language:       "en",
		CharacterCount: len(result.Text),
		WordCount:      len(strings.Fields(result.Text)),
	}); err != nil {
		return resilience.NewPersistenceError("save text artifact", err)
	}

	rec.ExtractedText = result.Text
	rec.Confidence = result.Confidence
	state.providerFields = result.Fields
	return nil
}

func (c *Controller) classify(ctx context.Context, rec *model.IngestionRecord) error {
	docType, confidence := Classify(rec.ExtractedText)

	if err := c.store.SetDocumentType(ctx, rec.ID, docType); err != nil {
		return resilience.NewPersistenceError("set document type", err)
	}
	if err := c.store.SaveFormArtifact(ctx, &model.FormArtifact{
		IngestionID:     rec.ID,
		FormID:          primaryFormID,
		FilePath:        c.spool.path(rec.ID, rec.FileType),
		DocumentType:    docType,
		PageRange:       "all",
		FormsDetected:   1,
		Classification:  string(docType),
		ConfidenceScore: confidence,
	}); err != nil {
		return resilience.NewPersistenceError("save form artifact", err)
	}

	rec.DocumentType = docType
	return nil
}

func (c *Controller) extract(ctx context.Context, rec *model.IngestionRecord, state *runState) error {
	fields := ExtractFields(rec.DocumentType, rec.ExtractedText)

	// Provider-supplied structured fields fill gaps the pattern table
	// missed; pattern matches win on collision.
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f.FieldName] = true
	}
	for _, pf := range state.providerFields {
		name := normalizeFieldName(pf.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, model.FieldExtraction{
			FieldName:        name,
			FieldValue:       pf.Value,
			Confidence:       pf.Confidence,
			ExtractionMethod: model.ExtractionMethodProvider,
		})
	}

	for i := range fields {
		fields[i].IngestionID = rec.ID
		fields[i].FormID = primaryFormID
	}

	if err := c.store.UpsertFields(ctx, fields); err != nil {
		return resilience.NewPersistenceError("upsert fields", err)
	}

	data := make(map[string]string, len(fields))
	for _, f := range fields {
		data[f.FieldName] = f.FieldValue
	}
	if err := c.store.SetExtractedData(ctx, rec.ID, data); err != nil {
		return resilience.NewPersistenceError("set extracted data", err)
	}

	rec.ExtractedData = data
	return nil
}

// failureMessage maps a stage error to the message recorded on the
// record.
func failureMessage(err error) string {
	if resilience.IsValidation(err) {
		return "invalid document"
	}
	var pe *resilience.ProviderError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return err.Error()
}

// normalizeFieldName lower-snake-cases a provider field label.
func normalizeFieldName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.ReplaceAll(name, " ", "_")
	return strings.Trim(name, "_")
}

func fileExt(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return strings.ToLower(ext)
}
