// Package sweep reclaims ingestion records stuck mid-pipeline, the
// only component that may force a record terminal without running the
// stage sequence.
package sweep

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradedocs/internal/config"
	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/pipeline"
	"github.com/sells-group/tradedocs/internal/store"
)

// stuckMessage is recorded on records reclaimed without usable
// extraction output.
const stuckMessage = "stuck processing — recovered"

// Sweeper periodically scans for processing records untouched beyond
// the stuck timeout and forces each to a terminal state.
type Sweeper struct {
	cfg      config.SweepConfig
	store    store.Store
	locks    *pipeline.KeyedLocks
	notifier pipeline.CompletionNotifier
}

// NewSweeper creates a sweeper. locks must be the instance shared with
// the pipeline controller so a sweep never races an in-flight run of
// the same record. notifier may be nil.
func NewSweeper(cfg config.SweepConfig, st store.Store, locks *pipeline.KeyedLocks, notifier pipeline.CompletionNotifier) *Sweeper {
	if locks == nil {
		locks = pipeline.NewKeyedLocks()
	}
	return &Sweeper{cfg: cfg, store: st, locks: locks, notifier: notifier}
}

// Run executes sweeps on the configured interval until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.cfg.Interval()
	zap.L().Info("recovery sweep started",
		zap.String("service", "sweep"),
		zap.Duration("interval", interval),
		zap.Duration("stuck_timeout", s.cfg.StuckTimeout()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("recovery sweep stopped", zap.String("service", "sweep"))
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				zap.L().Error("sweep failed", zap.String("service", "sweep"), zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep pass.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.StuckTimeout())
	stuck, err := s.store.ListStuck(ctx, cutoff)
	if err != nil {
		return eris.Wrap(err, "sweep: list stuck")
	}
	if len(stuck) == 0 {
		return nil
	}

	zap.L().Info("reclaiming stuck records",
		zap.String("service", "sweep"),
		zap.Int("count", len(stuck)),
	)
	for i := range stuck {
		if err := s.reclaim(ctx, stuck[i].ID); err != nil {
			zap.L().Error("reclaim failed",
				zap.String("service", "sweep"),
				zap.String("ingestion_id", stuck[i].ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// reclaim forces one record terminal under its pipeline lock. The
// record is re-read under the lock in case a controller finished it
// between the listing and now.
func (s *Sweeper) reclaim(ctx context.Context, id string) error {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	rec, err := s.store.GetIngestion(ctx, id)
	if err != nil {
		return eris.Wrap(err, "sweep: reread record")
	}
	if rec.Status != model.IngestionStatusProcessing {
		return nil
	}

	log := zap.L().With(zap.String("service", "sweep"), zap.String("ingestion_id", id))
	now := time.Now().UTC()

	if len(rec.ExtractedData) > 0 {
		// A prior extraction already produced usable data: complete the
		// record, filling in synthetic steps for whatever stages never
		// recorded one.
		for _, stage := range missingStages(rec) {
			step := model.ProcessingStep{Stage: stage, Status: model.StepCompleted, Timestamp: now, Note: "recovered"}
			if err := s.store.AppendStep(ctx, id, step); err != nil {
				return eris.Wrap(err, "sweep: append step")
			}
		}
		if err := s.store.MarkCompleted(ctx, id, now); err != nil {
			return eris.Wrap(err, "sweep: mark completed")
		}
		log.Info("record recovered as completed")

		if s.notifier != nil {
			done, err := s.store.GetIngestion(ctx, id)
			if err != nil {
				return eris.Wrap(err, "sweep: reread completed record")
			}
			if err := s.notifier.RecordCompleted(ctx, done); err != nil {
				log.Warn("completion notification failed", zap.Error(err))
			}
		}
		return nil
	}

	stage, ok := model.NextStage(rec.ProcessingSteps)
	if !ok {
		stage = model.StageExtraction
	}
	step := model.ProcessingStep{Stage: stage, Status: model.StepError, Timestamp: now, Note: stuckMessage}
	if err := s.store.AppendStep(ctx, id, step); err != nil {
		return eris.Wrap(err, "sweep: append step")
	}
	if err := s.store.UpdateStatus(ctx, id, model.IngestionStatusError, stuckMessage); err != nil {
		return eris.Wrap(err, "sweep: update status")
	}
	log.Info("record recovered as error")
	return nil
}

// missingStages returns the canonical stages with no completed step on
// the record, in canonical order.
func missingStages(rec *model.IngestionRecord) []model.Stage {
	seen := make(map[model.Stage]bool, len(rec.ProcessingSteps))
	for _, step := range rec.ProcessingSteps {
		if step.Status == model.StepCompleted {
			seen[step.Stage] = true
		}
	}
	var out []model.Stage
	for _, stage := range model.CanonicalStages {
		if !seen[stage] {
			out = append(out, stage)
		}
	}
	return out
}
