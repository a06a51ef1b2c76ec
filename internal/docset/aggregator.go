// Package docset maintains document set membership and triggers
// discrepancy evaluation when a set first becomes complete.
package docset

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/pipeline"
	"github.com/sells-group/tradedocs/internal/registry"
	"github.com/sells-group/tradedocs/internal/rules"
	"github.com/sells-group/tradedocs/internal/store"
)

// Aggregator subscribes to pipeline completions, folds each completed
// record into its document set, and runs the discrepancy engine once
// the set holds every expected document type. It implements
// pipeline.CompletionNotifier.
type Aggregator struct {
	store   store.Store
	engine  *rules.Engine
	reg     *registry.Registry
	profile string

	// locks serialize updates per set key so two members of the same
	// set completing together cannot both see an incomplete set or
	// evaluate twice.
	locks *pipeline.KeyedLocks
}

// NewAggregator creates an aggregator over the given store and engine.
// An empty profile selects the registry's default profile.
func NewAggregator(st store.Store, engine *rules.Engine, reg *registry.Registry, profile string) *Aggregator {
	if reg == nil {
		reg = registry.Default()
	}
	if profile == "" {
		profile = "default"
	}
	return &Aggregator{
		store:   st,
		engine:  engine,
		reg:     reg,
		profile: profile,
		locks:   pipeline.NewKeyedLocks(),
	}
}

// RecordCompleted folds a completed ingestion into its document set.
// Records without a set key are standalone documents and are skipped.
func (a *Aggregator) RecordCompleted(ctx context.Context, rec *model.IngestionRecord) error {
	if rec.SetKey == "" {
		return nil
	}

	a.locks.Lock(rec.SetKey)
	defer a.locks.Unlock(rec.SetKey)

	log := zap.L().With(
		zap.String("service", "docset"),
		zap.String("set_key", rec.SetKey),
		zap.String("ingestion_id", rec.ID),
	)

	set, err := a.store.GetOrCreateSet(ctx, rec.SetKey, a.reg.ExpectedTypes(a.profile))
	if err != nil {
		return eris.Wrap(err, "docset: get or create set")
	}
	if err := a.store.AddSetMember(ctx, set.ID, rec.ID); err != nil {
		return eris.Wrap(err, "docset: add member")
	}

	snap, err := a.store.GetSetSnapshot(ctx, rec.SetKey)
	if err != nil {
		return eris.Wrap(err, "docset: load snapshot")
	}

	if !isComplete(snap) {
		log.Debug("set still incomplete", zap.Int("members", len(snap.Members)))
		return nil
	}

	if !needsEvaluation(snap) {
		log.Debug("set already evaluated")
		return nil
	}

	return a.evaluate(ctx, snap, log)
}

// Reevaluate forces a fresh evaluation of a complete set, replacing
// its open discrepancies. Incomplete sets are left untouched.
func (a *Aggregator) Reevaluate(ctx context.Context, setKey string) error {
	a.locks.Lock(setKey)
	defer a.locks.Unlock(setKey)

	snap, err := a.store.GetSetSnapshot(ctx, setKey)
	if err != nil {
		return eris.Wrap(err, "docset: load snapshot")
	}
	if !isComplete(snap) {
		return nil
	}

	log := zap.L().With(zap.String("service", "docset"), zap.String("set_key", setKey))
	return a.evaluate(ctx, snap, log)
}

func (a *Aggregator) evaluate(ctx context.Context, snap *model.SetSnapshot, log *zap.Logger) error {
	discs, ruleErrs := a.engine.Evaluate(snap)
	for _, ruleErr := range ruleErrs {
		log.Warn("rule skipped", zap.Error(ruleErr))
	}

	if err := a.store.ReplaceOpenDiscrepancies(ctx, snap.Set.ID, discs); err != nil {
		return eris.Wrap(err, "docset: store discrepancies")
	}
	if err := a.store.MarkSetEvaluated(ctx, snap.Set.ID, model.DocumentSetComplete, time.Now().UTC()); err != nil {
		return eris.Wrap(err, "docset: mark evaluated")
	}

	log.Info("set evaluated",
		zap.Int("members", len(snap.Members)),
		zap.Int("discrepancies", len(discs)),
	)
	return nil
}

// isComplete reports whether every expected document type has at least
// one completed member.
func isComplete(snap *model.SetSnapshot) bool {
	for _, docType := range snap.Set.ExpectedDocumentTypes {
		if !snap.HasType(docType) {
			return false
		}
	}
	return len(snap.Set.ExpectedDocumentTypes) > 0
}

// needsEvaluation reports whether the set has never been evaluated, or
// a member completed after the last evaluation.
func needsEvaluation(snap *model.SetSnapshot) bool {
	if snap.Set.EvaluatedAt == nil {
		return true
	}
	for i := range snap.Members {
		if c := snap.Members[i].CompletedAt; c != nil && c.After(*snap.Set.EvaluatedAt) {
			return true
		}
	}
	return false
}
