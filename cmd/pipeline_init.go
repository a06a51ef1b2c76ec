package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradedocs/internal/docset"
	"github.com/sells-group/tradedocs/internal/ocr"
	"github.com/sells-group/tradedocs/internal/pipeline"
	"github.com/sells-group/tradedocs/internal/registry"
	"github.com/sells-group/tradedocs/internal/rules"
	"github.com/sells-group/tradedocs/internal/store"
	"github.com/sells-group/tradedocs/internal/sweep"
)

// pipelineEnv holds the initialized store, controller, aggregator and
// sweeper shared by the process/batch/serve/sweep commands.
type pipelineEnv struct {
	Store      store.Store
	Controller *pipeline.Controller
	Aggregator *docset.Aggregator
	Sweeper    *sweep.Sweeper
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, OCR provider, rule engine and
// controller. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg, err := registry.Load(cfg.Rules.RegistryPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	provider, err := ocr.NewProvider(cfg.Provider)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if cfg.Provider.RatePerSec > 0 {
		provider = ocr.NewRateLimited(provider, cfg.Provider.RatePerSec)
	}

	spool, err := pipeline.NewSpool(cfg.Pipeline.SpoolDir)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engine := rules.NewEngine(reg, cfg.Rules)
	aggregator := docset.NewAggregator(st, engine, reg, "")

	locks := pipeline.NewKeyedLocks()
	controller := pipeline.NewController(cfg, st, provider, spool, locks, aggregator)
	sweeper := sweep.NewSweeper(cfg.Sweep, st, locks, aggregator)

	return &pipelineEnv{
		Store:      st,
		Controller: controller,
		Aggregator: aggregator,
		Sweeper:    sweeper,
	}, nil
}

// initStore opens the configured backend: Postgres for service
// deployments, SQLite for local CLI use.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		zap.L().Debug("using sqlite store", zap.String("path", cfg.Store.DatabaseURL))
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("TRADEDOCS_STORE_DATABASE_URL is required for the postgres store")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
