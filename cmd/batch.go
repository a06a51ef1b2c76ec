package main

import (
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tradedocs/internal/model"
)

var (
	batchSetKey  string
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Ingest and process every document in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchWorkers > 0 {
			cfg.Pipeline.Workers = batchWorkers
		}
		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		dir := args[0]
		var paths []string
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return eris.Wrapf(err, "walk %s", dir)
		}
		if len(paths) == 0 {
			zap.L().Info("no documents found", zap.String("dir", dir))
			return nil
		}

		// Enqueue everything first so the run phase sees the whole
		// batch; RunMany bounds the concurrency.
		var ids []string
		var failed int
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				failed++
				zap.L().Error("read failed", zap.String("path", path), zap.Error(err))
				continue
			}
			rec, err := env.Controller.Enqueue(ctx, filepath.Base(path), batchSetKey, data)
			if err != nil {
				failed++
				zap.L().Error("enqueue failed", zap.String("path", path), zap.Error(err))
				continue
			}
			ids = append(ids, rec.ID)
		}

		if err := env.Controller.RunMany(ctx, ids); err != nil {
			zap.L().Warn("batch run incomplete", zap.Error(err))
		}

		var completed int
		for _, id := range ids {
			rec, err := env.Store.GetIngestion(ctx, id)
			if err != nil {
				failed++
				continue
			}
			if rec.Status == model.IngestionStatusCompleted {
				completed++
			} else {
				failed++
			}
		}

		zap.L().Info("batch finished",
			zap.Int("documents", len(paths)),
			zap.Int("completed", completed),
			zap.Int("failed", failed),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchSetKey, "set", "", "document set key applied to every document in the batch")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent documents (default from config)")
	rootCmd.AddCommand(batchCmd)
}
