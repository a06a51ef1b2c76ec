package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processSetKey string

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Ingest and process a single document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		rec, err := env.Controller.Ingest(ctx, filepath.Base(path), processSetKey, data)
		if err != nil {
			return err
		}

		zap.L().Info("document processed",
			zap.String("ingestion_id", rec.ID),
			zap.String("status", string(rec.Status)),
			zap.String("document_type", string(rec.DocumentType)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	processCmd.Flags().StringVar(&processSetKey, "set", "", "document set key grouping this document with related ones")
	rootCmd.AddCommand(processCmd)
}
