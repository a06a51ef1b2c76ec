package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var sweepOnce bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reclaim ingestion records stuck mid-pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if sweepOnce {
			return env.Sweeper.RunOnce(ctx)
		}
		env.Sweeper.Run(ctx)
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "run a single sweep pass and exit")
	rootCmd.AddCommand(sweepCmd)
}
