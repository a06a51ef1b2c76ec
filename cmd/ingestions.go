package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/store"
)

var ingestionsCmd = &cobra.Command{
	Use:   "ingestions",
	Short: "Inspect ingestion records",
	Long:  "Commands for listing and viewing ingestion records and their stage history.",
}

// -- ingestions list --

var ingestionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingestion records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		setKey, _ := cmd.Flags().GetString("set")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.IngestionFilter{
			Status: model.IngestionStatus(status),
			SetKey: setKey,
			Limit:  limit,
		}

		recs, err := st.ListIngestions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "ingestions list")
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No ingestions found.")
			return nil
		}

		formatIngestionsList(os.Stdout, recs)
		return nil
	},
}

// -- ingestions show --

var ingestionsShowCmd = &cobra.Command{
	Use:   "show <ingestion-id>",
	Short: "Show full details of an ingestion record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := st.GetIngestion(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "ingestions show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// formatIngestionsList writes a tabular list of ingestion records to w.
func formatIngestionsList(out io.Writer, recs []model.IngestionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFILENAME\tSET\tTYPE\tSTATUS\tSTAGES\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t---\t----\t------\t------\t-------")

	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			r.ID,
			r.OriginalFilename,
			r.SetKey,
			r.DocumentType,
			r.Status,
			len(r.ProcessingSteps),
			len(model.CanonicalStages),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func init() {
	ingestionsListCmd.Flags().String("status", "", "filter by status (pending, processing, completed, error)")
	ingestionsListCmd.Flags().String("set", "", "filter by document set key")
	ingestionsListCmd.Flags().Int("limit", 50, "max records to list")

	ingestionsCmd.AddCommand(ingestionsListCmd)
	ingestionsCmd.AddCommand(ingestionsShowCmd)
	rootCmd.AddCommand(ingestionsCmd)
}
