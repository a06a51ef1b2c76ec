package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tradedocs/internal/model"
)

var discrepanciesCmd = &cobra.Command{
	Use:   "discrepancies",
	Short: "Inspect and resolve document set discrepancies",
}

// -- discrepancies list --

var discrepanciesListCmd = &cobra.Command{
	Use:   "list <set-key>",
	Short: "List discrepancies for a document set",
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

		set, err := st.GetSet(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "discrepancies list")
		}

		status, _ := cmd.Flags().GetString("status")
		discs, err := st.ListDiscrepancies(ctx, set.ID, model.DiscrepancyStatus(status))
		if err != nil {
			return eris.Wrap(err, "discrepancies list")
		}

		if len(discs) == 0 {
			fmt.Fprintln(os.Stderr, "No discrepancies found.")
			return nil
		}

		formatDiscrepanciesList(os.Stdout, discs)
		return nil
	},
}

// -- discrepancies resolve --

var discrepanciesResolveCmd = &cobra.Command{
	Use:   "resolve <discrepancy-id>",
	Short: "Mark an open discrepancy as resolved",
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

		notes, _ := cmd.Flags().GetString("notes")
		if err := st.ResolveDiscrepancy(ctx, args[0], notes); err != nil {
			return eris.Wrap(err, "discrepancies resolve")
		}

		fmt.Println("resolved")
		return nil
	},
}

// formatDiscrepanciesList writes a tabular list of discrepancies to w.
func formatDiscrepanciesList(out io.Writer, discs []model.Discrepancy) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tSEVERITY\tFIELD\tEXPECTED\tACTUAL\tUCP\tSTATUS")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t-----\t--------\t------\t---\t------")

	for _, d := range discs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID,
			d.DiscrepancyType,
			d.Severity,
			d.FieldName,
			d.ExpectedValue,
			d.ActualValue,
			d.UCPRuleReference,
			d.Status,
		)
	}
	_ = w.Flush()
}

func init() {
	discrepanciesListCmd.Flags().String("status", "", "filter by status (open, resolved)")
	discrepanciesResolveCmd.Flags().String("notes", "", "resolution notes")

	discrepanciesCmd.AddCommand(discrepanciesListCmd)
	discrepanciesCmd.AddCommand(discrepanciesResolveCmd)
	rootCmd.AddCommand(discrepanciesCmd)
}
