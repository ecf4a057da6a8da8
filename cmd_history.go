package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go_styletransfer/core"
	"go_styletransfer/db"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		summary bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded transfers from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.HistoryEnabled() {
				return core.ErrMissingConfig("STYLE_DB_PATH")
			}
			database, err := db.NewDatabase(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			repo := db.NewRepository(database, nil, a.logger)

			out := cmd.OutOrStdout()
			if summary {
				rows, err := repo.SummaryByStyle(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, rows)
				}
				printSummary(out, rows)
				return nil
			}

			entries, err := repo.RecentTransfers(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, entries)
			}
			printHistory(out, entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", db.DefaultHistoryLimit, "number of transfers to show, newest first")
	cmd.Flags().BoolVar(&summary, "summary", false, "aggregate per style instead of listing transfers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printHistory(w io.Writer, entries []db.HistoryEntry) {
	if len(entries) == 0 {
		color.New(color.FgHiBlack).Fprintln(w, "No transfers recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tREQUEST\tSTYLE\tSIZE\tGPU\tDURATION\tSTATUS")
	for _, e := range entries {
		status := string(e.Status)
		if e.Error != "" {
			status += ": " + e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dx%d\t%t\t%v\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.ID,
			styleLabel(e.Style, e.StyleName),
			e.Width, e.Height,
			e.UseGPU,
			e.Duration.Round(time.Microsecond),
			status,
		)
	}
	tw.Flush()
}

func printSummary(w io.Writer, rows []db.StyleSummary) {
	if len(rows) == 0 {
		color.New(color.FgHiBlack).Fprintln(w, "No transfers recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STYLE\tTOTAL\tFAILED\tAVG MS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\n", styleLabel(r.Style, r.StyleName), r.Total, r.Failed, r.AvgDurationMS)
	}
	tw.Flush()
}

func styleLabel(index int, name string) string {
	if name == "" {
		return fmt.Sprintf("%d (invalid)", index)
	}
	return fmt.Sprintf("%d %s", index, name)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
