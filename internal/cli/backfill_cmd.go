package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
	"github.com/nmckee/stint/internal/notify"
)

func newBackfillCmd(app *App) *cobra.Command {
	var weeks int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Recompute weekly totals from the event log",
		Long: `Recompute the last N weeks from the event log, repairing the cached
totals. The current week's live cache is replaced by its authoritative
recount; historical weeks are reported without touching the live cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if weeks < 1 {
				return fmt.Errorf("--weeks must be at least 1, got %d", weeks)
			}

			unsubscribe := app.Hub.Subscribe(func(ev notify.Event) {
				if ev.Kind != notify.KindBackfillProgress {
					return
				}
				if p, ok := ev.Data.(notify.BackfillProgress); ok {
					fmt.Printf("  [%d/%d] %s\n", p.Current, p.Total, p.WeekLabel)
				}
			})
			defer unsubscribe()

			summary, err := app.Reports.Backfill(context.Background(), weeks)
			if err != nil {
				return err
			}

			labels := make([]string, 0, len(summary.PerWeekTotals))
			for label := range summary.PerWeekTotals {
				labels = append(labels, label)
			}
			sort.Strings(labels)

			rows := make([][]string, 0, len(labels))
			for _, label := range labels {
				rows = append(rows, []string{label, formatter.FormatMinutes(summary.PerWeekTotals[label])})
			}
			fmt.Print(formatter.RenderBox(
				fmt.Sprintf("Backfill (%d weeks)", summary.WeeksProcessed),
				formatter.RenderTable([]string{"WEEK", "TOTAL"}, rows)))

			for _, f := range summary.Failures {
				fmt.Println(formatter.StyleRed.Render(fmt.Sprintf("failed %s: %v", f.WeekLabel, f.Err)))
			}
			if len(summary.Failures) > 0 {
				return fmt.Errorf("%d of %d weeks failed", len(summary.Failures), weeks)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&weeks, "weeks", 4, "How many weeks back to recompute")
	return cmd
}
