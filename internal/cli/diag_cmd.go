package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
)

func newDiagCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Diagnostics for the aggregate cache",
	}

	cmd.AddCommand(newDiagDriftCmd(app), newDiagResetCmd(app))
	return cmd
}

func newDiagDriftCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Compare the cached week totals against the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.Reports.Drift(context.Background())
			if err != nil {
				return err
			}
			if !report.Drifted {
				fmt.Printf("No drift: cache for %s matches the event log (%s).\n",
					report.WeekLabel, formatter.FormatMinutes(report.ActualTotalMin))
				return nil
			}

			jobs := map[string]bool{}
			for j := range report.CachedPerJob {
				jobs[j] = true
			}
			for j := range report.ActualPerJob {
				jobs[j] = true
			}
			names := make([]string, 0, len(jobs))
			for j := range jobs {
				names = append(names, j)
			}
			sort.Strings(names)

			rows := [][]string{{
				formatter.StyleBold.Render("total"),
				formatter.FormatMinutes(report.CachedTotalMin),
				formatter.FormatMinutes(report.ActualTotalMin),
			}}
			for _, j := range names {
				rows = append(rows, []string{
					j,
					formatter.FormatMinutes(report.CachedPerJob[j]),
					formatter.FormatMinutes(report.ActualPerJob[j]),
				})
			}
			fmt.Print(formatter.RenderBox("Drift "+report.WeekLabel,
				formatter.RenderTable([]string{"JOB", "CACHED", "ACTUAL"}, rows)))
			fmt.Println(formatter.StyleYellow.Render("Run 'stint backfill --weeks 1' to repair."))
			return nil
		},
	}
}

func newDiagResetCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset-cache",
		Short: "Discard the cached totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := confirm(app, yes, "Reset the aggregate cache?",
				"The next read rebuilds it from the event log.")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Kept.")
				return nil
			}
			if err := app.Diag.ResetCache(context.Background()); err != nil {
				return err
			}
			fmt.Println("Cache reset.")
			return nil
		},
	}

	addYesFlag(cmd.Flags(), &yes)
	return cmd
}
