package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
)

func newWeekCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show the current week's totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.Reports.CurrentWeek(context.Background())
			if err != nil {
				return err
			}

			var b strings.Builder

			target := report.Snapshot.TargetMin
			total := report.Snapshot.TotalMin
			b.WriteString(fmt.Sprintf("%s of %s\n",
				formatter.StyleBold.Render(formatter.FormatMinutes(total)),
				formatter.FormatMinutes(target)))
			if target > 0 {
				b.WriteString(formatter.RenderProgress(float64(total)/float64(target), 30))
				b.WriteString("\n")
			}

			if len(report.Snapshot.PerJobMin) > 0 {
				b.WriteString("\n")
				jobs := make([]string, 0, len(report.Snapshot.PerJobMin))
				for job := range report.Snapshot.PerJobMin {
					jobs = append(jobs, job)
				}
				sort.Slice(jobs, func(i, j int) bool {
					a, c := jobs[i], jobs[j]
					if report.Snapshot.PerJobMin[a] != report.Snapshot.PerJobMin[c] {
						return report.Snapshot.PerJobMin[a] > report.Snapshot.PerJobMin[c]
					}
					return a < c
				})

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{job, formatter.FormatMinutes(report.Snapshot.PerJobMin[job])})
				}
				b.WriteString(formatter.RenderTable([]string{"JOB", "LOGGED"}, rows))
			}

			if report.Session != nil {
				b.WriteString("\n")
				b.WriteString(formatter.StatusIndicator(report.Session.Status))
				b.WriteString(formatter.Dim(fmt.Sprintf("  %s since %s",
					report.Session.JobID, formatter.HumanTimestamp(report.Session.ClockInAt))))
				b.WriteString("\n")
			}

			fmt.Print(formatter.RenderBox("Week "+report.Range.Label, b.String()))
			return nil
		},
	}
}
