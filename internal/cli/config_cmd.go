package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print every setting and its value",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := app.Cfg
			rows := [][]string{
				{"db", c.DBPath},
				{"queue", c.QueuePath},
				{"subject", c.SubjectID},
				{"timezone", c.Timezone},
				{"week start", c.WeekStart},
				{"week target", formatter.FormatMinutes(c.WeekTargetMin)},
				{"max session", fmt.Sprintf("%.0fh", c.MaxSessionHours)},
				{"retry initial", c.RetryInitialDelay.String()},
				{"retry cap", c.RetryMaxDelay.String()},
				{"retry attempts", fmt.Sprintf("%d", c.RetryMaxAttempts)},
			}
			fmt.Print(formatter.RenderBox("Configuration",
				formatter.RenderTable([]string{"SETTING", "VALUE"}, rows)))
			return nil
		},
	})

	return cmd
}
