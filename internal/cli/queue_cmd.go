package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
)

func newQueueCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the offline write queue",
	}

	cmd.AddCommand(newQueueListCmd(app), newQueueFlushCmd(app))
	return cmd
}

func newQueueListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			items := app.Diag.PendingWrites()
			if len(items) == 0 {
				fmt.Println("Queue is empty.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, it := range items {
				lastErr := it.LastError
				if lastErr == "" {
					lastErr = "-"
				}
				rows = append(rows, []string{
					formatter.TruncID(it.ID),
					string(it.Target),
					string(it.Op),
					fmt.Sprintf("%d", it.AttemptCount),
					formatter.HumanTimestamp(it.NextAttemptAt),
					formatter.Dim(lastErr),
				})
			}
			fmt.Print(formatter.RenderBox(
				fmt.Sprintf("Pending writes (%d)", len(items)),
				formatter.RenderTable([]string{"ID", "TARGET", "OP", "ATTEMPTS", "NEXT TRY", "LAST ERROR"}, rows)))
			return nil
		},
	}
}

func newQueueFlushCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Retry every pending write now",
		RunE: func(cmd *cobra.Command, args []string) error {
			res := app.Diag.FlushWrites(context.Background())
			fmt.Printf("Flushed: %d succeeded, %d failed, %d dropped\n",
				res.Succeeded, res.Failed, res.Dropped)
			if res.Dropped > 0 {
				fmt.Println(formatter.StyleRed.Render(
					"Dropped writes exhausted their retries; the data did not reach storage."))
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d writes still pending", res.Failed)
			}
			return nil
		},
	}
}
