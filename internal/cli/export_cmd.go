package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
	"github.com/nmckee/stint/internal/export"
)

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the event log as a portable JSON backup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := app.Diag.ExportEvents(context.Background())
			if err != nil {
				return err
			}

			if len(args) == 0 {
				data, err := json.MarshalIndent(doc, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if err := doc.WriteFile(args[0]); err != nil {
				return err
			}
			fmt.Printf("Exported %d events to %s\n", len(doc.Events), args[0])
			return nil
		},
	}
}

func newImportCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore events from a JSON backup",
		Long: `Restore events from a backup produced by "stint export". Events already
present in the log are skipped, so importing the same file twice changes
nothing. Week labels are assigned under the current timezone and
week-start settings, and touched weeks are recomputed afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := export.LoadDocument(args[0])
			if err != nil {
				return err
			}

			if errs := export.ValidateDocument(doc); len(errs) > 0 {
				for _, e := range errs {
					fmt.Println(formatter.StyleRed.Render("  " + e.Error()))
				}
				return fmt.Errorf("backup file has %d problems", len(errs))
			}

			ok, err := confirm(app, yes,
				fmt.Sprintf("Import %d events from %s?", len(doc.Events), args[0]),
				"Events already in the log are skipped.")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Cancelled.")
				return nil
			}

			summary, err := app.Diag.ImportEvents(context.Background(), doc)
			if err != nil {
				return err
			}

			fmt.Printf("Imported %d events, skipped %d already present.\n",
				summary.Imported, summary.Skipped)
			if len(summary.Weeks) > 0 {
				fmt.Printf("Recomputed weeks: %s\n", strings.Join(summary.Weeks, ", "))
			}
			return nil
		},
	}

	addYesFlag(cmd.Flags(), &yes)
	return cmd
}
