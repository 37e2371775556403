package cli

import (
	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/config"
	"github.com/nmckee/stint/internal/diag"
	"github.com/nmckee/stint/internal/notify"
	"github.com/nmckee/stint/internal/service"
)

// App holds references to the service interfaces used by CLI commands.
type App struct {
	Tracker service.TrackerService
	Reports service.ReportService
	Diag    *diag.Inspector
	Hub     *notify.Hub
	Cfg     config.Config

	// IsInteractive gates huh prompts; non-interactive runs must pass
	// --yes for anything that needs confirmation.
	IsInteractive func() bool
}

// NewRootCmd creates the top-level "stint" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "stint",
		Short:         "Week-bucketed time tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newClockCmd(app),
		newLogCmd(app),
		newEventCmd(app),
		newWeekCmd(app),
		newBackfillCmd(app),
		newQueueCmd(app),
		newDiagCmd(app),
		newWatchCmd(app),
		newConfigCmd(app),
		newExportCmd(app),
		newImportCmd(app),
	)

	return root
}
