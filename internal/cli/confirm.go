package cli

import (
	"errors"

	"github.com/charmbracelet/huh"
	"github.com/spf13/pflag"
)

// ErrNeedsTerminal is returned when a confirmation is required but stdin
// is not a terminal and --yes was not passed.
var ErrNeedsTerminal = errors.New("confirmation required: re-run interactively or pass --yes")

// confirm resolves a needs-confirmation outcome: --yes short-circuits,
// otherwise an interactive prompt decides. The decision is decoupled from
// the attempt itself (two-phase API), so declining has no side effects.
func confirm(app *App, assumeYes bool, title, description string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if app.IsInteractive == nil || !app.IsInteractive() {
		return false, ErrNeedsTerminal
	}

	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Save").
				Negative("Cancel").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// addYesFlag registers the shared --yes flag.
func addYesFlag(fs *pflag.FlagSet, yes *bool) {
	fs.BoolVar(yes, "yes", false, "Skip confirmation prompts")
}

// addJobFlag registers the shared --job flag.
func addJobFlag(fs *pflag.FlagSet, job *string) {
	fs.StringVar(job, "job", "general", "Job the time is billed to")
}
