package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
	"github.com/nmckee/stint/internal/service"
	"github.com/nmckee/stint/internal/session"
)

func newLogCmd(app *App) *cobra.Command {
	var job, from, to, note string
	var yes bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a past work period directly",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			startAt, err := parseWhen(app, from)
			if err != nil {
				return fmt.Errorf("parsing --from: %w", err)
			}
			endAt, err := parseWhen(app, to)
			if err != nil {
				return fmt.Errorf("parsing --to: %w", err)
			}

			outcome, err := app.Tracker.LogManual(ctx, service.ManualEntry{
				JobID:   job,
				StartAt: startAt,
				EndAt:   endAt,
				Note:    note,
			})
			if err != nil {
				return err
			}

			switch outcome.Status {
			case session.DecisionBlocked:
				return fmt.Errorf("entry rejected: end is not after start")

			case session.DecisionNeedsConfirmation:
				detail := "This entry rounds down to 0 minutes."
				if outcome.Pending.Reason == session.ReasonOverlong {
					detail = fmt.Sprintf("This entry spans %.1f hours, %.1f over the usual limit.",
						outcome.Verdict.Hours, outcome.Verdict.ExceedsByHours)
				}
				ok, err := confirm(app, yes, "Save this entry?", detail)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Entry discarded.")
					return nil
				}
				outcome, err = app.Tracker.ConfirmManual(ctx, outcome.Pending)
				if err != nil {
					return err
				}
			}

			fmt.Printf("Logged %s on %s (week %s)\n",
				formatter.FormatMinutes(outcome.Event.DurationMin), outcome.Event.JobID, outcome.Event.WeekLabel)
			if outcome.Queued {
				fmt.Println(formatter.StyleYellow.Render(
					"Storage is unavailable; the entry is queued and will be saved automatically."))
			}
			return nil
		},
	}

	addJobFlag(cmd.Flags(), &job)
	addYesFlag(cmd.Flags(), &yes)
	cmd.Flags().StringVar(&from, "from", "", "Start time (RFC3339 or '2006-01-02 15:04' local)")
	cmd.Flags().StringVar(&to, "to", "", "End time (RFC3339 or '2006-01-02 15:04' local)")
	cmd.Flags().StringVar(&note, "note", "", "Free-text note")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// parseWhen accepts RFC3339 or a local wall-clock "2006-01-02 15:04"
// interpreted in the configured timezone.
func parseWhen(app *App, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	conv, err := app.Cfg.Convention()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, conv.Location())
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
