package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/session"
)

func newClockCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Clock in, out, and manage breaks",
	}

	cmd.AddCommand(
		newClockInCmd(app),
		newClockOutCmd(app),
		newBreakCmd(app),
		newResumeCmd(app),
		newClockStatusCmd(app),
	)

	return cmd
}

func newClockInCmd(app *App) *cobra.Command {
	var job string

	cmd := &cobra.Command{
		Use:   "in",
		Short: "Start a work session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.Tracker.ClockIn(context.Background(), job)
			if err != nil {
				return err
			}
			fmt.Printf("Clocked in to %s at %s\n", s.JobID, formatter.HumanTimestamp(s.ClockInAt))
			return nil
		},
	}

	addJobFlag(cmd.Flags(), &job)
	return cmd
}

func newClockOutCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "out",
		Short: "End the current work session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			outcome, err := app.Tracker.ClockOut(ctx)
			if err != nil {
				return err
			}

			switch outcome.Status {
			case session.DecisionBlocked:
				return fmt.Errorf("clock-out blocked: end would be before start; session unchanged")

			case session.DecisionNeedsConfirmation:
				ok, err := confirm(app, yes, "Save this session?", confirmDetails(outcome.Decision))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Clock-out cancelled; session unchanged.")
					return nil
				}
				res, err := app.Tracker.ConfirmClockOut(ctx, outcome.Pending)
				if err != nil {
					return err
				}
				printClockOut(res.Event, res.Queued)
				return nil

			default:
				printClockOut(outcome.Result.Event, outcome.Result.Queued)
				return nil
			}
		},
	}

	addYesFlag(cmd.Flags(), &yes)
	return cmd
}

func confirmDetails(d session.ClockOutDecision) string {
	if d.Reason == session.ReasonZeroDuration {
		return "This session rounds down to 0 minutes of work."
	}
	return fmt.Sprintf("This session ran %.1f hours, %.1f over the usual limit.",
		d.Verdict.Hours, d.Verdict.ExceedsByHours)
}

func printClockOut(ev *domain.TimeEvent, queued bool) {
	fmt.Printf("Clocked out: %s on %s (week %s)\n",
		formatter.FormatMinutes(ev.DurationMin), ev.JobID, ev.WeekLabel)
	if queued {
		fmt.Println(formatter.StyleYellow.Render(
			"Storage is unavailable; the session is queued and will be saved automatically."))
	}
}

func newBreakCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "break",
		Short: "Start a break",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.Tracker.StartBreak(context.Background())
			if err != nil {
				return err
			}
			br := s.OpenBreak()
			fmt.Printf("On break since %s\n", formatter.HumanTimestamp(br.StartAt))
			return nil
		},
	}
}

func newResumeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "End the current break",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.Tracker.EndBreak(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Back to work (%s of break so far)\n",
				formatter.FormatElapsed(s.AccumulatedBreak))
			return nil
		},
	}
}

func newClockStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.Tracker.ActiveSession(context.Background())
			if err != nil {
				return err
			}
			if s == nil {
				fmt.Println("Not clocked in.")
				return nil
			}
			fmt.Print(formatter.RenderBox("Session", renderSession(s, time.Now().UTC())))
			return nil
		},
	}
}

func renderSession(s *domain.WorkSession, now time.Time) string {
	elapsed := now.Sub(s.ClockInAt)
	breaks := s.AccumulatedBreak
	if br := s.OpenBreak(); br != nil {
		breaks += now.Sub(br.StartAt)
	}
	work := elapsed - breaks
	if work < 0 {
		work = 0
	}

	rows := [][]string{
		{"Status", formatter.StatusIndicator(s.Status)},
		{"Job", s.JobID},
		{"Since", formatter.HumanTimestamp(s.ClockInAt)},
		{"Worked", formatter.FormatElapsed(work)},
		{"Breaks", formatter.FormatElapsed(breaks)},
	}
	out := ""
	for _, r := range rows {
		out += formatter.Dim(r[0]) + "  " + r[1] + "\n"
	}
	return out
}
