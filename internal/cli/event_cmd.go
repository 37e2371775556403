package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
)

func newEventCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Inspect and edit logged time events",
	}

	cmd.AddCommand(
		newEventListCmd(app),
		newEventNoteCmd(app),
		newEventAmendCmd(app),
		newEventRemoveCmd(app),
	)

	return cmd
}

func newEventListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List this week's events",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.Reports.CurrentWeek(context.Background())
			if err != nil {
				return err
			}
			if len(report.Events) == 0 {
				fmt.Println("No events this week.")
				return nil
			}

			headers := []string{"ID", "JOB", "START", "DURATION", "NOTE"}
			rows := make([][]string, 0, len(report.Events))
			for _, e := range report.Events {
				note := e.Note
				if len(note) > 40 {
					note = note[:37] + "..."
				}
				rows = append(rows, []string{
					formatter.TruncID(e.ID),
					e.JobID,
					formatter.HumanTimestamp(e.StartAt),
					formatter.FormatMinutes(e.DurationMin),
					formatter.Dim(note),
				})
			}
			fmt.Print(formatter.RenderBox("Events "+report.Range.Label, formatter.RenderTable(headers, rows)))
			return nil
		},
	}
}

func newEventNoteCmd(app *App) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "note <event-id>",
		Short: "Replace an event's note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Tracker.AnnotateEvent(context.Background(), args[0], note); err != nil {
				return err
			}
			fmt.Println("Note updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "New note text")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}

func newEventAmendCmd(app *App) *cobra.Command {
	var job, from, to string

	cmd := &cobra.Command{
		Use:   "amend <event-id>",
		Short: "Rewrite an event's job or time span",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startAt, err := parseWhen(app, from)
			if err != nil {
				return fmt.Errorf("parsing --from: %w", err)
			}
			endAt, err := parseWhen(app, to)
			if err != nil {
				return fmt.Errorf("parsing --to: %w", err)
			}

			ev, err := app.Tracker.AmendEvent(context.Background(), args[0], job, startAt, endAt)
			if err != nil {
				return err
			}
			fmt.Printf("Amended: %s on %s (week %s)\n",
				formatter.FormatMinutes(ev.DurationMin), ev.JobID, ev.WeekLabel)
			return nil
		},
	}

	cmd.Flags().StringVar(&job, "job", "", "New job (empty keeps the current one)")
	cmd.Flags().StringVar(&from, "from", "", "New start time")
	cmd.Flags().StringVar(&to, "to", "", "New end time")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newEventRemoveCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm <event-id>",
		Short: "Soft-delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := confirm(app, yes, "Delete this event?", "The event is kept in the log but excluded from totals.")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Kept.")
				return nil
			}

			res, err := app.Tracker.RemoveEvent(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Removed %s (%s on %s)\n",
				formatter.TruncID(res.Event.ID), formatter.FormatMinutes(res.Event.DurationMin), res.Event.JobID)
			if res.Queued {
				fmt.Println(formatter.StyleYellow.Render(
					"Storage is unavailable; the deletion is queued and will apply automatically."))
			}
			return nil
		},
	}

	addYesFlag(cmd.Flags(), &yes)
	return cmd
}
