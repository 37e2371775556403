package cli

import (
	"fmt"
	"io"

	"github.com/nmckee/stint/internal/cli/formatter"
	"github.com/nmckee/stint/internal/notify"
)

// SubscribeWarnings prints queue and cache warnings to w as they happen.
// Routine kinds (flush summaries, backfill progress) stay quiet here;
// the commands that trigger them report their own results.
func SubscribeWarnings(hub *notify.Hub, w io.Writer) func() {
	return hub.Subscribe(func(ev notify.Event) {
		switch ev.Kind {
		case notify.KindWriteQueued:
			fmt.Fprintln(w, formatter.StyleYellow.Render("! "+ev.Message))
		case notify.KindPermanentFailure:
			fmt.Fprintln(w, formatter.StyleRed.Render("! "+ev.Message))
		case notify.KindQueueSaveFailed:
			fmt.Fprintln(w, formatter.StyleYellow.Render("! "+ev.Message))
		case notify.KindDriftDetected:
			fmt.Fprintln(w, formatter.StyleYellow.Render("! "+ev.Message))
		}
	})
}
