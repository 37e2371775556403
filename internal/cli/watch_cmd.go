package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nmckee/stint/internal/cli/formatter"
	"github.com/nmckee/stint/internal/service"
)

func newWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of the running session and week totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.IsInteractive() {
				return ErrNeedsTerminal
			}
			p := tea.NewProgram(newWatchModel(app), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
}

// watchTickMsg drives the once-a-second refresh.
type watchTickMsg time.Time

// watchReportMsg carries a freshly loaded week report.
type watchReportMsg struct {
	report *service.WeekReport
	err    error
}

type watchModel struct {
	app     *App
	spin    spinner.Model
	report  *service.WeekReport
	loadErr error
	now     time.Time
}

func newWatchModel(app *App) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = formatter.StyleGreen
	return watchModel{app: app, spin: sp, now: time.Now()}
}

func watchTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) loadReport() tea.Cmd {
	return func() tea.Msg {
		report, err := m.app.Reports.CurrentWeek(context.Background())
		return watchReportMsg{report: report, err: err}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.loadReport(), watchTick())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case watchTickMsg:
		m.now = time.Time(msg)
		return m, tea.Batch(m.loadReport(), watchTick())

	case watchReportMsg:
		m.report = msg.report
		m.loadErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.loadErr != nil {
		return formatter.StyleRed.Render("error: "+m.loadErr.Error()) + "\n" +
			formatter.Dim("q to quit") + "\n"
	}
	if m.report == nil {
		return m.spin.View() + " loading...\n"
	}

	var b strings.Builder

	if s := m.report.Session; s != nil {
		elapsed := m.now.Sub(s.ClockInAt) - s.AccumulatedBreak
		if br := s.OpenBreak(); br != nil {
			elapsed -= m.now.Sub(br.StartAt)
		}
		if elapsed < 0 {
			elapsed = 0
		}
		b.WriteString(fmt.Sprintf("%s %s  %s  %s\n\n",
			m.spin.View(),
			formatter.StatusIndicator(s.Status),
			formatter.StyleBold.Render(s.JobID),
			formatter.FormatElapsed(elapsed)))
	} else {
		b.WriteString(formatter.Dim("No active session.") + "\n\n")
	}

	total := m.report.Snapshot.TotalMin
	target := m.report.Snapshot.TargetMin
	b.WriteString(fmt.Sprintf("Week %s: %s of %s\n",
		m.report.Range.Label,
		formatter.StyleBold.Render(formatter.FormatMinutes(total)),
		formatter.FormatMinutes(target)))
	if target > 0 {
		b.WriteString(formatter.RenderProgress(float64(total)/float64(target), 30))
		b.WriteString("\n")
	}

	b.WriteString("\n" + formatter.Dim("q to quit") + "\n")
	return b.String()
}
