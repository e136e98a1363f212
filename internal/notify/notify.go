// Package notify prints run progress to the terminal, the CLI counterpart
// of the board page's status toast.
package notify

import (
	"fmt"
	"io"
	"sync"

	"boardsnap/internal/ledger"
	"boardsnap/internal/replay"

	"github.com/charmbracelet/lipgloss"
)

var (
	Success     = lipgloss.Color("#8BC34A")
	Destructive = lipgloss.Color("#e53935")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
	Muted       = lipgloss.Color("#6b7280")
)

// Styles holds the notifier's lipgloss styles.
type Styles struct {
	Info    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Label   lipgloss.Style
}

// DefaultStyles returns the standard styles.
func DefaultStyles() Styles {
	return Styles{
		Info:    lipgloss.NewStyle().Foreground(Info),
		Success: lipgloss.NewStyle().Foreground(Success).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning),
		Muted:   lipgloss.NewStyle().Foreground(Muted),
		Label:   lipgloss.NewStyle().Bold(true).Width(10),
	}
}

// Terminal is a replay.Observer writing one styled line per notice.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
}

// NewTerminal creates a Terminal writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, styles: DefaultStyles()}
}

var icons = map[replay.Level]string{
	replay.LevelInfo:    "•",
	replay.LevelSuccess: "✓",
	replay.LevelError:   "✗",
}

// Notify implements replay.Observer.
func (t *Terminal) Notify(level replay.Level, msg string) {
	style := t.styles.Info
	switch level {
	case replay.LevelSuccess:
		style = t.styles.Success
	case replay.LevelError:
		style = t.styles.Error
	}
	icon, ok := icons[level]
	if !ok {
		icon = "•"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, style.Render(icon+" "+msg))
}

// Summary prints the outcome of run with its issues.
func (t *Terminal) Summary(run *ledger.Run) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.styles
	status := s.Success
	switch run.Status {
	case ledger.StatusPartial:
		status = s.Warning
	case ledger.StatusFailed:
		status = s.Error
	}

	fmt.Fprintln(t.w)
	fmt.Fprintln(t.w, s.Label.Render("Run")+s.Muted.Render(run.ID))
	fmt.Fprintln(t.w, s.Label.Render("Status")+status.Render(string(run.Status)))
	if run.Snapshot != "" {
		fmt.Fprintln(t.w, s.Label.Render("Snapshot")+run.Snapshot)
	}
	fmt.Fprintln(t.w, s.Label.Render("Totals")+
		fmt.Sprintf("%d columns, %d cards, %d elements", run.Columns, run.Cards, run.Elements))
	for _, is := range run.Issues {
		line := fmt.Sprintf("  %s col %d card %d", is.Severity, is.Column+1, is.Card+1)
		if is.Order > 0 {
			line += fmt.Sprintf(" el %d", is.Order)
		}
		fmt.Fprintln(t.w, s.Warning.Render(line)+" "+s.Muted.Render(is.Detail))
	}
}
