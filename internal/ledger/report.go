package ledger

import (
	"fmt"
	"strings"
	"time"
)

var severityTitles = map[Severity]string{
	SeverityFailedCard: "Failed cards",
	SeverityOmitted:    "Omitted elements",
	SeverityDegraded:   "Written as text",
	SeverityUnresolved: "Unresolved tools",
}

var severityOrder = []Severity{SeverityFailedCard, SeverityOmitted, SeverityDegraded, SeverityUnresolved}

// Markdown renders run as a markdown report.
func (r *Run) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s run %s\n\n", r.Kind, r.ID)
	fmt.Fprintf(&sb, "**%s** · %s\n\n", r.Status, r.Message)

	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Board | %s |\n", r.Board)
	if r.Snapshot != "" {
		fmt.Fprintf(&sb, "| Snapshot | `%s` |\n", r.Snapshot)
	}
	if r.Version != "" {
		fmt.Fprintf(&sb, "| Version | %s |\n", r.Version)
	}
	fmt.Fprintf(&sb, "| Started | %s |\n", r.Started.Local().Format(time.DateTime))
	fmt.Fprintf(&sb, "| Duration | %s |\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "| Columns / Cards / Elements | %d / %d / %d |\n", r.Columns, r.Cards, r.Elements)

	grouped := make(map[Severity][]Issue)
	for _, is := range r.Issues {
		grouped[is.Severity] = append(grouped[is.Severity], is)
	}
	for _, sev := range severityOrder {
		issues := grouped[sev]
		if len(issues) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s (%d)\n\n", severityTitles[sev], len(issues))
		for _, is := range issues {
			fmt.Fprintf(&sb, "- %s\n", is.location()+": "+is.Detail)
		}
	}
	return sb.String()
}

func (is Issue) location() string {
	loc := fmt.Sprintf("column %d, card %d", is.Column+1, is.Card+1)
	if is.CardTitle != "" {
		loc += fmt.Sprintf(" %q", is.CardTitle)
	}
	if is.Order > 0 {
		loc += fmt.Sprintf(", element %d", is.Order)
	}
	return loc
}
