package ledger

import (
	"errors"
	"fmt"
	"time"

	"boardsnap/internal/board"
	"boardsnap/internal/replay"
	"boardsnap/internal/snapshot"
)

// FromExport builds the ledger entry for an export. location is where the
// snapshot was written, empty when the export failed before saving.
func FromExport(boardURL, location string, doc *board.Document, rep snapshot.Report, err error, started, finished time.Time) *Run {
	run := &Run{
		Kind:     KindExport,
		Board:    boardURL,
		Snapshot: location,
		Version:  board.FormatVersion,
		Columns:  rep.Totals.Columns,
		Cards:    rep.Totals.Cards,
		Elements: rep.Totals.Elements,
		Started:  started,
		Finished: finished,
	}
	if doc != nil && doc.Version != "" {
		run.Version = doc.Version
	}
	for _, is := range rep.Issues {
		run.Issues = append(run.Issues, Issue{
			Severity:  SeverityUnresolved,
			Column:    is.Column,
			Card:      is.Card,
			Order:     is.Order,
			CardTitle: is.CardTitle,
			Detail:    fmt.Sprintf("%s: %s", is.DisplayName, is.ToolID),
		})
	}

	switch {
	case err != nil:
		run.Status = StatusFailed
		run.Message = err.Error()
	case len(run.Issues) > 0:
		run.Status = StatusPartial
		run.Message = rep.Message()
	default:
		run.Status = StatusOK
		run.Message = rep.Message()
	}
	return run
}

// FromImport builds the ledger entry for an import. res may be nil when the
// snapshot could not be read.
func FromImport(boardURL, ref string, res *replay.Result, err error, started, finished time.Time) *Run {
	run := &Run{
		Kind:     KindImport,
		Board:    boardURL,
		Snapshot: ref,
		Started:  started,
		Finished: finished,
	}
	if res != nil {
		run.Version = res.Version
		run.Columns = res.ColumnsCreated
		run.Cards = res.CardsCreated
		run.Elements = res.ElementsCreated
		run.Message = res.Message
		for _, f := range res.FailedCards {
			run.Issues = append(run.Issues, Issue{
				Severity:  SeverityFailedCard,
				Column:    f.Column,
				Card:      f.Card,
				CardTitle: f.Title,
				Detail:    f.Reason,
			})
		}
		run.Issues = appendElementIssues(run.Issues, SeverityOmitted, res.Omitted)
		run.Issues = appendElementIssues(run.Issues, SeverityDegraded, res.Degraded)
	}

	var phase *replay.PhaseError
	switch {
	case err != nil:
		run.Status = StatusFailed
		run.Message = err.Error()
		if errors.As(err, &phase) {
			run.Issues = append(run.Issues, Issue{
				Severity:  SeverityFailedCard,
				Column:    phase.Column,
				CardTitle: phase.Title,
				Detail:    phase.Err.Error(),
			})
		}
	case res != nil && !res.Clean():
		run.Status = StatusPartial
	default:
		run.Status = StatusOK
	}
	return run
}

func appendElementIssues(dst []Issue, sev Severity, src []replay.ElementIssue) []Issue {
	for _, e := range src {
		dst = append(dst, Issue{
			Severity:  sev,
			Column:    e.Column,
			Card:      e.Card,
			Order:     e.Order,
			CardTitle: e.CardTitle,
			Detail:    fmt.Sprintf("%s: %s", e.Kind, e.Reason),
		})
	}
	return dst
}
