package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"boardsnap/internal/board"
	"boardsnap/internal/replay"
	"boardsnap/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestLedger_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)

	run := &Run{
		Kind:     KindImport,
		Board:    "https://niedersachsen.cloud/boards/abc",
		Snapshot: "board-export-v8.7-x.json",
		Version:  "8.7",
		Status:   StatusPartial,
		Message:  "Import erfolgreich! 3 Elemente importiert. (v8.7)",
		Columns:  1,
		Cards:    2,
		Elements: 3,
		Started:  t0,
		Finished: t0.Add(1500 * time.Millisecond),
		Issues: []Issue{
			{Severity: SeverityDegraded, Column: 0, Card: 1, Order: 2, CardTitle: "Tools", Detail: "file: no add control"},
			{Severity: SeverityOmitted, Column: 0, Card: 1, Order: 3, CardTitle: "Tools", Detail: "drawing: not found"},
		},
	}
	require.NoError(t, l.Record(ctx, run))
	require.NotEmpty(t, run.ID)
	assert.Equal(t, 2, run.IssueCount)

	got, err := l.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Board, got.Board)
	assert.Equal(t, StatusPartial, got.Status)
	assert.True(t, got.Started.Equal(t0))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
	assert.Equal(t, run.Issues, got.Issues)

	byPrefix, err := l.Get(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, byPrefix.ID)

	_, err = l.Get(ctx, "ffffffff-0000")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Get(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		start := t0.Add(time.Duration(i) * time.Minute)
		run := &Run{ID: id, Kind: KindExport, Board: "b", Status: StatusOK, Started: start, Finished: start}
		if id == "run-b" {
			run.Issues = []Issue{{Severity: SeverityUnresolved, Detail: "Film: EXTRACTION_FAILED"}}
		}
		require.NoError(t, l.Record(ctx, run))
	}

	runs, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"run-c", "run-b", "run-a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, 1, runs[1].IssueCount)
	assert.Nil(t, runs[1].Issues)

	limited, err := l.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = l.Get(ctx, "run-")
	assert.ErrorContains(t, err, "ambiguous")
}

func TestLedger_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, &Run{ID: "keep", Kind: KindExport, Status: StatusOK, Started: t0, Finished: t0}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	got, err := l.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, KindExport, got.Kind)
}

func TestFromExport(t *testing.T) {
	rep := snapshot.Report{
		Totals: board.Totals{Columns: 2, Cards: 3, Elements: 7, ExternalTools: 1},
		Issues: []snapshot.Issue{{Column: 1, Card: 0, Order: 2, CardTitle: "Tools", DisplayName: "Film ab", ToolID: "EXTRACTION_FAILED"}},
	}
	run := FromExport("https://b", "out/x.json", &board.Document{Version: "8.7"}, rep, nil, t0, t0)
	assert.Equal(t, StatusPartial, run.Status)
	assert.Equal(t, "8.7", run.Version)
	assert.Equal(t, 7, run.Elements)
	require.Len(t, run.Issues, 1)
	assert.Equal(t, SeverityUnresolved, run.Issues[0].Severity)
	assert.Equal(t, "Film ab: EXTRACTION_FAILED", run.Issues[0].Detail)
	assert.Equal(t, rep.Message(), run.Message)

	failed := FromExport("https://b", "", nil, snapshot.Report{}, errors.New("navigation timeout"), t0, t0)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "navigation timeout", failed.Message)
}

func TestFromImport(t *testing.T) {
	res := &replay.Result{
		Version:         "8.7",
		ColumnsCreated:  1,
		CardsCreated:    1,
		ElementsCreated: 2,
		FailedCards:     []replay.CardFailure{{Column: 0, Card: 1, Title: "Zwei", Reason: "no add-card control"}},
		Omitted:         []replay.ElementIssue{{Column: 0, Card: 0, Order: 3, CardTitle: "Eins", Kind: board.KindDrawing, Reason: "no option"}},
		Message:         "Import erfolgreich! 2 Elemente importiert. (v8.7)",
	}
	run := FromImport("https://b", "x.json", res, nil, t0, t0)
	assert.Equal(t, StatusPartial, run.Status)
	require.Len(t, run.Issues, 2)
	assert.Equal(t, SeverityFailedCard, run.Issues[0].Severity)
	assert.Equal(t, SeverityOmitted, run.Issues[1].Severity)
	assert.Contains(t, run.Issues[1].Detail, "no option")

	clean := FromImport("https://b", "x.json", &replay.Result{Message: "ok"}, nil, t0, t0)
	assert.Equal(t, StatusOK, clean.Status)

	phaseErr := &replay.PhaseError{Column: 2, Title: "Woche 3", Err: errors.New("no title field")}
	failed := FromImport("https://b", "x.json", &replay.Result{}, phaseErr, t0, t0)
	assert.Equal(t, StatusFailed, failed.Status)
	require.Len(t, failed.Issues, 1)
	assert.Equal(t, 2, failed.Issues[0].Column)
}

func TestRun_Markdown(t *testing.T) {
	run := &Run{
		ID: "abc", Kind: KindImport, Board: "https://b", Snapshot: "x.json", Status: StatusPartial,
		Message: "Import erfolgreich!", Started: t0, Finished: t0.Add(time.Second),
		Issues: []Issue{
			{Severity: SeverityDegraded, Column: 0, Card: 0, Order: 2, CardTitle: "Eins", Detail: "file: fallback"},
			{Severity: SeverityFailedCard, Column: 1, Card: 0, CardTitle: "Zwei", Detail: "timeout"},
		},
	}
	md := run.Markdown()
	assert.Contains(t, md, "# import run abc")
	assert.Contains(t, md, "| Snapshot | `x.json` |")
	assert.Contains(t, md, "## Failed cards (1)")
	assert.Contains(t, md, `- column 1, card 1 "Eins", element 2: file: fallback`)
	assert.Less(t, strings.Index(md, "Failed cards"), strings.Index(md, "Written as text"))
}
