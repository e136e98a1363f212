package notify

import (
	"bytes"
	"strings"
	"testing"

	"boardsnap/internal/ledger"
	"boardsnap/internal/replay"

	"github.com/stretchr/testify/assert"
)

func TestTerminal_Notify(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Notify(replay.LevelInfo, "Importiere...")
	term.Notify(replay.LevelSuccess, "Import erfolgreich! (Legacy-Format)")
	term.Notify(replay.LevelError, "Import fehlgeschlagen: timeout")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "• Importiere...")
	assert.Contains(t, lines[1], "✓ Import erfolgreich!")
	assert.Contains(t, lines[2], "✗ Import fehlgeschlagen: timeout")
}

func TestTerminal_Summary(t *testing.T) {
	var buf bytes.Buffer
	NewTerminal(&buf).Summary(&ledger.Run{
		ID:       "run-1",
		Status:   ledger.StatusPartial,
		Snapshot: "out/board.json",
		Columns:  2, Cards: 3, Elements: 9,
		Issues: []ledger.Issue{{Severity: ledger.SeverityOmitted, Column: 0, Card: 1, Order: 4, Detail: "drawing: no option"}},
	})

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "2 columns, 3 cards, 9 elements")
	assert.Contains(t, out, "omitted col 1 card 2 el 4")
	assert.Contains(t, out, "drawing: no option")
}
