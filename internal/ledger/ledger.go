// Package ledger keeps a SQLite history of export and import runs together
// with the cards and elements that did not come through cleanly.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"boardsnap/internal/logging"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no run matches.
var ErrNotFound = errors.New("run not found")

// Kind is the direction of a run.
type Kind string

const (
	KindExport Kind = "export"
	KindImport Kind = "import"
)

// Status is the outcome of a run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Severity classifies an issue.
type Severity string

const (
	SeverityFailedCard Severity = "failed_card"
	SeverityOmitted    Severity = "omitted"
	SeverityDegraded   Severity = "degraded"
	SeverityUnresolved Severity = "unresolved"
)

// Issue is one card or element that did not come through cleanly.
type Issue struct {
	Severity  Severity `json:"severity"`
	Column    int      `json:"column"`
	Card      int      `json:"card"`
	Order     int      `json:"order,omitempty"`
	CardTitle string   `json:"cardTitle"`
	Detail    string   `json:"detail"`
}

// Run is one recorded export or import.
type Run struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Board    string    `json:"board"`
	Snapshot string    `json:"snapshot"`
	Version  string    `json:"version,omitempty"`
	Status   Status    `json:"status"`
	Message  string    `json:"message"`
	Columns  int       `json:"columns"`
	Cards    int       `json:"cards"`
	Elements int       `json:"elements"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	// IssueCount is filled by List; Get loads Issues instead.
	IssueCount int     `json:"issueCount"`
	Issues     []Issue `json:"issues,omitempty"`
}

// Duration is how long the run took.
func (r *Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Ledger is the run history database.
type Ledger struct {
	db   *sql.DB
	path string
	log  *logging.Logger
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, path: path, log: logging.Get(logging.CategoryLedger)}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	l.log.Debug("ledger opened at %s", path)
	return l, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		board TEXT NOT NULL,
		snapshot TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		columns INTEGER NOT NULL DEFAULT 0,
		cards INTEGER NOT NULL DEFAULT 0,
		elements INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		severity TEXT NOT NULL,
		column_idx INTEGER NOT NULL,
		card_idx INTEGER NOT NULL,
		element_order INTEGER NOT NULL DEFAULT 0,
		card_title TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file.
func (l *Ledger) Path() string { return l.path }

// Record stores run and its issues. An empty ID gets a fresh UUID.
func (l *Ledger) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, board, snapshot, version, status, message, columns, cards, elements, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Board, run.Snapshot, run.Version, string(run.Status), run.Message,
		run.Columns, run.Cards, run.Elements, formatTime(run.Started), formatTime(run.Finished))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, is := range run.Issues {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO issues (run_id, severity, column_idx, card_idx, element_order, card_title, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, string(is.Severity), is.Column, is.Card, is.Order, is.CardTitle, is.Detail)
		if err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	run.IssueCount = len(run.Issues)
	l.log.Info("recorded %s run %s (%s, %d issues)", run.Kind, run.ID, run.Status, len(run.Issues))
	return nil
}

const runColumns = `r.id, r.kind, r.board, r.snapshot, r.version, r.status, r.message,
	r.columns, r.cards, r.elements, r.started_at, r.finished_at`

// List returns the most recent runs first. limit <= 0 means all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + `, (SELECT COUNT(*) FROM issues i WHERE i.run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC, r.id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := scanRun(rows, &run, &run.IssueCount); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get loads one run with its issues. id may be a unique prefix.
func (l *Ledger) Get(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r WHERE r.id = ? OR r.id LIKE ? ESCAPE '\' LIMIT 2`,
		id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		var run Run
		if err := scanRun(rows, &run); err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var run *Run
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	case len(matches) == 1:
		run = &matches[0]
	default:
		for i := range matches {
			if matches[i].ID == id {
				run = &matches[i]
			}
		}
		if run == nil {
			return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
		}
	}

	issues, err := l.issues(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Issues = issues
	run.IssueCount = len(issues)
	return run, nil
}

func (l *Ledger) issues(ctx context.Context, runID string) ([]Issue, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT severity, column_idx, card_idx, element_order, card_title, detail
		FROM issues WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}
	defer rows.Close()

	var out []Issue
	for rows.Next() {
		var is Issue
		var sev string
		if err := rows.Scan(&sev, &is.Column, &is.Card, &is.Order, &is.CardTitle, &is.Detail); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		is.Severity = Severity(sev)
		out = append(out, is)
	}
	return out, rows.Err()
}

func scanRun(rows *sql.Rows, run *Run, extra ...interface{}) error {
	var kind, status, started, finished string
	dest := []interface{}{&run.ID, &kind, &run.Board, &run.Snapshot, &run.Version, &status, &run.Message,
		&run.Columns, &run.Cards, &run.Elements, &started, &finished}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return fmt.Errorf("scan run: %w", err)
	}
	run.Kind = Kind(kind)
	run.Status = Status(status)
	run.Started = parseTime(started)
	run.Finished = parseTime(finished)
	return nil
}

// timeLayout has a fixed-width fraction so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
