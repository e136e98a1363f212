// Package runner ties a live board page to the export and import pipelines
// and records every run in the ledger. The CLI, the panel loop, the inbox
// watcher and the HTTP API all go through it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"boardsnap/internal/board"
	"boardsnap/internal/config"
	"boardsnap/internal/ledger"
	"boardsnap/internal/locator"
	"boardsnap/internal/logging"
	"boardsnap/internal/replay"
	"boardsnap/internal/resolver"
	"boardsnap/internal/snapshot"
	"boardsnap/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("boardsnap/runner")

// Page is a live board page that can be exported from and imported into.
type Page interface {
	locator.Surface
	Capture(ctx context.Context) (*html.Node, error)
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// Runner executes exports and imports against board pages.
type Runner struct {
	cfg      *config.Config
	ledger   *ledger.Ledger
	observer replay.Observer
	client   resolver.Doer
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLedger records every run in l.
func WithLedger(l *ledger.Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithObserver forwards progress notices to o.
func WithObserver(o replay.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithHTTPClient sets the client used for tool identity lookups.
func WithHTTPClient(c resolver.Doer) Option {
	return func(r *Runner) { r.client = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) notify(level replay.Level, msg string) {
	if r.observer != nil {
		r.observer.Notify(level, msg)
	}
}

// Export captures page, resolves external tool ids and writes the snapshot
// to target (a directory or s3:// location; empty means the configured
// output). The returned run is non-nil even when err is set.
func (r *Runner) Export(ctx context.Context, page Page, boardURL, target string) (*ledger.Run, error) {
	ctx, span := tracer.Start(ctx, "runner.Export", trace.WithAttributes(attribute.String("board.url", boardURL)))
	defer span.End()

	started := r.now()
	r.notify(replay.LevelInfo, "Exportiere...")

	doc, rep, location, err := r.export(ctx, page, target)
	run := ledger.FromExport(boardURL, location, doc, rep, err, started, r.now())
	r.record(ctx, run)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		logging.Get(logging.CategoryExport).Error("export failed: %v", err)
		r.notify(replay.LevelError, "Export fehlgeschlagen: "+err.Error())
		return run, err
	}
	span.SetAttributes(
		attribute.Int("export.elements", rep.Totals.Elements),
		attribute.Int("export.issues", len(rep.Issues)),
	)
	logging.Export("%s -> %s", rep.Message(), location)
	r.notify(replay.LevelSuccess, rep.Message())
	return run, nil
}

func (r *Runner) export(ctx context.Context, page Page, target string) (*board.Document, snapshot.Report, string, error) {
	root, err := page.Capture(ctx)
	if err != nil {
		return nil, snapshot.Report{}, "", fmt.Errorf("capture board: %w", err)
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		logging.ExportWarn("no session cookies for tool lookups: %v", err)
	}
	res := resolver.New(resolver.Options{
		BaseURL: r.cfg.NBC.BaseURL,
		Token:   r.cfg.NBC.Token,
		Cookies: cookies,
		Timeout: r.cfg.GetRequestTimeout(),
		Client:  r.client,
	})

	doc, rep := snapshot.NewSerializer(res, snapshot.WithClock(r.now)).Serialize(ctx, root)
	if err := ctx.Err(); err != nil {
		return doc, rep, "", err
	}
	data, err := snapshot.Marshal(doc)
	if err != nil {
		return doc, rep, "", err
	}

	st, err := store.Open(ctx, r.cfg.Store, target)
	if err != nil {
		return doc, rep, "", err
	}
	location, err := st.Save(ctx, snapshot.FileName(r.now()), data)
	if err != nil {
		return doc, rep, "", err
	}
	return doc, rep, location, nil
}

// Import loads the snapshot at ref (a file path or s3:// key) and replays it
// onto page.
func (r *Runner) Import(ctx context.Context, page locator.Surface, boardURL, ref string) (*ledger.Run, error) {
	data, err := store.Load(ctx, r.cfg.Store, ref)
	if err != nil {
		now := r.now()
		run := ledger.FromImport(boardURL, ref, nil, err, now, now)
		r.record(ctx, run)
		r.notify(replay.LevelError, "Import fehlgeschlagen: "+err.Error())
		return run, err
	}
	return r.ImportData(ctx, page, boardURL, ref, data)
}

// ImportData replays an in-memory snapshot. name labels it in the ledger.
func (r *Runner) ImportData(ctx context.Context, page locator.Surface, boardURL, name string, data []byte) (*ledger.Run, error) {
	started := r.now()

	im, err := snapshot.Parse(data)
	if err != nil {
		run := ledger.FromImport(boardURL, name, nil, err, started, r.now())
		r.record(ctx, run)
		if errors.Is(err, snapshot.ErrNoColumns) {
			r.notify(replay.LevelError, "Keine Spalten in der Datei")
		} else {
			r.notify(replay.LevelError, "Import fehlgeschlagen: "+err.Error())
		}
		return run, err
	}

	engine := replay.New(page,
		replay.WithTiming(r.cfg.GetTiming()),
		replay.WithObserver(r.observer),
	)
	res, err := engine.Import(ctx, im)
	run := ledger.FromImport(boardURL, name, res, err, started, r.now())
	r.record(ctx, run)
	return run, err
}

// record writes run to the ledger. Ledger failures never fail the run.
func (r *Runner) record(ctx context.Context, run *ledger.Run) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Record(context.WithoutCancel(ctx), run); err != nil {
		logging.Get(logging.CategoryLedger).Warn("failed to record %s run: %v", run.Kind, err)
	}
}
