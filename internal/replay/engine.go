// Package replay rebuilds a board from a snapshot by driving the board's own
// editing UI, one simulated interaction at a time.
//
// Import runs in two phases. Phase one creates every column; any failure there
// is fatal. Phase two fills the columns card by card, isolating failures to
// the card or element they occur in.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"boardsnap/internal/board"
	"boardsnap/internal/config"
	"boardsnap/internal/locator"
	"boardsnap/internal/logging"
	"boardsnap/internal/snapshot"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("boardsnap/replay")

// PhaseError is the fatal failure of the column phase.
type PhaseError struct {
	Column int
	Title  string
	Err    error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("create column %d %q: %v", e.Column+1, e.Title, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Level classifies an observer notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Observer receives progress notices during an import.
type Observer interface {
	Notify(level Level, msg string)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(level Level, msg string)

// Notify implements Observer.
func (f ObserverFunc) Notify(level Level, msg string) { f(level, msg) }

// CardFailure records a card that could not be created or filled.
type CardFailure struct {
	Column int
	Card   int
	Title  string
	Reason string
}

// ElementIssue records an element that was dropped or written as text.
type ElementIssue struct {
	Column    int
	Card      int
	CardTitle string
	Order     int
	Kind      board.Kind
	Reason    string
}

// Result summarizes an import.
type Result struct {
	Version         string
	ColumnsCreated  int
	CardsCreated    int
	ElementsCreated int
	FailedCards     []CardFailure
	// Omitted elements are missing from the board.
	Omitted []ElementIssue
	// Degraded elements exist only as text in an editor.
	Degraded []ElementIssue
	Message  string
}

// Clean reports whether every card and element landed as intended.
func (r *Result) Clean() bool {
	return len(r.FailedCards) == 0 && len(r.Omitted) == 0 && len(r.Degraded) == 0
}

// Engine replays snapshots onto one board page.
type Engine struct {
	surface  locator.Surface
	timing   config.Timing
	observer Observer
	log      *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTiming sets the settle delays.
func WithTiming(t config.Timing) Option {
	return func(e *Engine) { e.timing = t }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine driving s. Without WithTiming the default delays
// apply.
func New(s locator.Surface, opts ...Option) *Engine {
	e := &Engine{
		surface: s,
		timing:  config.DefaultTiming().Resolve(),
		log:     logging.Get(logging.CategoryReplay),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) notify(level Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if level == LevelError {
		e.log.Error("%s", msg)
	} else {
		e.log.Info("%s", msg)
	}
	if e.observer != nil {
		e.observer.Notify(level, msg)
	}
}

// Import replays im onto the page. The returned error is non-nil only for a
// fatal column failure or cancellation; per-card and per-element problems
// are reported in the Result.
func (e *Engine) Import(ctx context.Context, im *snapshot.Import) (*Result, error) {
	ctx, span := tracer.Start(ctx, "replay.Import", trace.WithAttributes(
		attribute.String("snapshot.version", im.Version),
		attribute.Int("snapshot.columns", len(im.Columns)),
	))
	defer span.End()

	res := &Result{Version: im.Version}
	if len(im.Columns) == 0 {
		return res, snapshot.ErrNoColumns
	}

	e.notify(LevelInfo, "Importiere...")
	e.logDeclared(im)

	if err := e.buildColumns(ctx, im.Columns, res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "column phase failed")
		e.notify(LevelError, "Import fehlgeschlagen: %v", err)
		return res, err
	}

	if err := e.fillCards(ctx, im.Columns, res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return res, err
	}

	res.Message = im.Message()
	span.SetAttributes(
		attribute.Int("replay.cards", res.CardsCreated),
		attribute.Int("replay.elements", res.ElementsCreated),
		attribute.Int("replay.failed_cards", len(res.FailedCards)),
	)
	e.notify(LevelSuccess, "%s", res.Message)
	return res, nil
}

func (e *Engine) logDeclared(im *snapshot.Import) {
	e.log.Info("import version %s", im.Version)
	d := im.Declared
	if d.Files > 0 {
		e.log.Info("declared: %d columns, %d cards, %d files", d.Columns, d.Cards, d.Files)
	}
	if d.Links > 0 {
		e.log.Info("declared: %d links", d.Links)
	}
	if d.VideoConferences > 0 {
		e.log.Info("declared: %d video conferences", d.VideoConferences)
	}
	if d.ExternalTools > 0 {
		e.log.Info("declared: %d external tools", d.ExternalTools)
	}
	if d.Elements > 0 {
		e.log.Info("declared: %d elements total", d.Elements)
	}
}

func (e *Engine) buildColumns(ctx context.Context, columns []board.Column, res *Result) error {
	ctx, span := tracer.Start(ctx, "replay.columns")
	defer span.End()

	for i, col := range columns {
		if err := e.addColumn(ctx, col.Title); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &PhaseError{Column: i, Title: col.Title, Err: err}
		}
		res.ColumnsCreated++
	}

	err := Run(ctx, Step{Name: "blur", Do: e.surface.Blur, Settle: e.timing.ColumnStabilization})
	if err != nil {
		return err
	}
	e.debugColumnStructure(ctx)
	return nil
}

func (e *Engine) addColumn(ctx context.Context, title string) error {
	e.notify(LevelInfo, "Spalte anlegen: %q", title)
	var btn, field locator.Control
	return Run(ctx,
		locate(addColumnTarget(), e.surface, &btn),
		click("open column", &btn, e.timing.Click),
		locate(titleTarget(locator.ScopeColumn), e.surface, &field),
		click("focus column title", &field, e.timing.Focus),
		setValue("set column title", &field, title, e.timing.Focus),
		press("submit column title", &field, locator.KeyEnter, e.timing.ColumnCreation),
	)
}

func (e *Engine) fillCards(ctx context.Context, columns []board.Column, res *Result) error {
	ctx, span := tracer.Start(ctx, "replay.cards")
	defer span.End()

	for ci, col := range columns {
		for ki, card := range col.Cards {
			err := e.addCard(ctx, ci, ki, card, res)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				e.log.Warn("card %q in column %d failed: %v", card.Title, ci+1, err)
				res.FailedCards = append(res.FailedCards, CardFailure{
					Column: ci, Card: ki, Title: card.Title, Reason: err.Error(),
				})
				continue
			}
			res.CardsCreated++
		}
	}
	return nil
}

func (e *Engine) addCard(ctx context.Context, ci, ki int, card board.Card, res *Result) error {
	count := len(card.Elements)
	if card.IsLegacy() {
		count = 1
	}
	e.notify(LevelInfo, "Karte anlegen in Spalte %d: %q (%d Elemente)", ci+1, card.Title, count)

	var btn, field locator.Control
	err := Run(ctx,
		Wait("await add card button", e.timing.ButtonSearch),
		Step{Name: "locate add card button", Do: func(ctx context.Context) error {
			ctl, err := addCardTarget(ci).Locate(ctx, e.surface)
			if err != nil {
				e.debugColumnStructure(ctx)
				return err
			}
			btn = ctl
			return nil
		}},
		click("open card", &btn, e.timing.Click),
		locate(titleTarget(locator.ScopeCard), e.surface, &field),
		click("focus card title", &field, e.timing.Focus),
		setValue("set card title", &field, card.Title, e.timing.Focus),
		press("submit card title", &field, locator.KeyEnter, e.timing.Field),
	)
	if err != nil {
		if btn != nil && ctx.Err() == nil {
			_ = e.closeCard(ctx)
		}
		return err
	}

	if err := e.fillCard(ctx, ci, ki, card, res); err != nil {
		_ = e.closeCard(ctx)
		return err
	}
	return e.closeCard(ctx)
}

func (e *Engine) closeCard(ctx context.Context) error {
	return Run(ctx, Step{Name: "close card", Do: e.surface.ClickBody, Settle: e.timing.Action})
}

func (e *Engine) fillCard(ctx context.Context, ci, ki int, card board.Card, res *Result) error {
	if card.IsLegacy() {
		return e.setFirstElement(ctx, card.Content, false)
	}

	first := card.Elements[0]
	text, bold := inlineText(first)
	if err := e.setFirstElement(ctx, text, bold); err != nil {
		return err
	}
	res.ElementsCreated++
	if first.Type != board.KindText && first.Type != board.KindFile {
		res.Degraded = append(res.Degraded, issue(ci, ki, card.Title, first, "first element is written inline as text"))
	}

	for _, el := range card.Elements[1:] {
		err := e.addElement(ctx, el)
		if err == nil {
			res.ElementsCreated++
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.log.Warn("element %s failed: %v", el.Summary(), err)

		if el.Type == board.KindText || el.Type == board.KindFile {
			ferr := e.appendToCurrentEditor(ctx, el.Content)
			if ferr == nil {
				res.Degraded = append(res.Degraded, issue(ci, ki, card.Title, el, err.Error()))
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err = errors.Join(err, ferr)
		}
		res.Omitted = append(res.Omitted, issue(ci, ki, card.Title, el, err.Error()))
	}
	return nil
}

// inlineText returns what the card's initial editor receives for its first
// element and whether it is emphasized.
func inlineText(el board.Element) (string, bool) {
	if el.Type == board.KindFile {
		return el.FilePlaceholder(), true
	}
	return el.Content, el.ShouldBeBold || el.Type.Emphasized()
}

func issue(ci, ki int, title string, el board.Element, reason string) ElementIssue {
	return ElementIssue{Column: ci, Card: ki, CardTitle: title, Order: el.Order, Kind: el.Type, Reason: reason}
}

// debugColumnStructure logs every column's test id and buttons.
func (e *Engine) debugColumnStructure(ctx context.Context) {
	cols, err := e.surface.Find(ctx, selColumns)
	if err != nil {
		e.log.Debug("column structure unavailable: %v", err)
		return
	}
	e.log.Debug("column structure: %d columns", len(cols))
	for i, col := range cols {
		testID, _, _ := col.Attr(ctx, "data-testid")
		buttons, err := col.Find(ctx, "button")
		if err != nil {
			continue
		}
		texts := make([]string, 0, len(buttons))
		for _, b := range buttons {
			t, _ := b.Text(ctx)
			texts = append(texts, t)
		}
		e.log.Debug("column %d (%s): %d buttons [%s]", i, testID, len(buttons), strings.Join(texts, " | "))
	}
}
