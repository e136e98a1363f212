// Package snapshot builds versioned snapshot documents from a captured board
// page and reads them back for import.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"boardsnap/internal/board"
	"boardsnap/internal/extract"
	"boardsnap/internal/logging"
	"boardsnap/internal/resolver"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
)

// minContextIDLen is the shortest context id worth a launch lookup.
const minContextIDLen = 20

// IdentityResolver performs the two external tool lookups.
// *resolver.Resolver implements it.
type IdentityResolver interface {
	ContextID(ctx context.Context, cardID, elementID string) string
	ToolID(ctx context.Context, contextID string) (string, error)
}

// Issue is an external tool whose id could not be resolved.
type Issue struct {
	Column      int    `json:"column"`
	Card        int    `json:"card"`
	Order       int    `json:"order"`
	CardTitle   string `json:"cardTitle"`
	DisplayName string `json:"displayName"`
	ContextID   string `json:"contextId,omitempty"`
	ToolID      string `json:"toolId"`
}

func (i Issue) String() string {
	return fmt.Sprintf("column %d card %d (%q) element %d: %s -> %s",
		i.Column+1, i.Card+1, i.CardTitle, i.Order, i.DisplayName, i.ToolID)
}

// Report summarizes one export.
type Report struct {
	Totals         board.Totals
	LegacyCards    int
	ContextLookups int
	ToolLookups    int
	Issues         []Issue
}

// Message is the user-facing summary line of an export.
func (r Report) Message() string {
	return fmt.Sprintf("Export erfolgreich! %d Elemente (%d Externe Tools) in %d Karten.",
		r.Totals.Elements, r.Totals.ExternalTools, r.Totals.Cards)
}

// Serializer turns a captured board page into a snapshot document.
type Serializer struct {
	extractor *extract.Extractor
	resolver  IdentityResolver
	now       func() time.Time
	log       *logging.Logger
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Serializer) { s.now = now }
}

// NewSerializer creates a Serializer. A nil resolver skips all network
// lookups and leaves tool ids empty.
func NewSerializer(r IdentityResolver, opts ...Option) *Serializer {
	s := &Serializer{
		extractor: extract.New(),
		resolver:  r,
		now:       time.Now,
		log:       logging.Get(logging.CategoryExport),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serialize builds a fresh document from the page rooted at root.
func (s *Serializer) Serialize(ctx context.Context, root *html.Node) (*board.Document, Report) {
	ctx, span := otel.Tracer("boardsnap/snapshot").Start(ctx, "snapshot.Serialize")
	defer span.End()

	var report Report
	extracted := s.extractor.Board(root)
	columns := make([]board.Column, 0, len(extracted))

	for ci, col := range extracted {
		column := board.Column{Title: col.Title, Cards: make([]board.Card, 0, len(col.Cards))}
		for ki, card := range col.Cards {
			if len(card.Elements) == 0 {
				s.log.Debug("legacy export for card %q", card.Title)
				report.LegacyCards++
				column.Cards = append(column.Cards, board.NewLegacyCard(card.Title, card.LegacyContent))
				continue
			}
			if s.resolver != nil {
				s.resolveTools(ctx, ci, ki, card, &report)
			}
			column.Cards = append(column.Cards, board.NewCard(card.Title, card.Elements))
			s.log.Debug("card %q exported with %d elements", card.Title, len(card.Elements))
		}
		columns = append(columns, column)
	}

	doc := board.NewDocument(columns, s.now())
	report.Totals = board.Count(doc.Columns)
	span.SetAttributes(
		attribute.Int("board.columns", report.Totals.Columns),
		attribute.Int("board.cards", report.Totals.Cards),
		attribute.Int("board.elements", report.Totals.Elements),
		attribute.Int("board.issues", len(report.Issues)),
	)
	s.log.Info("export statistics: version=%s columns=%d cards=%d external_tools=%d elements=%d",
		doc.Version, doc.TotalColumns, doc.TotalCards, doc.TotalExternalTools, doc.TotalElements)
	return doc, report
}

// resolveTools fills in the context and tool ids of every external tool of
// a card. Lookups run one at a time.
func (s *Serializer) resolveTools(ctx context.Context, ci, ki int, card extract.CardResult, report *Report) {
	queued := make(map[int]bool, len(card.ContextLookups))
	for _, i := range card.ContextLookups {
		queued[i] = true
	}

	for i := range card.Elements {
		el := &card.Elements[i]
		if el.Type != board.KindExternalTool {
			continue
		}

		if queued[i] && el.CardID != "" && el.ElementID != "" {
			report.ContextLookups++
			if id := s.resolver.ContextID(ctx, el.CardID, el.ElementID); id != "" {
				el.ContextID = id
			}
		}

		if len(el.ContextID) >= minContextIDLen {
			report.ToolLookups++
			id, err := s.resolver.ToolID(ctx, el.ContextID)
			if err != nil {
				s.log.Warn("tool id extraction for %s failed: %v", el.DisplayName, err)
				id = resolver.ExtractionFailed
			}
			el.ToolID = id
		} else {
			s.log.Warn("external tool without valid context id: %s (id %q)", el.DisplayName, el.ContextID)
			el.ToolID = resolver.NoValidContextID
		}

		if resolver.IsSentinel(el.ToolID) {
			report.Issues = append(report.Issues, Issue{
				Column:      ci,
				Card:        ki,
				Order:       el.Order,
				CardTitle:   card.Title,
				DisplayName: el.DisplayName,
				ContextID:   el.ContextID,
				ToolID:      el.ToolID,
			})
		}
	}
}

// FileName returns the download name of a snapshot taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("board-export-v%s-%s.json", board.FormatVersion, t.UTC().Format("2006-01-02T15-04-05"))
}
