package board

import (
	"strings"
	"time"
)

// FormatVersion is the snapshot format written by export.
const FormatVersion = "8.7"

// Board is an ordered sequence of columns.
type Board []Column

// Column is a titled, ordered list of cards.
type Column struct {
	Title string `json:"title"`
	Cards []Card `json:"cards"`
}

// Card holds typed elements plus their flat legacy rendering.
type Card struct {
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
	Content  string    `json:"content"`
}

// NewCard builds a card and derives Content from the elements.
func NewCard(title string, elements []Element) Card {
	if elements == nil {
		elements = []Element{}
	}
	c := Card{Title: title, Elements: elements}
	c.Recompute()
	return c
}

// NewLegacyCard builds a card without typed elements whose content is the
// raw rich text found on the board.
func NewLegacyCard(title, content string) Card {
	return Card{Title: title, Elements: []Element{}, Content: content}
}

// Recompute rebuilds Content from the elements. Cards without elements keep
// their legacy content.
func (c *Card) Recompute() {
	if len(c.Elements) == 0 {
		return
	}
	var sb strings.Builder
	for _, e := range c.Elements {
		sb.WriteString(e.Content)
	}
	c.Content = sb.String()
}

// IsLegacy reports whether the card is replayed from its flat content.
func (c Card) IsLegacy() bool {
	return len(c.Elements) == 0
}

// Document is the versioned snapshot written by export and read by import.
type Document struct {
	ExportDate            string   `json:"exportDate"`
	Version               string   `json:"version"`
	TotalColumns          int      `json:"totalColumns"`
	TotalCards            int      `json:"totalCards"`
	TotalFiles            int      `json:"totalFiles"`
	TotalLinks            int      `json:"totalLinks"`
	TotalVideoConferences int      `json:"totalVideoConferences"`
	TotalExternalTools    int      `json:"totalExternalTools"`
	TotalElements         int      `json:"totalElements"`
	Columns               []Column `json:"columns"`
}

// Totals aggregates element counts over a board.
type Totals struct {
	Columns          int
	Cards            int
	Files            int
	Links            int
	VideoConferences int
	ExternalTools    int
	Elements         int
}

// Count computes the aggregates of a board.
func Count(columns []Column) Totals {
	t := Totals{Columns: len(columns)}
	for _, col := range columns {
		t.Cards += len(col.Cards)
		for _, card := range col.Cards {
			t.Elements += len(card.Elements)
			for _, e := range card.Elements {
				switch e.Type {
				case KindFile:
					t.Files++
				case KindLink:
					t.Links++
				case KindVideoConference:
					t.VideoConferences++
				case KindExternalTool:
					t.ExternalTools++
				}
			}
		}
	}
	return t
}

// NewDocument wraps columns into a snapshot document. Totals are derived
// here and nowhere else.
func NewDocument(columns []Column, exportedAt time.Time) *Document {
	if columns == nil {
		columns = []Column{}
	}
	t := Count(columns)
	return &Document{
		ExportDate:            exportedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:               FormatVersion,
		TotalColumns:          t.Columns,
		TotalCards:            t.Cards,
		TotalFiles:            t.Files,
		TotalLinks:            t.Links,
		TotalVideoConferences: t.VideoConferences,
		TotalExternalTools:    t.ExternalTools,
		TotalElements:         t.Elements,
		Columns:               columns,
	}
}
