// Package extract classifies the content fragments of a captured board page
// into typed board elements.
//
// Extraction is pure: it reads an x/net/html tree and never touches the
// network. External tool elements whose context id could not be read from
// the DOM are reported as lookups for the identity resolver.
package extract

import (
	"regexp"
	"strings"

	"boardsnap/internal/board"
	"boardsnap/internal/dom"
	"boardsnap/internal/logging"

	"golang.org/x/net/html"
)

// ColumnSelector matches the board's columns once the app has rendered.
const ColumnSelector = `[data-testid^="board-column-"]`

var (
	selColumn      = dom.MustCompile(ColumnSelector)
	selColumnTitle = dom.MustCompile(`[data-testid^="column-title-"]`)
	selCard        = dom.MustCompile(`[data-testid^="board-card-"]`)
	selCardTitle   = dom.MustCompile(`[data-testid="card-title"]`)
	selFragment    = dom.MustCompile(`[data-testid^="board-contentelement-"]`)
	selLegacyText  = dom.MustCompile(`.ck-content, .ck-editor__editable[contenteditable="true"]`)
	cardIDPattern  = regexp.MustCompile(`board-card-(.+)`)
)

// CardResult is the extraction of one card.
type CardResult struct {
	ID       string
	Title    string
	Elements []board.Element
	// ContextLookups indexes Elements whose context id must be discovered
	// through the card API.
	ContextLookups []int
	// LegacyContent is the concatenated rich text of the card, used when no
	// typed element was recognized.
	LegacyContent string
}

// ColumnResult is the extraction of one column.
type ColumnResult struct {
	Title string
	Cards []CardResult
}

// Extractor turns card subtrees into typed elements.
type Extractor struct {
	log *logging.Logger
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{log: logging.Get(logging.CategoryExtract)}
}

// Board walks every column and card below root in document order.
func (x *Extractor) Board(root *html.Node) []ColumnResult {
	columns := dom.QueryAll(root, selColumn)
	out := make([]ColumnResult, 0, len(columns))
	for ci, col := range columns {
		cr := ColumnResult{Title: dom.Text(dom.Query(col, selColumnTitle))}
		for _, card := range dom.QueryAll(col, selCard) {
			cr.Cards = append(cr.Cards, x.Card(card))
		}
		x.log.Debug("column %d %q: %d cards", ci, cr.Title, len(cr.Cards))
		out = append(out, cr)
	}
	return out
}

// Card extracts one card subtree.
func (x *Extractor) Card(card *html.Node) CardResult {
	res := CardResult{
		ID:       CardID(card),
		Title:    dom.Text(dom.Query(card, selCardTitle)),
		Elements: []board.Element{},
	}

	for i, frag := range dom.QueryAll(card, selFragment) {
		el, ok := classify(fragment{node: frag, index: i, cardID: res.ID})
		if !ok {
			x.log.Debug("card %q fragment %d: no known element type", res.ID, i)
			continue
		}
		if el.Type == board.KindExternalTool && !ValidContextID(el.ContextID) {
			res.ContextLookups = append(res.ContextLookups, len(res.Elements))
		}
		res.Elements = append(res.Elements, el)
	}

	if len(res.Elements) == 0 {
		res.LegacyContent = legacyContent(card)
	}
	return res
}

// classify runs every classifier over the fragment. Later matches replace
// earlier ones.
func classify(f fragment) (board.Element, bool) {
	var (
		result board.Element
		found  bool
	)
	for _, c := range classifiers {
		if el, ok := c.detect(f); ok {
			result, found = el, true
		}
	}
	return result, found
}

// legacyContent concatenates the rich text of every editor inside the
// card's content fragments.
func legacyContent(card *html.Node) string {
	var sb strings.Builder
	for _, frag := range dom.QueryAll(card, selFragment) {
		for _, editor := range dom.QueryAll(frag, selLegacyText) {
			sb.WriteString(editorContent(editor))
		}
	}
	return sb.String()
}

// CardID returns the backend id of a card node: the data-testid suffix, or
// the id attribute.
func CardID(card *html.Node) string {
	if m := cardIDPattern.FindStringSubmatch(dom.AttrOr(card, "data-testid", "")); m != nil {
		return m[1]
	}
	return dom.AttrOr(card, "id", "")
}
