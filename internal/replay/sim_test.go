package replay

import (
	"fmt"
	"html"
	"strings"
	"testing"

	"boardsnap/internal/board"
	"boardsnap/internal/dom"
	"boardsnap/internal/locator"
	"boardsnap/internal/locator/locatortest"

	xhtml "golang.org/x/net/html"
)

// nbcSim mimics the board editor closely enough for the replay engine: it
// grows columns, cards and content fragments in the markup the extractor
// reads.
type nbcSim struct {
	page    *locatortest.Page
	columns *xhtml.Node
	overlay *xhtml.Node

	open     *xhtml.Node // card whose editors are active
	cards    int
	tools    int
	selected string // provider chosen in the open tool dialog
	armed    bool   // ArrowDown pressed in the tool search

	hiddenEntries map[string]bool
	noAddCard     map[int]bool
	noColumnTitle bool
	noVideoTitle  bool

	// toolIDs maps display names of saved tools to the id typed into the form.
	toolIDs map[string]string
}

type simOption func(*nbcSim)

// withoutPickerEntry hides a picker entry by test id; "external-tools" hides
// the external tool entry.
func withoutPickerEntry(testID string) simOption {
	return func(s *nbcSim) { s.hiddenEntries[testID] = true }
}

func withoutAddColumn() simOption {
	return func(s *nbcSim) {
		s.page.Remove(dom.Query(s.page.Root(), dom.MustCompile("#add-column")))
	}
}

func withoutAddCard(col int) simOption {
	return func(s *nbcSim) { s.noAddCard[col] = true }
}

// withoutColumnTitle makes new columns appear without a title input.
func withoutColumnTitle() simOption {
	return func(s *nbcSim) { s.noColumnTitle = true }
}

// withoutVideoTitle creates video conferences straight from the picker,
// without asking for a title.
func withoutVideoTitle() simOption {
	return func(s *nbcSim) { s.noVideoTitle = true }
}

const simPage = `<html><body>
<div id="board">
  <div id="columns"></div>
  <button id="add-column"><span class="v-btn__content">Abschnitt hinzufügen</span></button>
</div>
<div id="overlay"></div>
</body></html>`

func newSim(t *testing.T, opts ...simOption) *nbcSim {
	t.Helper()
	p := locatortest.MustPage(simPage)
	s := &nbcSim{
		page:          p,
		columns:       dom.Query(p.Root(), dom.MustCompile("#columns")),
		overlay:       dom.Query(p.Root(), dom.MustCompile("#overlay")),
		hiddenEntries: map[string]bool{},
		noAddCard:     map[int]bool{},
		toolIDs:       map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}

	p.OnClick("#add-column", s.addColumn)
	p.OnKey(`[data-testid^="column-title-"] input`, locator.KeyEnter, s.commitTitle)
	p.OnClick(`[data-testid$="-add-card-btn"]`, s.addCard)
	p.OnKey(`[data-testid="card-title"] textarea`, locator.KeyEnter, s.commitTitle)
	p.OnClick(`[data-testid="add-element-btn"]`, s.openPicker)
	p.OnClick(`.picker button`, s.choose)
	p.OnKey(`.element-form input`, locator.KeyEnter, s.submitForm)
	p.OnClick(`[data-testid="configuration-select-item"]`, s.selectItem)
	p.OnKey(`input.tool-search`, locator.KeyArrowDown, func(*locatortest.Page, *xhtml.Node) error {
		s.armed = true
		return nil
	})
	p.OnKey(`input.tool-search`, locator.KeyEnter, s.selectHighlighted)
	p.OnClick(`[data-testid="save-button"]`, s.saveTool)
	p.OnBodyClick(s.closeCard)
	return s
}

func (s *nbcSim) query(root *xhtml.Node, sel string) *xhtml.Node {
	return dom.Query(root, dom.MustCompile(sel))
}

func (s *nbcSim) addColumn(p *locatortest.Page, _ *xhtml.Node) error {
	i := len(dom.QueryAll(s.columns, dom.MustCompile(`[data-testid^="board-column-"]`)))
	btn := fmt.Sprintf(`<button data-testid="column-%d-add-card-btn">Karte hinzufügen</button>`, i)
	if s.noAddCard[i] {
		btn = ""
	}
	input := `<input type="text" placeholder="Titel des Abschnitts">`
	if s.noColumnTitle {
		input = ""
	}
	nodes, err := p.Append(s.columns, fmt.Sprintf(
		`<div data-testid="board-column-%d"><div data-testid="column-title-%d">%s</div><div class="cards"></div>%s</div>`,
		i, i, input, btn))
	if err != nil {
		return err
	}
	if field := s.query(nodes[0], "input"); field != nil {
		p.SetFocus(field)
	}
	return nil
}

// commitTitle turns a title field into the heading it stands for.
func (s *nbcSim) commitTitle(p *locatortest.Page, input *xhtml.Node) error {
	title := locatortest.Value(input)
	locatortest.SetText(input.Parent, title)
	p.SetFocus(nil)
	return nil
}

func (s *nbcSim) addCard(p *locatortest.Page, btn *xhtml.Node) error {
	cards := s.query(btn.Parent, ".cards")
	s.cards++
	nodes, err := p.Append(cards, fmt.Sprintf(`<div data-testid="board-card-%024x">
  <div data-testid="card-title"><textarea placeholder="Titel hinzufügen"></textarea></div>
  <div class="elements"><div data-testid="board-contentelement-0"><div class="ck-content ck-editor__editable" contenteditable="true"></div></div></div>
  <button data-testid="add-element-btn">Element hinzufügen</button>
</div>`, s.cards))
	if err != nil {
		return err
	}
	s.open = nodes[0]
	return nil
}

func (s *nbcSim) openPicker(p *locatortest.Page, _ *xhtml.Node) error {
	if s.open == nil {
		return fmt.Errorf("no open card")
	}
	var sb strings.Builder
	sb.WriteString(`<div class="picker">`)
	for _, entry := range []struct{ id, label string }{
		{"create-element-text", "Text"},
		{"create-element-drawing", "Whiteboard"},
		{"create-element-collaborative-text-editor", "Etherpad"},
		{"create-element-video-conference", "Videokonferenz"},
		{"create-element-link", "Link"},
	} {
		if !s.hiddenEntries[entry.id] {
			fmt.Fprintf(&sb, `<button data-testid="%s">%s</button>`, entry.id, entry.label)
		}
	}
	if !s.hiddenEntries["external-tools"] {
		fmt.Fprintf(&sb, `<button><span class="v-btn__content"><svg><path d="%s"></path></svg><span class="subtitle">Externe Tools</span></span></button>`, iconExternalTool)
	}
	sb.WriteString(`</div>`)
	_, err := p.Append(s.overlay, sb.String())
	return err
}

func (s *nbcSim) appendFragment(p *locatortest.Page, inner string) error {
	elements := s.query(s.open, ".elements")
	i := len(dom.QueryAll(elements, dom.MustCompile(`[data-testid^="board-contentelement-"]`)))
	_, err := p.Append(elements, fmt.Sprintf(`<div data-testid="board-contentelement-%d">%s</div>`, i, inner))
	return err
}

func (s *nbcSim) choose(p *locatortest.Page, btn *xhtml.Node) error {
	p.Remove(s.query(s.overlay, ".picker"))
	switch dom.AttrOr(btn, "data-testid", "") {
	case "create-element-text":
		return s.appendFragment(p, `<div class="ck-content ck-editor__editable" contenteditable="true"></div>`)
	case "create-element-drawing":
		return s.appendFragment(p, `<div data-testid="drawing-element"><span class="content-element-title">Whiteboard</span></div>`)
	case "create-element-collaborative-text-editor":
		return s.appendFragment(p, `<div data-testid="collaborative-text-editor-element"><span class="content-element-title">Etherpad</span></div>`)
	case "create-element-video-conference":
		if s.noVideoTitle {
			return s.appendFragment(p, `<div data-testid="video-conference-element"><span data-testid="content-element-title-slot"></span></div>`)
		}
		return s.openForm(p, `<div class="element-form" data-kind="video"><input type="text" placeholder="Titel"></div>`)
	case "create-element-link":
		return s.openForm(p, `<div class="element-form" data-kind="link"><input type="url" placeholder="URL einfügen"></div>`)
	default:
		_, err := p.Append(s.overlay, `<div class="tool-dialog">
  <input type="text" class="tool-search" placeholder="Tool suchen">
  <div class="v-list">
    <div class="v-list-item" data-testid="configuration-select-item"><div class="v-list-item-title">Lichtblick-Filmsequenz</div></div>
    <div class="v-list-item" data-testid="configuration-select-item"><div class="v-list-item-title">Bettermarks</div></div>
  </div>
  <label for="input-v-42">Anzeigename</label><input id="input-v-42" type="text">
  <div class="tool-params"></div>
  <button data-testid="save-button">Hinzufügen</button>
</div>`)
		return err
	}
}

func (s *nbcSim) openForm(p *locatortest.Page, markup string) error {
	nodes, err := p.Append(s.overlay, markup)
	if err != nil {
		return err
	}
	p.SetFocus(s.query(nodes[0], "input"))
	return nil
}

func (s *nbcSim) submitForm(p *locatortest.Page, input *xhtml.Node) error {
	form := input.Parent
	value := html.EscapeString(locatortest.Value(input))
	p.Remove(form)
	switch dom.AttrOr(form, "data-kind", "") {
	case "video":
		return s.appendFragment(p, `<div data-testid="video-conference-element"><span data-testid="content-element-title-slot">`+value+`</span></div>`)
	case "link":
		return s.appendFragment(p, `<div data-testid="board-link-element"><span data-testid="content-element-title-slot">Link</span><div class="px-4">`+value+`</div></div>`)
	}
	return nil
}

func (s *nbcSim) selectItem(p *locatortest.Page, item *xhtml.Node) error {
	switch dom.Text(s.query(item, ".v-list-item-title")) {
	case "Lichtblick-Filmsequenz":
		s.selected = board.ProviderLichtblick
		_, err := p.Append(s.query(s.overlay, ".tool-params"), `<div data-testid="id"><input type="text"></div>`)
		return err
	case "Bettermarks":
		s.selected = board.ProviderBettermarks
	}
	return nil
}

func (s *nbcSim) selectHighlighted(_ *locatortest.Page, search *xhtml.Node) error {
	if !s.armed {
		return nil
	}
	query := locatortest.Value(search)
	for _, pr := range board.Providers {
		if pr.SearchText == query {
			s.selected = pr.Name
		}
	}
	return nil
}

func (s *nbcSim) saveTool(p *locatortest.Page, _ *xhtml.Node) error {
	dialog := s.query(s.overlay, ".tool-dialog")
	if s.selected == "" || dialog == nil {
		return nil
	}
	provider, _ := board.ProviderByName(s.selected)
	display := locatortest.Value(s.query(dialog, "#input-v-42"))
	if id := s.query(dialog, `[data-testid="id"] input`); id != nil {
		s.toolIDs[display] = locatortest.Value(id)
	} else {
		s.toolIDs[display] = ""
	}
	p.Remove(dialog)
	s.selected, s.armed = "", false
	s.tools++
	return s.appendFragment(p, fmt.Sprintf(
		`<div data-testid="board-external-tool-element-%s" id="%024x"><img src="/api/v3/file/external-tools/%s/logo"><span data-testid="content-element-title-slot">%s</span></div>`,
		strings.ToLower(provider.Name), 0xc0ffee0000+s.tools, provider.IconSignature, html.EscapeString(display)))
}

// closeCard freezes the open card's editors and dismisses any overlay.
func (s *nbcSim) closeCard(p *locatortest.Page, _ *xhtml.Node) error {
	if s.open != nil {
		for _, ed := range dom.QueryAll(s.open, dom.MustCompile(`[contenteditable="true"]`)) {
			locatortest.SetAttr(ed, "contenteditable", "false")
		}
		p.Remove(s.query(s.open, `[data-testid="add-element-btn"]`))
		s.open = nil
	}
	for c := s.overlay.FirstChild; c != nil; c = s.overlay.FirstChild {
		p.Remove(c)
	}
	return nil
}

// cardNode returns card ki of column ci.
func (s *nbcSim) cardNode(ci, ki int) *xhtml.Node {
	col := s.query(s.columns, fmt.Sprintf(`[data-testid="board-column-%d"]`, ci))
	if col == nil {
		return nil
	}
	cards := dom.QueryAll(col, dom.MustCompile(`[data-testid^="board-card-"]`))
	if ki >= len(cards) {
		return nil
	}
	return cards[ki]
}
