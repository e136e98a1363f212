package extract

import (
	"net/url"
	"regexp"
	"strings"

	"boardsnap/internal/board"
	"boardsnap/internal/dom"

	"golang.org/x/net/html"
)

// EditorDataAttr is stamped on rich-text editors by the browser adapter with
// the editor's own serialization; it wins over the rendered inner HTML.
const EditorDataAttr = "data-boardsnap-data"

// classifier detects one element kind inside a content fragment. It reports
// false when the fragment lacks the kind's marker structure.
type classifier struct {
	kind   board.Kind
	detect func(f fragment) (board.Element, bool)
}

// fragment is one content fragment of a card.
type fragment struct {
	node   *html.Node
	index  int
	cardID string
}

// classifiers run in this fixed order. Every classifier runs; a later match
// replaces whatever an earlier one produced.
var classifiers = []classifier{
	{board.KindText, detectText},
	{board.KindFile, detectFile},
	{board.KindDrawing, detectDrawing},
	{board.KindCollabEditor, detectCollabEditor},
	{board.KindVideoConference, detectVideoConference},
	{board.KindLink, detectLink},
	{board.KindExternalTool, detectExternalTool},
}

var (
	selRichText      = dom.MustCompile(`.ck-content`)
	selFile          = dom.MustCompile(`[data-testid="board-file-element"]`)
	selFileTitle     = dom.MustCompile(`.v-card-title, .file-name, .filename, [data-testid*="file-name"]`)
	selFileLink      = dom.MustCompile(`a[href], [href]`)
	selFileCaption   = dom.MustCompile(`.text-caption`)
	selDrawing       = dom.MustCompile(`[data-testid="drawing-element"]`)
	selCollab        = dom.MustCompile(`[data-testid="collaborative-text-editor-element"]`)
	selVideo         = dom.MustCompile(`[data-testid="video-conference-element"]`)
	selElementTitle  = dom.MustCompile(`.content-element-title`)
	selTitleSlot     = dom.MustCompile(`[data-testid="content-element-title-slot"]`)
	selLink          = dom.MustCompile(`[data-testid="board-link-element"]`)
	selPx4           = dom.MustCompile(`.px-4`)
	selBarTexts      = dom.MustCompile(`.content-element-bar-texts`)
	selExternalTool  = dom.MustCompile(`[data-testid^="board-external-tool-element-"]`)
	selExternalLogo  = dom.MustCompile(`img[src*="external-tools"]`)
	fileNamePattern  = regexp.MustCompile(`[^/\\]+\.[a-zA-Z0-9]+`)
	toolNamePattern  = regexp.MustCompile(`board-external-tool-element-(.+)`)
	hexIDExact       = regexp.MustCompile(`(?i)^[a-f0-9]{24}$`)
	hexIDAnywhere    = regexp.MustCompile(`(?i)[a-f0-9]{24}`)
	contextIDAttrs   = []string{"onclick", "data-context", "data-id", "data-tool-id", "aria-label"}
	minContextIDHint = 20
)

func detectText(f fragment) (board.Element, bool) {
	editor := dom.Query(f.node, selRichText)
	if editor == nil {
		return board.Element{}, false
	}
	return board.NewText(f.index, editorContent(editor)), true
}

// editorContent prefers the editor's own serialization over rendered HTML.
func editorContent(editor *html.Node) string {
	if data, ok := dom.Attr(editor, EditorDataAttr); ok {
		return data
	}
	return strings.TrimSpace(dom.InnerHTML(editor))
}

func detectFile(f fragment) (board.Element, bool) {
	el := dom.Query(f.node, selFile)
	if el == nil {
		return board.Element{}, false
	}

	name := board.DefaultFileName
	if title := dom.Text(dom.Query(el, selFileTitle)); title != "" {
		name = title
	} else if text := dom.Text(el); text != "" {
		if m := fileNamePattern.FindString(text); m != "" {
			name = m
		} else if len([]rune(text)) < 100 {
			name = text
		}
	}

	if name == board.DefaultFileName {
		if link := dom.Query(el, selFileLink); link != nil {
			if last := lastPathSegment(dom.AttrOr(link, "href", "")); strings.Contains(last, ".") {
				if decoded, err := url.PathUnescape(last); err == nil {
					name = decoded
				} else {
					name = last
				}
			}
		}
	}
	if name == board.DefaultFileName {
		name = "" // NewFile substitutes Datei_<n>
	}

	info := dom.Text(dom.Query(el, selFileCaption))
	return board.NewFile(f.index, name, info), true
}

func detectDrawing(f fragment) (board.Element, bool) {
	el := dom.Query(f.node, selDrawing)
	if el == nil {
		return board.Element{}, false
	}
	return board.NewDrawing(f.index, dom.Text(dom.Query(el, selElementTitle))), true
}

func detectCollabEditor(f fragment) (board.Element, bool) {
	el := dom.Query(f.node, selCollab)
	if el == nil {
		return board.Element{}, false
	}
	return board.NewCollabEditor(f.index, dom.Text(dom.Query(el, selElementTitle))), true
}

func detectVideoConference(f fragment) (board.Element, bool) {
	el := dom.Query(f.node, selVideo)
	if el == nil {
		return board.Element{}, false
	}
	return board.NewVideoConference(f.index, dom.Text(dom.Query(el, selTitleSlot))), true
}

func detectLink(f fragment) (board.Element, bool) {
	el := dom.Query(f.node, selLink)
	if el == nil {
		return board.Element{}, false
	}
	title := dom.Text(dom.Query(el, selTitleSlot))
	if title == "" {
		title = board.DefaultLinkTitle
	}
	return board.NewLink(f.index, title, linkURL(el, title)), true
}

// linkURL searches the link's text rows for the URL, skipping the row that
// repeats the title.
func linkURL(el *html.Node, title string) string {
	rows := dom.QueryAll(el, selPx4)
	for _, row := range rows {
		text := dom.Text(row)
		if text != title && looksLikeURL(text) {
			return text
		}
	}
	switch {
	case len(rows) > 1:
		if text := dom.Text(rows[len(rows)-1]); text != "" {
			return text
		}
	case len(rows) == 1:
		if text := dom.Text(rows[0]); text != title && text != "" {
			return text
		}
	}
	if bar := dom.Query(el, selBarTexts); bar != nil {
		for _, row := range dom.QueryAll(bar, selPx4) {
			if text := dom.Text(row); text != title && text != "" {
				return text
			}
		}
	}
	return board.URLNotFound
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, ".") || strings.Contains(s, "http") ||
		strings.Contains(s, "www") || strings.Contains(s, "/")
}

func detectExternalTool(f fragment) (board.Element, bool) {
	el := dom.Query(f.node, selExternalTool)
	if el == nil {
		return board.Element{}, false
	}

	ref := board.ExternalToolRef{
		ToolName:  board.DefaultToolName,
		ElementID: dom.AttrOr(el, "id", ""),
		CardID:    f.cardID,
	}
	if m := toolNamePattern.FindStringSubmatch(dom.AttrOr(el, "data-testid", "")); m != nil {
		ref.ToolName = m[1]
	}
	ref.DisplayName = dom.Text(dom.Query(el, selTitleSlot))
	if logo := dom.Query(el, selExternalLogo); logo != nil {
		if p, ok := board.ProviderByIcon(dom.AttrOr(logo, "src", "")); ok {
			ref.ToolType = p.Name
		}
	}
	ref.ContextID = domContextID(el)
	return board.NewExternalTool(f.index, ref), true
}

// domContextID searches the tool element for its 24-hex context id. Each
// step only runs while the candidate found so far is too short to be one.
func domContextID(el *html.Node) string {
	id := dom.AttrOr(el, "id", "")
	short := func() bool { return len(id) < minContextIDHint }

	if short() {
		for _, a := range el.Attr {
			if hexIDExact.MatchString(a.Val) {
				id = a.Val
				break
			}
		}
	}
	if short() {
		for _, name := range contextIDAttrs {
			if m := hexIDAnywhere.FindString(dom.AttrOr(el, name, "")); m != "" {
				id = m
				break
			}
		}
	}
	if short() {
		if parentID := dom.AttrOr(dom.Parent(el), "id", ""); hexIDExact.MatchString(parentID) {
			id = parentID
		}
	}
	if short() {
		if m := hexIDAnywhere.FindString(dom.InnerHTML(el)); m != "" {
			id = m
		}
	}
	return id
}

// ValidContextID reports whether id has the 24-hex context id shape.
func ValidContextID(id string) bool {
	return hexIDExact.MatchString(id)
}

func lastPathSegment(raw string) string {
	parts := strings.Split(raw, "/")
	return parts[len(parts)-1]
}
