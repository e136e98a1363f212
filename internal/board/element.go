// Package board defines the typed board model shared by export and import:
// columns of cards holding ordered, typed content elements, and the
// versioned snapshot document that wraps them.
package board

import (
	"fmt"
	"strings"
)

// Kind discriminates the Element union.
type Kind string

const (
	KindText            Kind = "text"
	KindFile            Kind = "file"
	KindDrawing         Kind = "drawing"
	KindCollabEditor    Kind = "collaborative-editor"
	KindVideoConference Kind = "video-conference"
	KindLink            Kind = "link"
	KindExternalTool    Kind = "external-tool"
	KindUnknown         Kind = "unknown"
)

// Kinds lists every serializable kind in detection order.
var Kinds = []Kind{
	KindText,
	KindFile,
	KindDrawing,
	KindCollabEditor,
	KindVideoConference,
	KindLink,
	KindExternalTool,
}

// Emphasized reports whether content of this kind is rendered bold when it
// degrades to plain editor text.
func (k Kind) Emphasized() bool {
	switch k {
	case KindText, KindUnknown, "":
		return false
	}
	return true
}

// Valid reports whether k is one of the serializable kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Placeholder texts used when the live board omits a value. They are part of
// the snapshot format and stay in the board's language.
const (
	DefaultFileName     = "Unbekannte Datei"
	DefaultFileInfo     = "Unbekanntes Format"
	DefaultDrawingTitle = "Whiteboard"
	DefaultCollabTitle  = "Etherpad"
	DefaultVideoTitle   = "Videokonferenz"
	DefaultLinkTitle    = "Link"
	URLNotFound         = "URL nicht gefunden"
	DefaultToolName     = "UnknownTool"
)

// Element is one typed content unit inside a card.
//
// The struct is a flat discriminated union: Type selects which of the
// optional fields are meaningful. Use the New* constructors, which set
// exactly the fields of one variant and derive Content.
type Element struct {
	Order        int    `json:"order"`
	Type         Kind   `json:"type"`
	Content      string `json:"content"`
	ShouldBeBold bool   `json:"shouldBeBold,omitempty"`

	// file
	FileName string `json:"fileName,omitempty"`
	FileInfo string `json:"fileInfo,omitempty"`

	// drawing, collaborative-editor, video-conference, link
	Title string `json:"title,omitempty"`

	// link
	URL string `json:"url,omitempty"`

	// external-tool
	ToolName    string `json:"toolName,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	ContextID   string `json:"contextId,omitempty"`
	ToolType    string `json:"toolType,omitempty"`
	ElementID   string `json:"elementId,omitempty"`
	CardID      string `json:"cardId,omitempty"`
	ToolID      string `json:"toolId,omitempty"`
}

// NewText builds a text element carrying rich content verbatim.
func NewText(order int, content string) Element {
	return Element{Order: order, Type: KindText, Content: content}
}

// NewFile builds a file placeholder element.
func NewFile(order int, fileName, fileInfo string) Element {
	if fileName == "" {
		fileName = fmt.Sprintf("Datei_%d", order+1)
	}
	if fileInfo == "" {
		fileInfo = DefaultFileInfo
	}
	return Element{
		Order:        order,
		Type:         KindFile,
		FileName:     fileName,
		FileInfo:     fileInfo,
		Content:      fmt.Sprintf("📎 Datei-Platzhalter: %s, %s", fileName, fileInfo),
		ShouldBeBold: true,
	}
}

// NewDrawing builds a whiteboard element.
func NewDrawing(order int, title string) Element {
	title = orDefault(title, DefaultDrawingTitle)
	return Element{
		Order:        order,
		Type:         KindDrawing,
		Title:        title,
		Content:      "🖌️ Whiteboard: " + title,
		ShouldBeBold: true,
	}
}

// NewCollabEditor builds a collaborative text editor (Etherpad) element.
func NewCollabEditor(order int, title string) Element {
	title = orDefault(title, DefaultCollabTitle)
	return Element{
		Order:        order,
		Type:         KindCollabEditor,
		Title:        title,
		Content:      "✏️ Etherpad: " + title,
		ShouldBeBold: true,
	}
}

// NewVideoConference builds a video conference element.
func NewVideoConference(order int, title string) Element {
	title = orDefault(title, DefaultVideoTitle)
	return Element{
		Order:        order,
		Type:         KindVideoConference,
		Title:        title,
		Content:      "📹 Videokonferenz: " + title,
		ShouldBeBold: true,
	}
}

// NewLink builds a link element.
func NewLink(order int, title, url string) Element {
	title = orDefault(title, DefaultLinkTitle)
	url = orDefault(url, URLNotFound)
	return Element{
		Order:        order,
		Type:         KindLink,
		Title:        title,
		URL:          url,
		Content:      fmt.Sprintf("🔗 Link: %s (%s)", title, url),
		ShouldBeBold: true,
	}
}

// ExternalToolRef carries the DOM-derived identity of an external tool.
type ExternalToolRef struct {
	ToolName    string
	DisplayName string
	ContextID   string
	ToolType    string
	ElementID   string
	CardID      string
}

// NewExternalTool builds an external tool element. ToolID is left empty;
// only the identity resolver fills it.
func NewExternalTool(order int, ref ExternalToolRef) Element {
	toolName := orDefault(ref.ToolName, DefaultToolName)
	displayName := orDefault(ref.DisplayName, toolName)
	return Element{
		Order:        order,
		Type:         KindExternalTool,
		ToolName:     toolName,
		DisplayName:  displayName,
		ContextID:    ref.ContextID,
		ToolType:     ref.ToolType,
		ElementID:    ref.ElementID,
		CardID:       ref.CardID,
		Content:      fmt.Sprintf("🔧 Externes Tool: %s (%s)", displayName, toolName),
		ShouldBeBold: true,
	}
}

// FilePlaceholder is the bold text written into a fresh text element when a
// file element is replayed; files themselves cannot be uploaded.
func (e Element) FilePlaceholder() string {
	return fmt.Sprintf("📎 Datei-Platzhalter: [%s], %s", e.FileName, e.FileInfo)
}

// Summary returns a short one-line description for logs.
func (e Element) Summary() string {
	s := strings.Join(strings.Fields(e.Content), " ")
	if r := []rune(s); len(r) > 50 {
		s = string(r[:50]) + "..."
	}
	return fmt.Sprintf("%s #%d %q", e.Type, e.Order, s)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
