package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument_DerivesTotals(t *testing.T) {
	cols := []Column{
		{Title: "A", Cards: []Card{
			NewCard("one", []Element{
				NewText(0, "<p>x</p>"),
				NewFile(1, "a.pdf", "PDF"),
				NewLink(2, "Docs", "https://example.org"),
			}),
			NewLegacyCard("legacy", "<p>old</p>"),
		}},
		{Title: "B", Cards: []Card{
			NewCard("two", []Element{
				NewVideoConference(0, ""),
				NewExternalTool(1, ExternalToolRef{ToolName: "lb"}),
			}),
		}},
	}

	doc := NewDocument(cols, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC))

	assert.Equal(t, FormatVersion, doc.Version)
	assert.Equal(t, "2024-03-01T10:20:30.000Z", doc.ExportDate)
	assert.Equal(t, 2, doc.TotalColumns)
	assert.Equal(t, 3, doc.TotalCards)
	assert.Equal(t, 1, doc.TotalFiles)
	assert.Equal(t, 1, doc.TotalLinks)
	assert.Equal(t, 1, doc.TotalVideoConferences)
	assert.Equal(t, 1, doc.TotalExternalTools)
	assert.Equal(t, 5, doc.TotalElements)
}

func TestCard_RecomputeConcatenatesContent(t *testing.T) {
	c := NewCard("t", []Element{NewText(0, "a"), NewDrawing(1, "")})
	assert.Equal(t, "a🖌️ Whiteboard: Whiteboard", c.Content)

	legacy := NewLegacyCard("t", "<p>keep</p>")
	legacy.Recompute()
	assert.Equal(t, "<p>keep</p>", legacy.Content)
	assert.True(t, legacy.IsLegacy())
}

func TestConstructors_Defaults(t *testing.T) {
	f := NewFile(2, "", "")
	assert.Equal(t, "Datei_3", f.FileName)
	assert.Equal(t, DefaultFileInfo, f.FileInfo)
	assert.True(t, f.ShouldBeBold)
	assert.Equal(t, "📎 Datei-Platzhalter: [Datei_3], Unbekanntes Format", f.FilePlaceholder())

	l := NewLink(0, "", "")
	assert.Equal(t, DefaultLinkTitle, l.Title)
	assert.Equal(t, URLNotFound, l.URL)

	tool := NewExternalTool(0, ExternalToolRef{ToolName: "lichtblick"})
	assert.Equal(t, "lichtblick", tool.DisplayName)
	assert.Empty(t, tool.ToolID)
	assert.Equal(t, "🔧 Externes Tool: lichtblick (lichtblick)", tool.Content)
}

func TestKind_Emphasized(t *testing.T) {
	assert.False(t, KindText.Emphasized())
	for _, k := range Kinds[1:] {
		assert.True(t, k.Emphasized(), k)
	}
	assert.False(t, KindUnknown.Valid())
}

func TestProviders(t *testing.T) {
	p, ok := ProviderByIcon("/api/v3/file/external-tools/651d3288054b8000e321532e/logo")
	require.True(t, ok)
	assert.Equal(t, ProviderBettermarks, p.Name)
	assert.False(t, p.NeedsToolID)

	p, ok = ProviderByName("")
	require.True(t, ok)
	assert.Equal(t, ProviderLichtblick, p.Name)

	_, ok = ProviderByName("Geogebra")
	assert.False(t, ok)
}
