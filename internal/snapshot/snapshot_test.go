package snapshot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"boardsnap/internal/board"
	"boardsnap/internal/dom"
	"boardsnap/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	contexts    map[string]string // elementID -> context id
	tools       map[string]string // context id -> tool id
	failBuild   bool
	contextArgs []string
	toolArgs    []string
}

func (f *fakeResolver) ContextID(_ context.Context, cardID, elementID string) string {
	f.contextArgs = append(f.contextArgs, cardID+"/"+elementID)
	return f.contexts[elementID]
}

func (f *fakeResolver) ToolID(_ context.Context, contextID string) (string, error) {
	f.toolArgs = append(f.toolArgs, contextID)
	if f.failBuild {
		return "", errors.New("bad request")
	}
	if id, ok := f.tools[contextID]; ok {
		return id, nil
	}
	return resolver.UnknownStatus, nil
}

const page = `<html><body>
<div data-testid="board-column-0">
  <div data-testid="column-title-0">Tools</div>
  <div data-testid="board-card-c1">
    <div data-testid="card-title">Mit Werkzeug</div>
    <div data-testid="board-contentelement-0">
      <div data-testid="board-external-tool-element-lb" id="0123456789abcdef01234567"><span data-testid="content-element-title-slot">Film</span></div>
    </div>
    <div data-testid="board-contentelement-1">
      <div data-testid="board-external-tool-element-lb" id="el-2"><span data-testid="content-element-title-slot">Lookup</span></div>
    </div>
    <div data-testid="board-contentelement-2">
      <div data-testid="board-external-tool-element-lb" id="tenchars10"><span data-testid="content-element-title-slot">Kurz</span></div>
    </div>
  </div>
</div>
<div data-testid="board-column-1">
  <div data-testid="column-title-1">Alt</div>
  <div data-testid="board-card-c2">
    <div data-testid="card-title">Legacy</div>
    <div data-testid="board-contentelement-0"><div class="ck-editor__editable" contenteditable="true">Hello</div></div>
  </div>
</div>
</body></html>`

func serialize(t *testing.T, r IdentityResolver) (*board.Document, Report) {
	t.Helper()
	root, err := dom.ParseString(page)
	require.NoError(t, err)
	clock := func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return NewSerializer(r, WithClock(clock)).Serialize(context.Background(), root)
}

func TestSerialize_ResolvesExternalTools(t *testing.T) {
	fr := &fakeResolver{
		contexts: map[string]string{"el-2": "abcdefabcdefabcdefabcdef"},
		tools: map[string]string{
			"0123456789abcdef01234567": "Q1",
			"abcdefabcdefabcdefabcdef": "Q2",
		},
	}
	doc, report := serialize(t, fr)

	els := doc.Columns[0].Cards[0].Elements
	require.Len(t, els, 3)
	assert.Equal(t, "Q1", els[0].ToolID)
	assert.Equal(t, "abcdefabcdefabcdefabcdef", els[1].ContextID)
	assert.Equal(t, "Q2", els[1].ToolID)

	assert.Equal(t, []string{"c1/el-2", "c1/tenchars10"}, fr.contextArgs)
	assert.Equal(t, []string{"0123456789abcdef01234567", "abcdefabcdefabcdefabcdef"}, fr.toolArgs)
	assert.Equal(t, 2, report.ContextLookups)
	assert.Equal(t, 2, report.ToolLookups)
}

func TestSerialize_ShortContextIDNeverLooksUpTool(t *testing.T) {
	fr := &fakeResolver{}
	doc, report := serialize(t, fr)

	short := doc.Columns[0].Cards[0].Elements[2]
	assert.Equal(t, "tenchars10", short.ContextID)
	assert.Equal(t, resolver.NoValidContextID, short.ToolID)
	assert.NotContains(t, fr.toolArgs, "tenchars10")

	require.Len(t, report.Issues, 3)
	assert.Equal(t, resolver.NoValidContextID, report.Issues[2].ToolID)
	assert.Equal(t, "Kurz", report.Issues[2].DisplayName)
}

func TestSerialize_HardFailureBecomesExtractionFailed(t *testing.T) {
	doc, _ := serialize(t, &fakeResolver{failBuild: true})
	assert.Equal(t, resolver.ExtractionFailed, doc.Columns[0].Cards[0].Elements[0].ToolID)
}

func TestSerialize_LegacyFallbackAndTotals(t *testing.T) {
	doc, report := serialize(t, nil)

	legacy := doc.Columns[1].Cards[0]
	assert.Empty(t, legacy.Elements)
	assert.NotNil(t, legacy.Elements)
	assert.Equal(t, "Hello", legacy.Content)
	assert.Equal(t, 1, report.LegacyCards)

	assert.Equal(t, "2025-01-02T03:04:05.000Z", doc.ExportDate)
	assert.Equal(t, 2, doc.TotalColumns)
	assert.Equal(t, 2, doc.TotalCards)
	assert.Equal(t, 3, doc.TotalExternalTools)
	assert.Equal(t, 3, doc.TotalElements)
	assert.Empty(t, doc.Columns[0].Cards[0].Elements[0].ToolID, "offline export leaves ids empty")
	assert.Equal(t, "Export erfolgreich! 3 Elemente (3 Externe Tools) in 2 Karten.", report.Message())
}

func TestSerialize_FreshDocumentEachCall(t *testing.T) {
	root, err := dom.ParseString(page)
	require.NoError(t, err)
	s := NewSerializer(&fakeResolver{})
	first, _ := s.Serialize(context.Background(), root)
	first.Columns[0].Title = "mutated"
	second, _ := s.Serialize(context.Background(), root)
	assert.Equal(t, "Tools", second.Columns[0].Title)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123, time.UTC)
	assert.Equal(t, "board-export-v8.7-2024-05-06T07-08-09.json", FileName(ts))
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	doc, _ := serialize(t, &fakeResolver{tools: map[string]string{"0123456789abcdef01234567": "Q1"}})

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"exportDate\""))
	assert.Contains(t, buf.String(), `"🔧 Externes Tool: Film (lb)"`)

	im, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "8.7", im.Version)
	assert.False(t, im.Legacy)
	assert.Equal(t, doc.Columns, im.Columns)
	assert.Equal(t, 3, im.Declared.Elements)
	assert.Equal(t, "Import erfolgreich! 3 Elemente importiert. (v8.7)", im.Message())
}

func TestParse_FormatDetection(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		version string
		legacy  bool
		message string
	}{
		{
			name:    "bare column array",
			data:    `[{"title":"A","cards":[{"title":"x","content":"<p>x</p>"}]}]`,
			version: "5.0",
			message: "Import erfolgreich! (Legacy-Format)",
		},
		{
			name:    "unversioned with elements",
			data:    `{"columns":[{"title":"A","cards":[{"title":"x","elements":[{"order":0,"type":"text","content":"x"}]}]}]}`,
			version: "5.0",
		},
		{
			name:    "old version without elements",
			data:    `{"version":"3.1","columns":[{"title":"A","cards":[{"title":"x","content":"x"}]}]}`,
			version: LegacyVersion,
			legacy:  true,
			message: "Import erfolgreich! (Legacy-Format)",
		},
		{
			name:    "counted version without totals",
			data:    `{"version":"8.5","columns":[{"title":"A"}]}`,
			version: "8.5",
			message: "Import erfolgreich! Unbekannte Anzahl Elemente importiert. (v8.5)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im, err := Parse([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.version, im.Version)
			assert.Equal(t, tt.legacy, im.Legacy)
			for _, col := range im.Columns {
				for _, card := range col.Cards {
					assert.NotNil(t, card.Elements)
				}
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, im.Message())
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`{"version":"8.7","columns":[]}`))
	assert.ErrorIs(t, err, ErrNoColumns)

	_, err = Parse([]byte(`[]`))
	assert.ErrorIs(t, err, ErrNoColumns)

	_, err = Parse([]byte(`"columns"`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte(`{"columns": 3}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}
