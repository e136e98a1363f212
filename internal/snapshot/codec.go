package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"boardsnap/internal/board"
)

var (
	// ErrNoColumns is returned for documents without any column.
	ErrNoColumns = errors.New("snapshot contains no columns")
	// ErrMalformed is returned when the document is not a snapshot at all.
	ErrMalformed = errors.New("malformed snapshot")
)

// LegacyVersion names the oldest, element-less snapshot shape.
const LegacyVersion = "4.x"

// structuredVersion is assumed for structured documents without a version.
const structuredVersion = "5.0"

// knownVersions lists every version that wrote typed elements.
var knownVersions = map[string]bool{
	"5.0": true, "6.0": true, "6.1": true, "6.2": true, "7.0": true,
	"8.0": true, "8.1": true, "8.2": true, "8.3": true, "8.4": true,
	"8.5": true, "8.6": true, "8.7": true,
}

// countedVersions report their element count in the import summary.
var countedVersions = map[string]bool{
	"8.2": true, "8.3": true, "8.4": true, "8.5": true, "8.6": true, "8.7": true,
}

// Import is a parsed snapshot ready for replay.
type Import struct {
	Version string
	Legacy  bool
	Columns []board.Column
	// Declared holds the totals written by the exporter, zero for bare
	// column arrays.
	Declared board.Totals
}

// Parse decodes a snapshot and detects its format. A top-level array of
// columns, a known version, or a first card carrying elements all mean the
// structured format; anything else is the legacy shape.
func Parse(data []byte) (*Import, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	im := &Import{}
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &im.Columns); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		im.Version = structuredVersion
	case '{':
		var doc board.Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		im.Columns = doc.Columns
		im.Declared = board.Totals{
			Columns:          doc.TotalColumns,
			Cards:            doc.TotalCards,
			Files:            doc.TotalFiles,
			Links:            doc.TotalLinks,
			VideoConferences: doc.TotalVideoConferences,
			ExternalTools:    doc.TotalExternalTools,
			Elements:         doc.TotalElements,
		}
		switch {
		case knownVersions[doc.Version]:
			im.Version = doc.Version
		case firstCardHasElements(doc.Columns):
			im.Version = doc.Version
			if im.Version == "" {
				im.Version = structuredVersion
			}
		default:
			im.Version = LegacyVersion
			im.Legacy = true
		}
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrMalformed)
	}

	if len(im.Columns) == 0 {
		return nil, ErrNoColumns
	}
	for ci := range im.Columns {
		for ki := range im.Columns[ci].Cards {
			if im.Columns[ci].Cards[ki].Elements == nil {
				im.Columns[ci].Cards[ki].Elements = []board.Element{}
			}
		}
	}
	return im, nil
}

func firstCardHasElements(cols []board.Column) bool {
	return len(cols) > 0 && len(cols[0].Cards) > 0 && len(cols[0].Cards[0].Elements) > 0
}

// Message is the user-facing summary line after a successful import.
func (im *Import) Message() string {
	if !countedVersions[im.Version] {
		return "Import erfolgreich! (Legacy-Format)"
	}
	count := "Unbekannte Anzahl"
	if im.Declared.Elements > 0 {
		count = fmt.Sprint(im.Declared.Elements)
	}
	return fmt.Sprintf("Import erfolgreich! %s Elemente importiert. (v%s)", count, im.Version)
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *board.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Marshal returns doc as indented JSON.
func Marshal(doc *board.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
