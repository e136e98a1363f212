package replay

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"boardsnap/internal/board"
	"boardsnap/internal/locator"
)

// SVG path signatures of the board's icon-only buttons.
const (
	iconPlus         = "M19,13H13V19H11V13H5V11H11V5H13V11H19V13Z"
	iconWhiteboard   = "M2,3H10A2,2 0 0,1 12,1A2,2 0 0,1 14,3H22V5H21V16H15.25L17,22H15L13.25,16H10.75L9,22H7L8.75,16H3V5H2V3M5,5V14H19V5H5Z"
	iconExternalTool = "M22,13.5C22,15.26 20.7,16.72 19,16.96V20A2,2 0 0,1 17,22H13.2V21.7A2.7,2.7 0 0,0 10.5,19C9,19 7.8,20.21 7.8,21.7V22H4A2,2 0 0,1 2,20V16.2H2.3C3.79,16.2 5,15 5,13.5C5,12 3.79,10.8 2.3,10.8H2V7A2,2 0 0,1 4,5H7.04C7.28,3.3 8.74,2 10.5,2C12.26,2 13.72,3.3 13.96,5H17A2,2 0 0,1 19,7V10.04C20.7,10.28 22,11.74 22,13.5"
)

const (
	selEditor       = `.ck-editor__editable[contenteditable="true"]`
	selEditorShell  = `div.ck-content`
	selTitleInput   = `input[placeholder*="Titel"], textarea[placeholder*="Titel"]`
	selColumns      = `[data-testid^="board-column-"]`
	selAddElement   = `[data-testid="add-element-btn"]`
	selSaveButton   = `[data-testid="save-button"]`
	selToolSearch   = `input[type="text"]`
	selSelectItem   = `[data-testid="configuration-select-item"]`
	selListItem     = `.v-list-item`
	selListTitle    = `.v-list-item-title`
	selToolIDInput  = `[data-testid="id"] input, input[id*="input-v-121"]`
	labelToolName   = "Anzeigename"
	subtitleTools   = "Externe Tools"
	selDisplayInput = `input[placeholder*="Anzeigename"]`
)

var addColumnLabel = regexp.MustCompile(`(?i)Abschnitt hinzufügen|Spalte hinzufügen`)

func addColumnTarget() locator.Cascade {
	return locator.Cascade{
		Target: "add column button",
		Scope:  locator.ScopeColumn,
		Strategies: []locator.Strategy{
			locator.ByInnerText("add column label", "button", "span.v-btn__content", addColumnLabel.MatchString),
			locator.BySelector(locator.Identifier, `[data-testid="add-column"]`),
		},
	}
}

func titleTarget(scope locator.Scope) locator.Cascade {
	return locator.Cascade{
		Target:     string(scope) + " title field",
		Scope:      scope,
		Strategies: locator.Selectors(locator.Heuristic, selTitleInput),
	}
}

func columnScope(col int) string {
	return fmt.Sprintf(`[data-testid^="board-column-%d"]`, col)
}

func addCardTarget(col int) locator.Cascade {
	scope := columnScope(col)
	strategies := locator.Selectors(locator.Identifier,
		fmt.Sprintf(`[data-testid="column-%d-add-card-btn"]`, col),
		fmt.Sprintf(`[data-testid="add-card-btn-%d"]`, col),
		scope+` [data-testid*="add-card"]`,
	)
	strategies = append(strategies, locator.Selectors(locator.Heuristic,
		scope+` button[aria-label*="Karte"]`,
		scope+` button[aria-label*="hinzufügen"]`,
	)...)
	strategies = append(strategies,
		addCardKeywords(scope),
		locator.ByIconPath("plus icon", scope, iconPlus),
	)
	return locator.Cascade{
		Target:     fmt.Sprintf("add card button of column %d", col),
		Scope:      locator.ScopeCard,
		Strategies: strategies,
	}
}

// addCardKeywords scans the column's buttons for add-ish text, test ids or
// labels.
func addCardKeywords(scope string) locator.Strategy {
	return locator.Strategy{
		Kind: locator.Heuristic,
		Name: "column button keywords",
		Find: func(ctx context.Context, s locator.Surface) (locator.Control, error) {
			col, err := locator.First(ctx, s, scope)
			if err != nil || col == nil {
				return nil, err
			}
			buttons, err := col.Find(ctx, "button")
			if err != nil {
				return nil, err
			}
			for _, b := range buttons {
				text, err := b.Text(ctx)
				if err != nil {
					return nil, err
				}
				testID, _, err := b.Attr(ctx, "data-testid")
				if err != nil {
					return nil, err
				}
				aria, _, err := b.Attr(ctx, "aria-label")
				if err != nil {
					return nil, err
				}
				text, testID, aria = strings.ToLower(text), strings.ToLower(testID), strings.ToLower(aria)
				if strings.Contains(text, "hinzufügen") || strings.Contains(text, "add") || text == "+" ||
					strings.Contains(testID, "add") || strings.Contains(testID, "card") ||
					strings.Contains(aria, "add") || strings.Contains(aria, "karte") {
					return b, nil
				}
			}
			return nil, nil
		},
	}
}

// firstEditorTarget is the editor a freshly opened card starts with.
func firstEditorTarget() locator.Cascade {
	return locator.Cascade{
		Target:     "card editor",
		Scope:      locator.ScopeCard,
		Strategies: locator.Selectors(locator.Heuristic, selEditor, selEditorShell),
	}
}

// latestEditorTarget is the editor of the most recently added text element.
func latestEditorTarget() locator.Cascade {
	return locator.Cascade{
		Target:     "new editor",
		Scope:      locator.ScopeElement,
		Strategies: []locator.Strategy{locator.ByLastSelector(locator.Heuristic, selEditor)},
	}
}

// fallbackEditorTarget receives degraded content: the focused editor, else
// the card's first one.
func fallbackEditorTarget() locator.Cascade {
	return locator.Cascade{
		Target: "current editor",
		Scope:  locator.ScopeElement,
		Strategies: []locator.Strategy{
			focusedEditor(),
			locator.BySelector(locator.Heuristic, selEditor),
		},
	}
}

func focusedEditor() locator.Strategy {
	return locator.Strategy{
		Kind: locator.Heuristic,
		Name: "focused editor",
		Find: func(ctx context.Context, s locator.Surface) (locator.Control, error) {
			c, err := s.Focused(ctx)
			if err != nil || c == nil {
				return nil, err
			}
			editable, _, err := c.Attr(ctx, "contenteditable")
			if err != nil || editable != "true" {
				return nil, err
			}
			return c, nil
		},
	}
}

func addElementTarget() locator.Cascade {
	return locator.Cascade{
		Target:     "add element button",
		Scope:      locator.ScopeElement,
		Strategies: locator.Selectors(locator.Identifier, selAddElement),
	}
}

// pickerTarget returns the element-type picker entry for kind.
func pickerTarget(kind board.Kind) locator.Cascade {
	c := locator.Cascade{Target: string(kind) + " picker entry", Scope: locator.ScopeElement}
	switch kind {
	case board.KindCollabEditor:
		c.Strategies = locator.Selectors(locator.Identifier, `[data-testid="create-element-collaborative-text-editor"]`)
	case board.KindDrawing:
		c.Strategies = append(
			locator.Selectors(locator.Identifier,
				`[data-testid="create-element-drawing"]`,
				`[data-testid="create-element-whiteboard"]`,
			),
			locator.BySelector(locator.Heuristic, `button[data-testid*="drawing"]`),
			locator.BySelector(locator.Heuristic, `button[data-testid*="whiteboard"]`),
			locator.ByInnerText("whiteboard text", "button", "", func(s string) bool {
				return locator.ContainsFold(s, "whiteboard") || locator.ContainsFold(s, "zeichnung")
			}),
			locator.ByIconPath("whiteboard icon", "", iconWhiteboard),
		)
	case board.KindVideoConference:
		c.Strategies = locator.Selectors(locator.Identifier, `[data-testid="create-element-video-conference"]`)
	case board.KindLink:
		c.Strategies = locator.Selectors(locator.Identifier, `[data-testid="create-element-link"]`)
	case board.KindExternalTool:
		c.Strategies = []locator.Strategy{
			locator.ByInnerText("external tools subtitle", "button", "span.v-btn__content span.subtitle", func(s string) bool {
				return s == subtitleTools
			}),
			locator.ByIconPath("external tool icon", "", iconExternalTool),
		}
	default:
		c.Target = "text picker entry"
		c.Strategies = locator.Selectors(locator.Identifier, `[data-testid="create-element-text"]`)
	}
	return c
}

func videoTitleTarget() locator.Cascade {
	return locator.Cascade{
		Target: "video conference title field",
		Scope:  locator.ScopeElement,
		Strategies: append(
			[]locator.Strategy{locator.ByFocus("input", "textarea")},
			locator.Selectors(locator.Heuristic, `input[type="text"], `+selTitleInput)...,
		),
	}
}

func linkURLTarget() locator.Cascade {
	return locator.Cascade{
		Target: "link url field",
		Scope:  locator.ScopeElement,
		Strategies: append(
			locator.Selectors(locator.Heuristic,
				`input[type="url"], input[placeholder*="URL"], input[placeholder*="Link"], input[placeholder*="http"]`),
			locator.ByFocus("input", "textarea"),
		),
	}
}

func toolSearchTarget() locator.Cascade {
	return locator.Cascade{
		Target:     "tool search field",
		Scope:      locator.ScopeElement,
		Strategies: locator.Selectors(locator.Heuristic, selToolSearch),
	}
}

// toolListItemTarget finds the provider entry in the filtered tool list.
func toolListItemTarget(title string) locator.Cascade {
	equals := func(s string) bool { return s == title }
	configured := locator.ByInnerText("configuration item "+title, selSelectItem, selListTitle, equals)
	configured.Kind = locator.Identifier
	return locator.Cascade{
		Target: fmt.Sprintf("tool list item %q", title),
		Scope:  locator.ScopeElement,
		Strategies: []locator.Strategy{
			configured,
			locator.ByInnerText("list item "+title, selListItem, selListTitle, equals),
		},
	}
}

func displayNameTarget() locator.Cascade {
	return locator.Cascade{
		Target: "display name field",
		Scope:  locator.ScopeElement,
		Strategies: []locator.Strategy{
			locator.ByLabel(labelToolName),
			locator.BySelector(locator.Heuristic, selDisplayInput),
		},
	}
}

func toolIDTarget() locator.Cascade {
	return locator.Cascade{
		Target:     "tool id field",
		Scope:      locator.ScopeElement,
		Strategies: locator.Selectors(locator.Identifier, selToolIDInput),
	}
}

func saveTarget() locator.Cascade {
	return locator.Cascade{
		Target:     "save button",
		Scope:      locator.ScopeElement,
		Strategies: locator.Selectors(locator.Identifier, selSaveButton),
	}
}
