package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boardsnap/internal/board"
	"boardsnap/internal/locator"
	"boardsnap/internal/resolver"
)

// addElement opens the element picker and runs the kind's input flow.
func (e *Engine) addElement(ctx context.Context, el board.Element) error {
	e.log.Debug("adding element %s", el.Summary())
	var btn locator.Control
	if err := Run(ctx,
		locate(addElementTarget(), e.surface, &btn),
		click("open element picker", &btn, e.timing.ElementCreation),
	); err != nil {
		return err
	}

	switch el.Type {
	case board.KindText:
		if err := e.pick(ctx, board.KindText); err != nil {
			return err
		}
		if el.ShouldBeBold {
			return e.insertBold(ctx, el.Content)
		}
		return e.insertText(ctx, el.Content)

	case board.KindFile:
		if err := e.pick(ctx, board.KindText); err != nil {
			return err
		}
		return e.insertBold(ctx, el.FilePlaceholder())

	case board.KindDrawing, board.KindCollabEditor:
		return e.pick(ctx, el.Type)

	case board.KindVideoConference:
		if err := e.pick(ctx, el.Type); err != nil {
			return err
		}
		return e.fillOptionalField(ctx, videoTitleTarget(), el.Title)

	case board.KindLink:
		if err := e.pick(ctx, el.Type); err != nil {
			return err
		}
		return e.fillField(ctx, linkURLTarget(), el.URL)

	case board.KindExternalTool:
		if err := e.pick(ctx, el.Type); err != nil {
			return err
		}
		return e.configureTool(ctx, el)

	default:
		if err := e.pick(ctx, board.KindText); err != nil {
			return err
		}
		return e.insertText(ctx, el.Content)
	}
}

// pick clicks the picker entry for kind.
func (e *Engine) pick(ctx context.Context, kind board.Kind) error {
	var entry locator.Control
	return Run(ctx,
		locate(pickerTarget(kind), e.surface, &entry),
		click("choose "+string(kind), &entry, e.timing.ElementSelection),
	)
}

// fillField types value into a single-line field of a new element and
// confirms it with Enter.
func (e *Engine) fillField(ctx context.Context, target locator.Cascade, value string) error {
	var field locator.Control
	return Run(ctx,
		Wait("await element form", e.timing.UIStabilization),
		locate(target, e.surface, &field),
		focus("focus "+target.Target, &field, e.timing.Focus),
		setValue("fill "+target.Target, &field, value, e.timing.LinkInput),
		press("confirm "+target.Target, &field, locator.KeyEnter, e.timing.ElementContent),
	)
}

// fillOptionalField is fillField for forms that may not ask for a value.
// The element already exists once the picker entry was clicked, so a
// missing field only costs the value.
func (e *Engine) fillOptionalField(ctx context.Context, target locator.Cascade, value string) error {
	if err := Run(ctx, Wait("await element form", e.timing.UIStabilization)); err != nil {
		return err
	}
	field, err := target.Locate(ctx, e.surface)
	if errors.Is(err, locator.ErrNotFound) {
		e.log.Warn("%s not found, keeping the default title", target.Target)
		return nil
	}
	if err != nil {
		return err
	}
	return Run(ctx,
		focus("focus "+target.Target, &field, e.timing.Focus),
		setValue("fill "+target.Target, &field, value, e.timing.LinkInput),
		press("confirm "+target.Target, &field, locator.KeyEnter, e.timing.ElementContent),
	)
}

// setFirstElement writes the content of a freshly opened card's editor.
func (e *Engine) setFirstElement(ctx context.Context, content string, bold bool) error {
	var editor locator.Control
	if err := Run(ctx, locate(firstEditorTarget(), e.surface, &editor)); err != nil {
		return err
	}
	if bold {
		return e.writeBold(ctx, editor, content, e.timing.Field)
	}
	return Run(ctx, setRichText("set card content", &editor, content, e.timing.Field))
}

func (e *Engine) insertText(ctx context.Context, content string) error {
	var editor locator.Control
	return Run(ctx,
		Wait("await editor", e.timing.UIStabilization),
		locate(latestEditorTarget(), e.surface, &editor),
		setRichText("set text", &editor, content, e.timing.ElementContent),
	)
}

func (e *Engine) insertBold(ctx context.Context, content string) error {
	var editor locator.Control
	if err := Run(ctx,
		Wait("await editor", e.timing.UIStabilization),
		locate(latestEditorTarget(), e.surface, &editor),
	); err != nil {
		return err
	}
	return e.writeBold(ctx, editor, content, e.timing.ElementContent)
}

// writeBold sets content, selects it and applies bold. Editors that cannot
// format get the content wrapped in <strong> instead.
func (e *Engine) writeBold(ctx context.Context, editor locator.Control, content string, settle time.Duration) error {
	err := Run(ctx,
		setRichText("set bold text", &editor, content, e.timing.BoldFormatting),
		Step{Name: "select all", Do: editor.SelectAll, Settle: e.timing.BoldFormatting},
		Step{Name: "apply bold", Do: editor.ApplyBold, Settle: settle},
	)
	if err == nil || ctx.Err() != nil {
		return err
	}
	e.log.Debug("bold command unavailable, writing markup: %v", err)
	return Run(ctx, setRichText("set strong markup", &editor, "<strong>"+content+"</strong>", settle))
}

// appendToCurrentEditor is the degraded path for text that could not get its
// own element.
func (e *Engine) appendToCurrentEditor(ctx context.Context, content string) error {
	editor, err := fallbackEditorTarget().Locate(ctx, e.surface)
	if err != nil {
		return err
	}
	current, err := editor.RichText(ctx)
	if err != nil {
		return fmt.Errorf("read editor: %w", err)
	}
	e.log.Debug("appending %d bytes to the current editor", len(content))
	return Run(ctx, setRichText("append text", &editor, current+content, e.timing.ElementContent))
}

// configureTool fills the external tool dialog: provider, display name,
// identifier, save.
func (e *Engine) configureTool(ctx context.Context, el board.Element) error {
	provider, ok := board.ProviderByName(el.ToolType)
	if !ok {
		e.log.Warn("unknown tool type %q, using %s", el.ToolType, board.DefaultProvider)
		provider, _ = board.ProviderByName("")
	}

	var search locator.Control
	if err := Run(ctx,
		Wait("await tool dialog", e.timing.UIStabilization),
		locate(toolSearchTarget(), e.surface, &search),
		focus("focus tool search", &search, e.timing.Focus),
		setValue("search "+provider.Name, &search, provider.SearchText, e.timing.Dropdown),
	); err != nil {
		return err
	}

	if provider.ListItemTitle == "" {
		if err := Run(ctx,
			press("highlight "+provider.Name, &search, locator.KeyArrowDown, e.timing.Focus),
			press("choose "+provider.Name, &search, locator.KeyEnter, e.timing.ExternalTool),
		); err != nil {
			return err
		}
	} else {
		item, err := toolListItemTarget(provider.ListItemTitle).Locate(ctx, e.surface)
		switch {
		case err == nil:
			if err := Run(ctx, click("choose "+provider.Name, &item, e.timing.ExternalTool)); err != nil {
				return err
			}
		case errors.Is(err, locator.ErrNotFound):
			e.log.Warn("%v", err)
		default:
			return err
		}
	}

	if err := e.setDisplayName(ctx, el.DisplayName); err != nil {
		return err
	}

	if provider.NeedsToolID {
		if resolver.IsSentinel(el.ToolID) || el.ToolID == "" {
			e.log.Warn("tool %q has no usable id (%q)", el.DisplayName, el.ToolID)
		}
		var field locator.Control
		if err := Run(ctx,
			Wait("await tool id field", e.timing.Field),
			locate(toolIDTarget(), e.surface, &field),
			focus("focus tool id", &field, e.timing.Focus),
			setValue("set tool id", &field, el.ToolID, e.timing.Field),
		); err != nil {
			return err
		}
	}

	var save locator.Control
	return Run(ctx,
		Wait("await save", e.timing.Field),
		locate(saveTarget(), e.surface, &save),
		click("save tool", &save, e.timing.ElementContent),
	)
}

// setDisplayName fills the optional display name field.
func (e *Engine) setDisplayName(ctx context.Context, name string) error {
	if err := Run(ctx, Wait("await display name", e.timing.Field)); err != nil {
		return err
	}
	field, err := displayNameTarget().Locate(ctx, e.surface)
	if errors.Is(err, locator.ErrNotFound) {
		e.log.Debug("display name field not found, keeping the default")
		return nil
	}
	if err != nil {
		return err
	}
	return Run(ctx,
		focus("focus display name", &field, e.timing.Focus),
		setValue("set display name", &field, name, e.timing.Field),
		press("confirm display name", &field, locator.KeyEnter, 0),
	)
}
