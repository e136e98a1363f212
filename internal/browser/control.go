package browser

import (
	"context"
	"errors"
	"fmt"

	"boardsnap/internal/locator"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// keyEvents maps locator keys to the DOM key, code and keyCode they
// dispatch.
var keyEvents = map[locator.Key]struct {
	code    string
	keyCode int
}{
	locator.KeyEnter:     {"Enter", 13},
	locator.KeyArrowDown: {"ArrowDown", 40},
}

// element adapts a Rod element to locator.Control.
type element struct {
	el *rod.Element
}

var _ locator.Control = (*element)(nil)

func wrapAll(els rod.Elements) []locator.Control {
	out := make([]locator.Control, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el})
	}
	return out
}

func (e *element) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	return e.el.Context(ctx).Eval(js, args...)
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *element) Tag(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, jsTag)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *element) Find(ctx context.Context, selector string) ([]locator.Control, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(els), nil
}

// Click issues a real mouse click and falls back to a script click for
// controls that are covered or off screen.
func (e *element) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err == nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return nil
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, err := el.Eval(jsClick); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (e *element) Focus(ctx context.Context) error {
	return e.el.Context(ctx).Focus()
}

func (e *element) SetValue(ctx context.Context, value string) error {
	_, err := e.eval(ctx, jsSetValue, value)
	return err
}

func (e *element) Press(ctx context.Context, key locator.Key) error {
	ev, ok := keyEvents[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	_, err := e.eval(ctx, jsPress, string(key), ev.code, ev.keyCode)
	return err
}

func (e *element) SetRichText(ctx context.Context, markup string) error {
	_, err := e.eval(ctx, jsSetRichText, markup)
	return err
}

func (e *element) RichText(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, jsRichText)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *element) SelectAll(ctx context.Context) error {
	_, err := e.eval(ctx, jsSelectAll)
	return err
}

// errNoBold is returned when neither the editor nor the document could
// apply bold.
var errNoBold = errors.New("bold command unavailable")

func (e *element) ApplyBold(ctx context.Context) error {
	res, err := e.eval(ctx, jsApplyBold)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return errNoBold
	}
	return nil
}
