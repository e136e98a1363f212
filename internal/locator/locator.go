// Package locator finds interactive controls on a board page through ordered
// cascades of lookup strategies.
//
// The page itself is abstracted behind Surface and Control so the same
// cascades run against a live browser tab and against an in-memory page in
// tests.
package locator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"boardsnap/internal/logging"
)

// Key is a keyboard key dispatched to a control.
type Key string

const (
	KeyEnter     Key = "Enter"
	KeyArrowDown Key = "ArrowDown"
)

// Control is one element of the page.
type Control interface {
	// Text returns the trimmed text content.
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
	// Tag returns the lower-case tag name.
	Tag(ctx context.Context) (string, error)
	// Find returns the descendants matching a CSS selector in document order.
	Find(ctx context.Context, selector string) ([]Control, error)

	Click(ctx context.Context) error
	Focus(ctx context.Context) error
	// SetValue assigns an input's value and fires an input event.
	SetValue(ctx context.Context, value string) error
	Press(ctx context.Context, key Key) error

	// SetRichText replaces a rich-text editor's content.
	SetRichText(ctx context.Context, html string) error
	// RichText returns a rich-text editor's content.
	RichText(ctx context.Context) (string, error)
	// SelectAll selects the whole editor content.
	SelectAll(ctx context.Context) error
	// ApplyBold toggles bold on the current selection.
	ApplyBold(ctx context.Context) error
}

// Surface is the page a replay drives.
type Surface interface {
	Find(ctx context.Context, selector string) ([]Control, error)
	// Focused returns the control holding focus, or nil.
	Focused(ctx context.Context) (Control, error)
	// Blur removes focus from the active element.
	Blur(ctx context.Context) error
	// ClickBody clicks the document body, closing open editors.
	ClickBody(ctx context.Context) error
}

// Scope tells how far a lookup failure reaches.
type Scope string

const (
	// ScopeColumn failures abort the whole import.
	ScopeColumn Scope = "column"
	// ScopeCard failures skip the current card.
	ScopeCard Scope = "card"
	// ScopeElement failures drop or degrade one element.
	ScopeElement Scope = "element"
)

// ErrNotFound is wrapped by every cascade exhaustion error.
var ErrNotFound = errors.New("control not found")

// NotFoundError reports an exhausted cascade.
type NotFoundError struct {
	Scope  Scope
	Target string
	Tried  []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found (tried %s)", e.Scope, e.Target, strings.Join(e.Tried, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Kind orders strategies inside a cascade.
type Kind int

const (
	// Identifier strategies match a stable test id.
	Identifier Kind = iota
	// Heuristic strategies match selectors, attributes, text or labels.
	Heuristic
	// Icon strategies match an SVG path signature.
	Icon
)

func (k Kind) String() string {
	switch k {
	case Identifier:
		return "identifier"
	case Heuristic:
		return "heuristic"
	case Icon:
		return "icon"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FindFunc looks for a control. It returns nil, nil on a miss.
type FindFunc func(ctx context.Context, s Surface) (Control, error)

// Strategy is one way of finding a control.
type Strategy struct {
	Kind Kind
	Name string
	Find FindFunc
}

// Cascade tries its strategies by kind, identifier first, keeping the
// declared order within a kind. The first hit wins.
type Cascade struct {
	Target     string
	Scope      Scope
	Strategies []Strategy
}

// Locate runs the cascade.
func (c Cascade) Locate(ctx context.Context, s Surface) (Control, error) {
	ordered := make([]Strategy, len(c.Strategies))
	copy(ordered, c.Strategies)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Kind < ordered[j].Kind })

	log := logging.Get(logging.CategoryLocator)
	tried := make([]string, 0, len(ordered))
	for _, st := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ctl, err := st.Find(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Debug("%s: strategy %s failed: %v", c.Target, st.Name, err)
		}
		if ctl != nil {
			log.Debug("%s found via %s strategy %s", c.Target, st.Kind, st.Name)
			return ctl, nil
		}
		tried = append(tried, st.Name)
	}
	return nil, &NotFoundError{Scope: c.Scope, Target: c.Target, Tried: tried}
}
