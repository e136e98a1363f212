package locator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// fold case-folds s. Casers keep state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether substr occurs in s under Unicode case folding.
func ContainsFold(s, substr string) bool {
	return strings.Contains(fold(s), fold(substr))
}

// EqualFold compares two strings under Unicode case folding.
func EqualFold(a, b string) bool {
	return fold(a) == fold(b)
}

// First returns the first control matching selector on the page.
func First(ctx context.Context, s Surface, selector string) (Control, error) {
	found, err := s.Find(ctx, selector)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// Last returns the last control matching selector on the page.
func Last(ctx context.Context, s Surface, selector string) (Control, error) {
	found, err := s.Find(ctx, selector)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[len(found)-1], nil
}

// BySelector matches the first control for a CSS selector.
func BySelector(kind Kind, selector string) Strategy {
	return Strategy{
		Kind: kind,
		Name: selector,
		Find: func(ctx context.Context, s Surface) (Control, error) {
			return First(ctx, s, selector)
		},
	}
}

// ByLastSelector matches the last control for a CSS selector, which is the
// most recently inserted one on pages that append.
func ByLastSelector(kind Kind, selector string) Strategy {
	return Strategy{
		Kind: kind,
		Name: "last " + selector,
		Find: func(ctx context.Context, s Surface) (Control, error) {
			return Last(ctx, s, selector)
		},
	}
}

// Selectors expands into one BySelector strategy per selector.
func Selectors(kind Kind, selectors ...string) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, BySelector(kind, sel))
	}
	return out
}

// ByInnerText matches the first candidate that has a descendant matching
// inner whose text satisfies match. An empty inner tests the candidate's
// own text.
func ByInnerText(name, candidates, inner string, match func(string) bool) Strategy {
	return Strategy{
		Kind: Heuristic,
		Name: name,
		Find: func(ctx context.Context, s Surface) (Control, error) {
			found, err := s.Find(ctx, candidates)
			if err != nil {
				return nil, err
			}
			for _, c := range found {
				ok, err := innerTextMatches(ctx, c, inner, match)
				if err != nil {
					return nil, err
				}
				if ok {
					return c, nil
				}
			}
			return nil, nil
		},
	}
}

func innerTextMatches(ctx context.Context, c Control, inner string, match func(string) bool) (bool, error) {
	targets := []Control{c}
	if inner != "" {
		var err error
		if targets, err = c.Find(ctx, inner); err != nil {
			return false, err
		}
	}
	for _, t := range targets {
		text, err := t.Text(ctx)
		if err != nil {
			return false, err
		}
		if match(text) {
			return true, nil
		}
	}
	return false, nil
}

// ByIconPath matches the first button below scope whose first SVG path
// contains signature. An empty scope searches the whole page.
func ByIconPath(name, scope, signature string) Strategy {
	return Strategy{
		Kind: Icon,
		Name: name,
		Find: func(ctx context.Context, s Surface) (Control, error) {
			buttons, err := buttonsIn(ctx, s, scope)
			if err != nil {
				return nil, err
			}
			for _, b := range buttons {
				paths, err := b.Find(ctx, "svg path")
				if err != nil {
					return nil, err
				}
				if len(paths) == 0 {
					continue
				}
				d, _, err := paths[0].Attr(ctx, "d")
				if err != nil {
					return nil, err
				}
				if strings.Contains(d, signature) {
					return b, nil
				}
			}
			return nil, nil
		},
	}
}

func buttonsIn(ctx context.Context, s Surface, scope string) ([]Control, error) {
	if scope == "" {
		return s.Find(ctx, "button")
	}
	root, err := First(ctx, s, scope)
	if err != nil || root == nil {
		return nil, err
	}
	return root.Find(ctx, "button")
}

// ByLabel matches the control referenced by a <label for=...> whose text
// equals label.
func ByLabel(label string) Strategy {
	return Strategy{
		Kind: Heuristic,
		Name: fmt.Sprintf("label %q", label),
		Find: func(ctx context.Context, s Surface) (Control, error) {
			labels, err := s.Find(ctx, "label")
			if err != nil {
				return nil, err
			}
			for _, l := range labels {
				text, err := l.Text(ctx)
				if err != nil {
					return nil, err
				}
				target, ok, err := l.Attr(ctx, "for")
				if err != nil {
					return nil, err
				}
				if text != label || !ok || target == "" {
					continue
				}
				c, err := First(ctx, s, fmt.Sprintf("[id=%q]", target))
				if err != nil || c != nil {
					return c, err
				}
			}
			return nil, nil
		},
	}
}

// ByFocus matches the focused control when its tag is one of tags.
func ByFocus(tags ...string) Strategy {
	return Strategy{
		Kind: Heuristic,
		Name: "focused " + strings.Join(tags, "/"),
		Find: func(ctx context.Context, s Surface) (Control, error) {
			c, err := s.Focused(ctx)
			if err != nil || c == nil {
				return nil, err
			}
			tag, err := c.Tag(ctx)
			if err != nil {
				return nil, err
			}
			for _, t := range tags {
				if tag == t {
					return c, nil
				}
			}
			return nil, nil
		},
	}
}
