// Package dom provides CSS selector queries and text helpers over
// golang.org/x/net/html trees for the board extractor.
package dom

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector is a compiled selector list.
type Selector struct {
	source string
	group  cascadia.SelectorGroup
}

// String returns the source text of the selector.
func (s Selector) String() string { return s.source }

// Compile parses a selector list.
func Compile(source string) (Selector, error) {
	group, err := cascadia.ParseGroup(source)
	if err != nil {
		return Selector{}, fmt.Errorf("selector %q: %w", source, err)
	}
	return Selector{source: source, group: group}, nil
}

// MustCompile is Compile for package-level selectors known to be valid.
func MustCompile(source string) Selector {
	s, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return s
}

// Match reports whether n matches any selector of the list.
func (s Selector) Match(n *html.Node) bool {
	if n == nil || s.group == nil {
		return false
	}
	return s.group.Match(n)
}
