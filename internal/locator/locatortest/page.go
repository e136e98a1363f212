// Package locatortest provides an in-memory locator.Surface over an
// x/net/html tree, for tests that drive page interactions without a browser.
package locatortest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"boardsnap/internal/dom"
	"boardsnap/internal/locator"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Handler reacts to an interaction with a node. Handlers run with the page
// locked: they work on nodes directly and must not call Surface or Control
// methods.
type Handler func(p *Page, n *html.Node) error

type binding struct {
	sel dom.Selector
	key locator.Key
	fn  Handler
}

// Page is a mutable in-memory document.
type Page struct {
	mu      sync.Mutex
	root    *html.Node
	focused *html.Node
	clicks  []binding
	keys    []binding
	body    []Handler

	// Actions records every interaction in order.
	Actions []string
}

// NewPage parses markup into a Page.
func NewPage(markup string) (*Page, error) {
	root, err := dom.ParseString(markup)
	if err != nil {
		return nil, err
	}
	return &Page{root: root}, nil
}

// MustPage is NewPage for fixed test markup.
func MustPage(markup string) *Page {
	p, err := NewPage(markup)
	if err != nil {
		panic(err)
	}
	return p
}

// Root returns the document node.
func (p *Page) Root() *html.Node { return p.root }

// Body returns the body element.
func (p *Page) Body() *html.Node {
	return dom.Query(p.root, dom.MustCompile("body"))
}

// OnClick runs fn when a node matching selector is clicked.
func (p *Page) OnClick(selector string, fn Handler) {
	p.clicks = append(p.clicks, binding{sel: dom.MustCompile(selector), fn: fn})
}

// OnKey runs fn when key is pressed on a node matching selector.
func (p *Page) OnKey(selector string, key locator.Key, fn Handler) {
	p.keys = append(p.keys, binding{sel: dom.MustCompile(selector), key: key, fn: fn})
}

// OnBodyClick runs fn when the body is clicked.
func (p *Page) OnBodyClick(fn Handler) {
	p.body = append(p.body, fn)
}

// Control wraps n.
func (p *Page) Control(n *html.Node) locator.Control {
	return &element{p: p, n: n}
}

// Node unwraps a control created by this package.
func Node(c locator.Control) *html.Node {
	if e, ok := c.(*element); ok {
		return e.n
	}
	return nil
}

// SetFocus moves focus to n.
func (p *Page) SetFocus(n *html.Node) { p.focused = n }

// FocusedNode returns the focused node.
func (p *Page) FocusedNode() *html.Node { return p.focused }

// Append parses markup as children of parent and returns the new top level
// nodes.
func (p *Page) Append(parent *html.Node, markup string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nodes, nil
}

// Remove detaches n from the document.
func (p *Page) Remove(n *html.Node) {
	if n != nil && n.Parent != nil {
		if p.focused != nil && isWithin(p.focused, n) {
			p.focused = nil
		}
		n.Parent.RemoveChild(n)
	}
}

// Value returns the current value of an input node.
func Value(n *html.Node) string {
	return dom.AttrOr(n, "value", "")
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// SetText replaces the children of n with one text node.
func SetText(n *html.Node, text string) {
	clear(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func clear(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

func isWithin(n, ancestor *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

func (p *Page) record(format string, args ...interface{}) {
	p.Actions = append(p.Actions, fmt.Sprintf(format, args...))
}

func (p *Page) find(root *html.Node, selector string) ([]locator.Control, error) {
	sel, err := dom.Compile(selector)
	if err != nil {
		return nil, err
	}
	nodes := dom.QueryAll(root, sel)
	out := make([]locator.Control, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, p.Control(n))
	}
	return out, nil
}

// Find implements locator.Surface.
func (p *Page) Find(_ context.Context, selector string) ([]locator.Control, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.find(p.root, selector)
}

// Focused implements locator.Surface.
func (p *Page) Focused(context.Context) (locator.Control, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.focused == nil {
		return nil, nil
	}
	return p.Control(p.focused), nil
}

// Blur implements locator.Surface.
func (p *Page) Blur(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("blur")
	p.focused = nil
	return nil
}

// ClickBody implements locator.Surface.
func (p *Page) ClickBody(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("click body")
	p.focused = nil
	for _, fn := range p.body {
		if err := fn(p, p.Body()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Page) dispatch(bindings []binding, n *html.Node, key locator.Key) error {
	for _, b := range bindings {
		if b.key != key || !b.sel.Match(n) {
			continue
		}
		if err := b.fn(p, n); err != nil {
			return err
		}
	}
	return nil
}

type element struct {
	p *Page
	n *html.Node
}

func (e *element) Text(context.Context) (string, error) {
	return dom.Text(e.n), nil
}

func (e *element) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := dom.Attr(e.n, name)
	return v, ok, nil
}

func (e *element) Tag(context.Context) (string, error) {
	return strings.ToLower(e.n.Data), nil
}

func (e *element) Find(_ context.Context, selector string) ([]locator.Control, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.p.find(e.n, selector)
}

func (e *element) Click(context.Context) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.p.record("click %s", describe(e.n))
	if focusable(e.n) {
		e.p.focused = e.n
	}
	return e.p.dispatch(e.p.clicks, e.n, "")
}

func (e *element) Focus(context.Context) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.p.focused = e.n
	return nil
}

func (e *element) SetValue(_ context.Context, value string) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.p.record("set %s = %q", describe(e.n), value)
	SetAttr(e.n, "value", value)
	return nil
}

func (e *element) Press(_ context.Context, key locator.Key) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.p.record("press %s on %s", key, describe(e.n))
	return e.p.dispatch(e.p.keys, e.n, key)
}

func (e *element) SetRichText(_ context.Context, markup string) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.p.record("rich text %s = %q", describe(e.n), markup)
	clear(e.n)
	_, err := e.p.Append(e.n, markup)
	return err
}

func (e *element) RichText(context.Context) (string, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return dom.InnerHTML(e.n), nil
}

func (e *element) SelectAll(context.Context) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	SetAttr(e.n, "data-selection", "all")
	return nil
}

// ApplyBold wraps the whole content in <strong> when everything is
// selected, which is the only selection the page models.
func (e *element) ApplyBold(context.Context) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if dom.AttrOr(e.n, "data-selection", "") != "all" {
		return fmt.Errorf("bold without selection on %s", describe(e.n))
	}
	e.p.record("bold %s", describe(e.n))
	strong := &html.Node{Type: html.ElementNode, Data: "strong", DataAtom: atom.Strong}
	for c := e.n.FirstChild; c != nil; c = e.n.FirstChild {
		e.n.RemoveChild(c)
		strong.AppendChild(c)
	}
	e.n.AppendChild(strong)
	return nil
}

func focusable(n *html.Node) bool {
	switch n.Data {
	case "input", "textarea":
		return true
	}
	return dom.AttrOr(n, "contenteditable", "") == "true"
}

func describe(n *html.Node) string {
	if id := dom.AttrOr(n, "data-testid", ""); id != "" {
		return fmt.Sprintf("%s[%s]", n.Data, id)
	}
	if ph := dom.AttrOr(n, "placeholder", ""); ph != "" {
		return fmt.Sprintf("%s(%s)", n.Data, ph)
	}
	return n.Data
}
