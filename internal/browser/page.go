package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"boardsnap/internal/dom"
	"boardsnap/internal/extract"
	"boardsnap/internal/locator"
	"boardsnap/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
)

// Page is one board tab. It implements locator.Surface.
type Page struct {
	rod        *rod.Page
	meta       Session
	navTimeout time.Duration
	log        *logging.Logger
}

var _ locator.Surface = (*Page)(nil)

// Session returns the page's metadata.
func (p *Page) Session() Session { return p.meta }

// Rod returns the underlying Rod page.
func (p *Page) Rod() *rod.Page { return p.rod }

// Navigate loads url and waits for the document to load.
func (p *Page) Navigate(ctx context.Context, url string) error {
	rp := p.rod.Context(ctx).Timeout(p.navTimeout)
	if err := rp.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := rp.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s: %w", url, err)
	}
	p.meta.URL = url
	p.meta.LastActive = time.Now()
	return nil
}

// WaitFor polls until selector matches or ctx is done. The board renders
// its columns client side, well after the load event.
func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := p.rod.Context(ctx).Element(selector); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// Cookies returns the page's cookies for the net/http resolver.
func (p *Page) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	cookies, err := p.rod.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return httpCookies(cookies), nil
}

// Capture returns the current document. Rich-text editors are stamped with
// their own serialization first so the extractor sees the editor data
// rather than the rendered view.
func (p *Page) Capture(ctx context.Context) (*html.Node, error) {
	rp := p.rod.Context(ctx)
	if _, err := rp.Evaluate(rod.Eval(jsStampEditors, extract.EditorDataAttr)); err != nil {
		p.log.Warn("stamping editor data failed, using rendered HTML: %v", err)
	}
	raw, err := rp.HTML()
	if err != nil {
		return nil, fmt.Errorf("capture html: %w", err)
	}
	root, err := dom.ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse captured html: %w", err)
	}
	p.log.Debug("captured %d bytes of HTML", len(raw))
	return root, nil
}

// Find implements locator.Surface.
func (p *Page) Find(ctx context.Context, selector string) ([]locator.Control, error) {
	els, err := p.rod.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(els), nil
}

// Focused implements locator.Surface.
func (p *Page) Focused(ctx context.Context) (locator.Control, error) {
	rp := p.rod.Context(ctx)
	obj, err := rp.Evaluate(rod.Eval(jsActiveElement).ByObject())
	if err != nil {
		return nil, err
	}
	if obj == nil || obj.ObjectID == "" || obj.Subtype == proto.RuntimeRemoteObjectSubtypeNull {
		return nil, nil
	}
	el, err := rp.ElementFromObject(obj)
	if err != nil {
		return nil, err
	}
	return &element{el: el}, nil
}

// Blur implements locator.Surface.
func (p *Page) Blur(ctx context.Context) error {
	_, err := p.rod.Context(ctx).Evaluate(rod.Eval(jsBlur))
	return err
}

// ClickBody implements locator.Surface.
func (p *Page) ClickBody(ctx context.Context) error {
	_, err := p.rod.Context(ctx).Evaluate(rod.Eval(jsClickBody))
	return err
}
