// Package browser drives a Chromium board page over the DevTools protocol.
// It launches or connects to Chrome, tracks the opened board pages and adapts
// them to the locator interfaces the replay engine works against.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"boardsnap/internal/config"
	"boardsnap/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// Session describes the public metadata for a tracked board page.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Config holds browser configuration.
type Config struct {
	DebuggerURL       string
	Launch            []string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	// CookieStore persists the NBC login between runs. Empty disables it.
	CookieStore string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          false,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		NavigationTimeout: 60 * time.Second,
	}
}

// FromConfig maps the file configuration onto a browser Config.
func FromConfig(c config.BrowserConfig) Config {
	cfg := DefaultConfig()
	cfg.DebuggerURL = c.DebuggerURL
	cfg.Launch = c.Launch
	cfg.Headless = c.Headless
	if c.ViewportWidth > 0 {
		cfg.ViewportWidth = c.ViewportWidth
	}
	if c.ViewportHeight > 0 {
		cfg.ViewportHeight = c.ViewportHeight
	}
	if d, err := time.ParseDuration(c.NavigationTimeout); err == nil && d > 0 {
		cfg.NavigationTimeout = d
	}
	cfg.CookieStore = c.SessionStore
	return cfg
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// GetNavigationTimeout returns the navigation timeout.
func (c Config) GetNavigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 60 * time.Second
	}
	return c.NavigationTimeout
}

// SessionManager owns the Chrome instance and the board pages opened in it.
type SessionManager struct {
	cfg        Config
	mu         sync.RWMutex
	browser    *rod.Browser
	pages      map[string]*Page
	controlURL string
	log        *logging.Logger
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config) *SessionManager {
	return &SessionManager{
		cfg:   cfg,
		pages: make(map[string]*Page),
		log:   logging.Get(logging.CategoryBrowser),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.log.Warn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.pages = make(map[string]*Page)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" && len(m.cfg.Launch) > 0 {
		bin := m.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(m.cfg.Headless)
		for _, f := range launchFlags(m.cfg.Launch[1:]) {
			launch = launch.Set(f.name, f.values...)
		}
		url, err := launch.Launch()
		if err != nil {
			fallback := launcher.New().Bin(bin).Headless(m.cfg.Headless)
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			controlURL = alt
		} else {
			controlURL = url
		}
	}

	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.log.Debug("connected to %s", controlURL)
	return nil
}

type launchFlag struct {
	name   flags.Flag
	values []string
}

// launchFlags parses "--name=value" and "--name" command line flags.
func launchFlags(raw []string) []launchFlag {
	out := make([]launchFlag, 0, len(raw))
	for _, r := range raw {
		name, val, hasVal := strings.Cut(strings.TrimLeft(r, "-"), "=")
		if name == "" {
			continue
		}
		f := launchFlag{name: flags.Flag(name)}
		if hasVal {
			f.values = []string{val}
		}
		out = append(out, f)
	}
	return out
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown saves the login cookies, closes tracked pages and the browser.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, p := range m.pages {
		if err := m.saveCookies(ctx, p); err != nil {
			errs = append(errs, err)
		}
		if p.meta.Status == "active" {
			_ = p.rod.Close()
		}
		delete(m.pages, id)
	}

	if m.browser != nil {
		// Attached browsers belong to the user.
		if m.cfg.DebuggerURL == "" {
			errs = append(errs, m.browser.Close())
		}
		m.browser = nil
	}
	m.controlURL = ""
	return errors.Join(errs...)
}

// List returns metadata for all open pages.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.pages))
	for _, p := range m.pages {
		results = append(results, p.meta)
	}
	return results
}

// Open opens url in a new page, restores the saved login and waits for the
// board to load.
func (m *SessionManager) Open(ctx context.Context, url string) (*Page, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	rp, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(rp); err != nil {
		m.log.Warn("failed to set viewport: %v", err)
	}

	if err := m.restoreCookies(rp); err != nil {
		m.log.Warn("restore cookies: %v", err)
	}

	p := m.track(rp, url, "active")
	if err := p.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return p, nil
}

// Attach binds to an already open tab by its DevTools target id.
func (m *SessionManager) Attach(ctx context.Context, targetID string) (*Page, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	rp, err := browser.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}
	info, err := rp.Info()
	url := ""
	if err == nil {
		url = info.URL
	}
	return m.track(rp, url, "attached"), nil
}

// FindTarget returns the id of the first open tab whose URL starts with
// prefix.
func (m *SessionManager) FindTarget(ctx context.Context, prefix string) (string, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return "", err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()

	res, err := proto.TargetGetTargets{}.Call(browser)
	if err != nil {
		return "", fmt.Errorf("list targets: %w", err)
	}
	for _, t := range res.TargetInfos {
		if t.Type == proto.TargetTargetInfoTypePage && strings.HasPrefix(t.URL, prefix) {
			return string(t.TargetID), nil
		}
	}
	return "", fmt.Errorf("no open tab at %s", prefix)
}

func (m *SessionManager) track(rp *rod.Page, url, status string) *Page {
	now := time.Now()
	p := &Page{
		rod: rp,
		meta: Session{
			ID:         uuid.NewString(),
			TargetID:   string(rp.TargetID),
			URL:        url,
			Status:     status,
			CreatedAt:  now,
			LastActive: now,
		},
		navTimeout: m.cfg.GetNavigationTimeout(),
		log:        m.log,
	}
	m.mu.Lock()
	m.pages[p.meta.ID] = p
	m.mu.Unlock()
	return p
}

// Get returns a tracked page.
func (m *SessionManager) Get(sessionID string) (*Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[sessionID]
	return p, ok
}

// Close saves the login cookies and releases a tracked page. Pages the
// manager attached to stay open.
func (m *SessionManager) Close(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pages[sessionID]
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}
	delete(m.pages, sessionID)

	err := m.saveCookies(ctx, p)
	if p.meta.Status == "active" {
		err = errors.Join(err, p.rod.Close())
	}
	return err
}

// storedCookie is the persisted form of a browser cookie.
type storedCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// saveCookies writes the page's cookies to the cookie store. Caller must
// hold the lock.
func (m *SessionManager) saveCookies(ctx context.Context, p *Page) error {
	if m.cfg.CookieStore == "" {
		return nil
	}
	cookies, err := p.rod.Context(ctx).Cookies(nil)
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.CookieStore), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.CookieStore, data, 0o600)
}

// restoreCookies loads the cookie store into a fresh page.
func (m *SessionManager) restoreCookies(rp *rod.Page) error {
	params, err := loadCookies(m.cfg.CookieStore)
	if err != nil || len(params) == 0 {
		return err
	}
	m.log.Debug("restoring %d cookies", len(params))
	return rp.SetCookies(params)
}

func loadCookies(path string) ([]*proto.NetworkCookieParam, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse cookie store: %w", err)
	}

	now := float64(time.Now().Unix())
	params := make([]*proto.NetworkCookieParam, 0, len(stored))
	for _, c := range stored {
		if c.Expires > 0 && c.Expires < now {
			continue
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		})
	}
	return params, nil
}

// httpCookies converts browser cookies for use by net/http clients.
func httpCookies(cookies []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			hc.Expires = c.Expires.Time()
		}
		out = append(out, hc)
	}
	return out
}
