// Package resolver looks up the backend identity of external tool elements.
//
// Resolution is a two stage chain against the NBC REST API: the card API maps
// a card element to its context id, and the launch endpoint maps a context
// id to a launch URL from which the provider's tool id is read. Lookups are
// best effort. Soft failures come back as sentinel strings that are stored
// in the snapshot in place of the id.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boardsnap/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sentinel tool ids. They share the string domain of real ids.
const (
	NetworkError     = "NetworkError"
	JSONParseError   = "JsonParseError"
	UnknownStatus    = "UnknownStatus"
	NoIDFound        = "NoIdFound"
	ExtractionFailed = "ExtractionFailed"
	NoValidContextID = "NoValidContextId"
)

var sentinels = map[string]struct{}{
	NetworkError:     {},
	JSONParseError:   {},
	UnknownStatus:    {},
	NoIDFound:        {},
	ExtractionFailed: {},
	NoValidContextID: {},
}

// IsSentinel reports whether s is one of the failure sentinels.
func IsSentinel(s string) bool {
	_, ok := sentinels[s]
	return ok
}

// DefaultBaseURL is the NBC instance the board lives on.
const DefaultBaseURL = "https://niedersachsen.cloud"

// maxBody bounds how much of a response body is read.
const maxBody = 2 << 20

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Resolver.
type Options struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Cookies are attached to every request, typically the browser
	// session's cookies for the NBC host.
	Cookies []*http.Cookie
	// Timeout bounds each lookup. Zero means no timeout.
	Timeout time.Duration
	Client  Doer
}

// Resolver performs the two identity lookups.
type Resolver struct {
	base    string
	token   string
	cookies []*http.Cookie
	timeout time.Duration
	client  Doer
	tracer  trace.Tracer
	log     *logging.Logger
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		base:    base,
		token:   opts.Token,
		cookies: opts.Cookies,
		timeout: opts.Timeout,
		client:  client,
		tracer:  otel.Tracer("boardsnap/resolver"),
		log:     logging.Get(logging.CategoryResolver),
	}
}

// BaseURL returns the API base the resolver talks to.
func (r *Resolver) BaseURL() string { return r.base }

type cardsResponse struct {
	Data     []cardPayload `json:"data"`
	Elements []elementRef  `json:"elements"`
}

type cardPayload struct {
	Elements []elementRef `json:"elements"`
}

type elementRef struct {
	ID      string `json:"id"`
	Content struct {
		ContextExternalToolID string `json:"contextExternalToolId"`
	} `json:"content"`
}

// ContextID asks the card API for the context id of one external tool
// element. It returns "" whenever the id cannot be determined.
func (r *Resolver) ContextID(ctx context.Context, cardID, elementID string) string {
	if cardID == "" || elementID == "" {
		return ""
	}
	ctx, span := r.tracer.Start(ctx, "resolver.ContextID", trace.WithAttributes(
		attribute.String("card.id", cardID),
		attribute.String("element.id", elementID),
	))
	defer span.End()

	endpoint := r.base + "/api/v3/cards?ids=" + url.QueryEscape(cardID)
	status, body, err := r.get(ctx, endpoint)
	if err != nil {
		r.log.Warn("card API request for %s failed: %v", cardID, err)
		span.RecordError(err)
		return ""
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status != http.StatusOK && status != http.StatusNotModified {
		r.log.Debug("card API for %s returned %d", cardID, status)
		return ""
	}

	var resp cardsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		r.log.Warn("card API response for %s is not JSON: %v", cardID, err)
		return ""
	}
	elements := resp.Elements
	if len(resp.Data) > 0 {
		elements = resp.Data[0].Elements
	}
	for _, el := range elements {
		if el.ID == elementID && el.Content.ContextExternalToolID != "" {
			r.log.Debug("context id for element %s: %s", elementID, el.Content.ContextExternalToolID)
			return el.Content.ContextExternalToolID
		}
	}
	r.log.Debug("no context id for element %s in card %s", elementID, cardID)
	return ""
}

type launchResponse struct {
	URL string `json:"url"`
}

// ToolID fetches the launch URL of a tool context and extracts the tool id
// from it. Soft failures return a sentinel with a nil error. A non-nil error
// means the request could not even be built.
func (r *Resolver) ToolID(ctx context.Context, contextID string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.ToolID",
		trace.WithAttributes(attribute.String("context.id", contextID)))
	defer span.End()

	endpoint := r.base + "/api/v3/tools/context/" + url.PathEscape(contextID) + "/launch"
	req, err := r.newRequest(ctx, endpoint)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("build launch request: %w", err)
	}

	status, body, err := r.do(req)
	if err != nil {
		r.log.Warn("launch request for context %s failed: %v", contextID, err)
		span.RecordError(err)
		return NetworkError, nil
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	// A 304 still carries the launch payload.
	if status != http.StatusOK && status != http.StatusNotModified {
		r.log.Debug("launch endpoint for %s returned %d", contextID, status)
		return UnknownStatus, nil
	}

	var resp launchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		r.log.Warn("launch response for %s is not JSON: %v", contextID, err)
		return JSONParseError, nil
	}
	if resp.URL == "" {
		return UnknownStatus, nil
	}

	id := ExtractIDFromURL(resp.URL)
	r.log.Debug("context %s launches %s -> %s", contextID, resp.URL, id)
	return id, nil
}

func (r *Resolver) get(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := r.newRequest(ctx, endpoint)
	if err != nil {
		return 0, nil, err
	}
	return r.do(req)
}

func (r *Resolver) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("If-None-Match", "")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	return req, nil
}

func (r *Resolver) do(req *http.Request) (int, []byte, error) {
	if r.timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), r.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
