package resolver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doerFunc lets a test answer requests directly. httptest servers cannot
// send a body with a 304, which the launch endpoint does.
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func respond(status int, body string) doerFunc {
	return func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	}
}

const launchBody = `{"url":"https://lichtblick.moin-schule.nwdl.eu/launch?id=X1Y3Z3W&lang=de"}`

func TestToolID_NotModifiedMatchesOK(t *testing.T) {
	ctx := context.Background()

	ok, err := New(Options{Client: respond(http.StatusOK, launchBody)}).ToolID(ctx, "0123456789abcdef01234567")
	require.NoError(t, err)

	notModified, err := New(Options{Client: respond(http.StatusNotModified, launchBody)}).ToolID(ctx, "0123456789abcdef01234567")
	require.NoError(t, err)

	assert.Equal(t, "X1Y3Z3W", ok)
	assert.Equal(t, ok, notModified)
}

func TestToolID_Sentinels(t *testing.T) {
	tests := []struct {
		name   string
		client Doer
		want   string
	}{
		{"server error", respond(http.StatusInternalServerError, launchBody), UnknownStatus},
		{"no url", respond(http.StatusOK, `{"other":1}`), UnknownStatus},
		{"bad json", respond(http.StatusOK, `<html>`), JSONParseError},
		{"empty 304", respond(http.StatusNotModified, ``), JSONParseError},
		{"transport", doerFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}), NetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(Options{Client: tt.client}).ToolID(context.Background(), "ctx")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsSentinel(got))
		})
	}
}

func TestToolID_RequestShape(t *testing.T) {
	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"url":"https://tools.example.org/start?sequenceId=42"}`)
	}))
	defer srv.Close()

	r := New(Options{
		BaseURL: srv.URL + "/",
		Token:   "secret",
		Cookies: []*http.Cookie{{Name: "jwt", Value: "abc"}},
	})
	got, err := r.ToolID(context.Background(), "0123456789abcdef01234567")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	seen := <-requests
	assert.Equal(t, "/api/v3/tools/context/0123456789abcdef01234567/launch", seen.URL.Path)
	assert.Equal(t, "no-cache", seen.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", seen.Header.Get("Pragma"))
	assert.Equal(t, "Bearer secret", seen.Header.Get("Authorization"))
	c, err := seen.Cookie("jwt")
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Value)
}

func TestToolID_BadBaseURLIsHardFailure(t *testing.T) {
	_, err := New(Options{BaseURL: "://broken"}).ToolID(context.Background(), "ctx")
	assert.Error(t, err)
}

func TestContextID(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("ids") {
		case "wrapped":
			_, _ = io.WriteString(w, `{"data":[{"elements":[
				{"id":"e0","content":{}},
				{"id":"e1","content":{"contextExternalToolId":"0123456789abcdef01234567"}}]}]}`)
		case "bare":
			_, _ = io.WriteString(w, `{"elements":[{"id":"e1","content":{"contextExternalToolId":"abcdefabcdefabcdefabcdef"}}]}`)
		case "broken":
			_, _ = io.WriteString(w, `not json`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := New(Options{BaseURL: srv.URL})
	ctx := context.Background()

	assert.Equal(t, "0123456789abcdef01234567", r.ContextID(ctx, "wrapped", "e1"))
	assert.Equal(t, "abcdefabcdefabcdefabcdef", r.ContextID(ctx, "bare", "e1"))
	assert.Empty(t, r.ContextID(ctx, "wrapped", "e0"))
	assert.Empty(t, r.ContextID(ctx, "broken", "e1"))
	assert.Empty(t, r.ContextID(ctx, "missing", "e1"))
	assert.EqualValues(t, 5, calls.Load())

	assert.Empty(t, r.ContextID(ctx, "", "e1"))
	assert.Empty(t, r.ContextID(ctx, "wrapped", ""))
	assert.EqualValues(t, 5, calls.Load(), "empty ids never reach the network")
}

func TestExtractIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"provider id param", "https://lichtblick.moin-schule.nwdl.eu/launch?id=X1Y3Z3W", "X1Y3Z3W"},
		{"provider id after fragment-less slice", "lichtblick.moin-schule.nwdl.eu/x?id=ABC#top", "ABC"},
		{"generic tool_id", "https://tools.example.org/run?tool_id=T-9", "T-9"},
		{"generic present but empty", "https://tools.example.org/run?toolId=&x=1", ""},
		{"param priority", "https://tools.example.org/run?sequence_id=s&id=i", "i"},
		{"last segment", "https://bettermarks.example/books/algebra-1", "algebra-1"},
		{"short last segment", "https://bettermarks.example/ab", NoIDFound},
		{"query in last segment", "https://bettermarks.example/start?x=1", NoIDFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIDFromURL(tt.url))
		})
	}
}

func TestIsSentinel(t *testing.T) {
	for _, s := range []string{NetworkError, JSONParseError, UnknownStatus, NoIDFound, ExtractionFailed, NoValidContextID} {
		assert.True(t, IsSentinel(s), s)
	}
	assert.False(t, IsSentinel("X1Y3Z3W"))
	assert.False(t, IsSentinel(""))
}
