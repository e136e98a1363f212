package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"boardsnap/internal/board"
)

var idParamPattern = regexp.MustCompile(`[?&]id=([^&#]+)`)

// toolIDParams are the query parameters that may carry a tool id, in
// priority order.
var toolIDParams = []string{"id", "tool_id", "toolId", "sequence_id", "sequenceId"}

// ExtractIDFromURL reads a tool id out of a launch URL. It returns NoIDFound
// when no strategy applies.
func ExtractIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	parsed := err == nil && u.IsAbs() && u.Host != ""

	if launchesProvider(raw) {
		if parsed {
			if id := u.Query().Get("id"); id != "" {
				return id
			}
		}
		if m := idParamPattern.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
		if i := strings.Index(raw, "?id="); i >= 0 {
			rest := raw[i+len("?id="):]
			if end := strings.IndexAny(rest, "&#"); end >= 0 {
				rest = rest[:end]
			}
			if rest != "" {
				return rest
			}
		}
	}

	if parsed {
		q := u.Query()
		for _, p := range toolIDParams {
			if q.Has(p) {
				return q.Get(p)
			}
		}
	}

	segments := strings.Split(raw, "/")
	last := segments[len(segments)-1]
	if len(last) > 3 && !strings.Contains(last, "?") {
		return last
	}
	return NoIDFound
}

// launchesProvider reports whether raw points at a provider with a
// dedicated id parameter on its launch host.
func launchesProvider(raw string) bool {
	for _, p := range board.Providers {
		if p.LaunchHost != "" && strings.Contains(raw, p.LaunchHost) {
			return true
		}
	}
	return false
}
