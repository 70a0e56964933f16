package cellib

import (
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// maxRememberedURLs caps the per-session list of last-known URL
// fingerprints used for restoration matching.
const maxRememberedURLs = 8

// URLFingerprint is the (domain, path) projection of a URL used to match
// restored tabs back to their sessions. Query and fragment are ignored.
type URLFingerprint struct {
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// FingerprintURL reduces a raw URL to its restoration fingerprint.
func FingerprintURL(raw string) (URLFingerprint, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return URLFingerprint{}, false
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return URLFingerprint{
		Domain: strings.ToLower(u.Hostname()),
		Path:   p,
	}, true
}

// Session is one isolated browsing context: a private cookie jar plus the
// set of tabs currently bound to it. Sessions carry no mutex of their own;
// all access goes through the owning SessionTable.
type Session struct {
	ID            SessionID        `json:"id"`
	Name          string           `json:"name,omitempty"`
	Color         string           `json:"color"`
	CustomColor   string           `json:"custom_color,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	LastActivity  time.Time        `json:"last_activity"`
	Tabs          map[int64]bool   `json:"tabs"`
	LastKnownURLs []URLFingerprint `json:"last_known_urls"`

	// Jar is gob-serializable but not directly JSON-serializable (struct
	// map keys); persisted records carry its Snapshot form instead.
	Jar *Jar `json:"-"`

	// Creating marks a session whose asynchronous setup (first persistence
	// write, seed tab open) has not completed yet. Such sessions are never
	// treated as orphans.
	Creating bool `json:"creating,omitempty"`
}

// NewSession creates an empty session with a fresh id and jar.
func NewSession(color string) *Session {
	now := time.Now()
	return &Session{
		ID:           NewSessionID(),
		Color:        color,
		CreatedAt:    now,
		LastActivity: now,
		Tabs:         make(map[int64]bool),
		Jar:          NewJar(),
		Creating:     true,
	}
}

// Touch bumps the last-activity timestamp.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}

// IsOrphan reports whether the session has no bound tabs and finished
// creation. Orphans are candidates for cleanup.
func (s *Session) IsOrphan() bool {
	return len(s.Tabs) == 0 && !s.Creating
}

// DisplayColor returns the custom color if set, the assigned one otherwise.
func (s *Session) DisplayColor() string {
	if s.CustomColor != "" {
		return s.CustomColor
	}
	return s.Color
}

// RememberURL records a tab URL fingerprint for restoration matching.
// The list is ordered most-recent-first, deduplicated, and capped.
func (s *Session) RememberURL(fp URLFingerprint) {
	urls := make([]URLFingerprint, 0, len(s.LastKnownURLs)+1)
	urls = append(urls, fp)
	for _, u := range s.LastKnownURLs {
		if u == fp {
			continue
		}
		urls = append(urls, u)
	}
	if len(urls) > maxRememberedURLs {
		urls = urls[:maxRememberedURLs]
	}
	s.LastKnownURLs = urls
}

// MatchesURL reports whether the fingerprint appears in the session's
// last-known URL list.
func (s *Session) MatchesURL(fp URLFingerprint) bool {
	for _, u := range s.LastKnownURLs {
		if u == fp {
			return true
		}
	}
	return false
}

// TabIDs returns the bound tab ids as a sorted-insensitive slice.
func (s *Session) TabIDs() []int64 {
	ids := make([]int64, 0, len(s.Tabs))
	for id := range s.Tabs {
		ids = append(ids, id)
	}
	return ids
}

// palette is the fixed set of display colors assigned to new sessions.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#46f0f0", "#f032e6",
}

var paletteCursor atomic.Uint64

// NextColor returns the next palette color, round-robin.
func NextColor() string {
	n := paletteCursor.Add(1) - 1
	return palette[n%uint64(len(palette))]
}
