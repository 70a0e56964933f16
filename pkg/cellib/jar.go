package cellib

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// JarKey identifies one jar entry. Cookies follow standard replacement
// semantics: a new value under the same (domain, path, name) overwrites.
type JarKey struct {
	Domain string
	Path   string
	Name   string
}

// JarEntry holds the value and attributes of one stored cookie.
type JarEntry struct {
	Value    string `json:"value"`
	Secure   bool   `json:"secure,omitempty"`
	HttpOnly bool   `json:"http_only,omitempty"`
	// HostOnly marks cookies set without a Domain attribute; they are sent
	// only to the exact host, never to subdomains.
	HostOnly bool   `json:"host_only,omitempty"`
	SameSite string `json:"same_site,omitempty"`
	// Expiry is zero for session cookies.
	Expiry    time.Time `json:"expiry,omitzero"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Jar is a per-session cookie store keyed by (domain, path, name).
// Jars are owned exclusively by their Session and are never shared; all
// concurrent access is serialized by the owning SessionTable.
type Jar struct {
	Entries map[JarKey]JarEntry
}

// NewJar returns an empty jar.
func NewJar() *Jar {
	return &Jar{Entries: make(map[JarKey]JarEntry)}
}

// Len returns the number of stored entries.
func (j *Jar) Len() int { return len(j.Entries) }

// SetFromSetCookie parses one Set-Cookie directive received for reqURL and
// applies it to the jar. Explicit deletion (past expiry or negative
// Max-Age) removes the matching key. Malformed or out-of-scope directives
// return ErrMalformedCookie and leave the jar untouched; they must never
// fall through to any shared store.
func (j *Jar) SetFromSetCookie(raw string, reqURL *url.URL, now time.Time) error {
	c, err := http.ParseSetCookie(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCookie, err)
	}
	host := strings.ToLower(reqURL.Hostname())
	if host == "" {
		return fmt.Errorf("%w: request has no host", ErrMalformedCookie)
	}

	domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	hostOnly := domain == ""
	if hostOnly {
		domain = host
	} else {
		if !domainMatch(host, domain) {
			return fmt.Errorf("%w: domain %q does not cover host %q", ErrMalformedCookie, domain, host)
		}
		// A cookie scoped to a bare public suffix (e.g. Domain=com) would
		// leak across unrelated sites; degrade it to host-only.
		if ps, _ := publicsuffix.PublicSuffix(domain); ps == domain {
			if host != domain {
				return fmt.Errorf("%w: domain %q is a public suffix", ErrMalformedCookie, domain)
			}
			hostOnly = true
		}
	}

	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = defaultPath(reqURL.EscapedPath())
	}
	key := JarKey{Domain: domain, Path: path, Name: c.Name}

	var expiry time.Time
	switch {
	case c.MaxAge < 0:
		delete(j.Entries, key)
		return nil
	case c.MaxAge > 0:
		expiry = now.Add(time.Duration(c.MaxAge) * time.Second)
	default:
		expiry = c.Expires
	}
	if !expiry.IsZero() && !expiry.After(now) {
		delete(j.Entries, key)
		return nil
	}

	created := now
	if old, ok := j.Entries[key]; ok {
		created = old.CreatedAt
	}
	j.Entries[key] = JarEntry{
		Value:     c.Value,
		Secure:    c.Secure,
		HttpOnly:  c.HttpOnly,
		HostOnly:  hostOnly,
		SameSite:  sameSiteString(c.SameSite),
		Expiry:    expiry,
		CreatedAt: created,
	}
	return nil
}

// SetScripted applies a document.cookie style write coming from the script
// shim. The directive grammar is the same as Set-Cookie.
func (j *Jar) SetScripted(directive string, pageURL *url.URL, now time.Time) error {
	return j.SetFromSetCookie(directive, pageURL, now)
}

// CookieHeader computes the Cookie header value for a request to u.
// It returns ok=false when no entry matches; the caller must then send no
// header at all rather than an empty one.
func (j *Jar) CookieHeader(u *url.URL, now time.Time) (string, bool) {
	matches := j.match(u, now, false)
	if len(matches) == 0 {
		return "", false
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.key.Name + "=" + m.entry.Value
	}
	return strings.Join(parts, "; "), true
}

// ScriptCookies serializes the entries a same-origin script may read:
// everything CookieHeader would send minus HttpOnly entries.
func (j *Jar) ScriptCookies(u *url.URL, now time.Time) string {
	matches := j.match(u, now, true)
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.key.Name + "=" + m.entry.Value
	}
	return strings.Join(parts, "; ")
}

type jarMatch struct {
	key   JarKey
	entry JarEntry
}

func (j *Jar) match(u *url.URL, now time.Time, skipHTTPOnly bool) []jarMatch {
	host := strings.ToLower(u.Hostname())
	reqPath := u.EscapedPath()
	if reqPath == "" {
		reqPath = "/"
	}
	secure := u.Scheme == "https" || u.Scheme == "wss"

	var matches []jarMatch
	for key, e := range j.Entries {
		if !e.Expiry.IsZero() && !e.Expiry.After(now) {
			continue
		}
		if e.HostOnly {
			if host != key.Domain {
				continue
			}
		} else if !domainMatch(host, key.Domain) {
			continue
		}
		if !pathMatch(reqPath, key.Path) {
			continue
		}
		if e.Secure && !secure {
			continue
		}
		if skipHTTPOnly && e.HttpOnly {
			continue
		}
		matches = append(matches, jarMatch{key: key, entry: e})
	}
	// RFC 6265 ordering: longer paths first, then earlier creation time.
	sort.Slice(matches, func(a, b int) bool {
		pa, pb := matches[a].key.Path, matches[b].key.Path
		if len(pa) != len(pb) {
			return len(pa) > len(pb)
		}
		ca, cb := matches[a].entry.CreatedAt, matches[b].entry.CreatedAt
		if !ca.Equal(cb) {
			return ca.Before(cb)
		}
		return matches[a].key.Name < matches[b].key.Name
	})
	return matches
}

// PurgeExpired drops entries whose expiry has passed and reports how many
// were removed.
func (j *Jar) PurgeExpired(now time.Time) int {
	var n int
	for key, e := range j.Entries {
		if !e.Expiry.IsZero() && !e.Expiry.After(now) {
			delete(j.Entries, key)
			n++
		}
	}
	return n
}

// Export returns all entries in deterministic order for diagnostics.
func (j *Jar) Export() []ExportedCookie {
	out := make([]ExportedCookie, 0, len(j.Entries))
	for key, e := range j.Entries {
		out = append(out, ExportedCookie{
			Domain:   key.Domain,
			Path:     key.Path,
			Name:     key.Name,
			Value:    e.Value,
			Secure:   e.Secure,
			HttpOnly: e.HttpOnly,
			SameSite: e.SameSite,
			Expiry:   e.Expiry,
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Domain != out[b].Domain {
			return out[a].Domain < out[b].Domain
		}
		if out[a].Path != out[b].Path {
			return out[a].Path < out[b].Path
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// ExportedCookie is the diagnostic projection of one jar entry.
type ExportedCookie struct {
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
	SameSite string    `json:"same_site,omitempty"`
	Expiry   time.Time `json:"expiry,omitzero"`
}

// domainMatch implements the RFC 6265 domain-matching rule: the host either
// equals the cookie domain or is a dot-separated subdomain of it. IP
// addresses only ever match exactly.
func domainMatch(host, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain) && net.ParseIP(host) == nil
}

// pathMatch implements the RFC 6265 path-matching rule.
func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

// defaultPath computes the RFC 6265 default cookie path for a request path.
func defaultPath(reqPath string) string {
	if reqPath == "" || !strings.HasPrefix(reqPath, "/") {
		return "/"
	}
	i := strings.LastIndex(reqPath, "/")
	if i <= 0 {
		return "/"
	}
	return reqPath[:i]
}

func sameSiteString(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}
