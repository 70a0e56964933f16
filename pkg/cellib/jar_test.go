package cellib

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestJarSetAndMatch(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/account/settings")

	if err := j.SetFromSetCookie("sid=abc; Path=/", u, now); err != nil {
		t.Fatalf("set: %v", err)
	}
	hdr, ok := j.CookieHeader(u, now)
	if !ok {
		t.Fatal("expected a cookie header")
	}
	if hdr != "sid=abc" {
		t.Fatalf("expected sid=abc, got %q", hdr)
	}
}

func TestJarNoHeaderWhenNothingMatches(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")
	if err := j.SetFromSetCookie("sid=abc", u, now); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A different host must produce no Cookie header at all, not an
	// empty one.
	other := mustURL(t, "https://other.test/")
	if hdr, ok := j.CookieHeader(other, now); ok {
		t.Fatalf("expected no match, got %q", hdr)
	}
}

func TestJarDomainScope(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	// Domain attribute widens scope to subdomains of example.com.
	if err := j.SetFromSetCookie("wide=1; Domain=example.com", u, now); err != nil {
		t.Fatalf("set wide: %v", err)
	}
	// No Domain attribute means host-only.
	if err := j.SetFromSetCookie("narrow=1", u, now); err != nil {
		t.Fatalf("set narrow: %v", err)
	}

	sibling := mustURL(t, "https://other.example.com/")
	hdr, ok := j.CookieHeader(sibling, now)
	if !ok {
		t.Fatal("expected wide cookie for sibling host")
	}
	if strings.Contains(hdr, "narrow") {
		t.Fatalf("host-only cookie leaked to sibling: %q", hdr)
	}
	if !strings.Contains(hdr, "wide=1") {
		t.Fatalf("expected wide=1 in %q", hdr)
	}
}

func TestJarRejectsForeignDomain(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	err := j.SetFromSetCookie("x=1; Domain=evil.test", u, now)
	if err == nil {
		t.Fatal("expected rejection of non-covering domain")
	}
	if j.Len() != 0 {
		t.Fatalf("jar should stay empty, has %d entries", j.Len())
	}
}

func TestJarRejectsPublicSuffixDomain(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	if err := j.SetFromSetCookie("x=1; Domain=com", u, now); err == nil {
		t.Fatal("expected rejection of public suffix domain")
	}
}

func TestJarPathScope(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/account/settings")

	if err := j.SetFromSetCookie("scoped=1; Path=/account", u, now); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := j.CookieHeader(mustURL(t, "https://app.example.com/account"), now); !ok {
		t.Fatal("expected match on exact path")
	}
	if _, ok := j.CookieHeader(mustURL(t, "https://app.example.com/account/billing"), now); !ok {
		t.Fatal("expected match on subpath")
	}
	if _, ok := j.CookieHeader(mustURL(t, "https://app.example.com/accounting"), now); ok {
		t.Fatal("path prefix must respect segment boundaries")
	}
}

func TestJarSecureOnlyOverHTTPS(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	if err := j.SetFromSetCookie("s=1; Secure", u, now); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := j.CookieHeader(mustURL(t, "http://app.example.com/"), now); ok {
		t.Fatal("secure cookie sent over http")
	}
	if _, ok := j.CookieHeader(u, now); !ok {
		t.Fatal("secure cookie missing over https")
	}
}

func TestJarReplacementSemantics(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	if err := j.SetFromSetCookie("sid=old", u, now); err != nil {
		t.Fatalf("set old: %v", err)
	}
	if err := j.SetFromSetCookie("sid=new", u, now.Add(time.Second)); err != nil {
		t.Fatalf("set new: %v", err)
	}
	if j.Len() != 1 {
		t.Fatalf("expected 1 entry after replacement, got %d", j.Len())
	}
	hdr, _ := j.CookieHeader(u, now.Add(2*time.Second))
	if hdr != "sid=new" {
		t.Fatalf("expected replacement value, got %q", hdr)
	}
}

func TestJarExplicitDeletion(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	if err := j.SetFromSetCookie("sid=abc", u, now); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Past expiry removes the matching entry.
	if err := j.SetFromSetCookie("sid=gone; Expires=Thu, 01 Jan 1970 00:00:00 GMT", u, now); err != nil {
		t.Fatalf("delete via expiry: %v", err)
	}
	if j.Len() != 0 {
		t.Fatalf("expected empty jar, got %d entries", j.Len())
	}

	// Negative Max-Age does the same.
	if err := j.SetFromSetCookie("sid=abc", u, now); err != nil {
		t.Fatalf("re-set: %v", err)
	}
	if err := j.SetFromSetCookie("sid=x; Max-Age=-1", u, now); err != nil {
		t.Fatalf("delete via max-age: %v", err)
	}
	if j.Len() != 0 {
		t.Fatalf("expected empty jar after max-age deletion, got %d", j.Len())
	}
}

func TestJarExpiryFiltering(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	if err := j.SetFromSetCookie("short=1; Max-Age=60", u, now); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := j.CookieHeader(u, now.Add(30*time.Second)); !ok {
		t.Fatal("cookie should still be live")
	}
	if _, ok := j.CookieHeader(u, now.Add(2*time.Minute)); ok {
		t.Fatal("expired cookie still served")
	}
	if n := j.PurgeExpired(now.Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
}

func TestJarOrderingLongestPathFirst(t *testing.T) {
	j := NewJar()
	now := time.Now()
	base := mustURL(t, "https://app.example.com/a/b/c")

	if err := j.SetFromSetCookie("outer=1; Path=/", base, now); err != nil {
		t.Fatalf("set outer: %v", err)
	}
	if err := j.SetFromSetCookie("inner=1; Path=/a/b", base, now.Add(time.Second)); err != nil {
		t.Fatalf("set inner: %v", err)
	}
	hdr, _ := j.CookieHeader(base, now.Add(2*time.Second))
	if hdr != "inner=1; outer=1" {
		t.Fatalf("expected longest path first, got %q", hdr)
	}
}

func TestJarScriptCookiesSkipHttpOnly(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	if err := j.SetFromSetCookie("visible=1", u, now); err != nil {
		t.Fatalf("set visible: %v", err)
	}
	if err := j.SetFromSetCookie("hidden=1; HttpOnly", u, now); err != nil {
		t.Fatalf("set hidden: %v", err)
	}
	s := j.ScriptCookies(u, now)
	if strings.Contains(s, "hidden") {
		t.Fatalf("HttpOnly entry visible to script: %q", s)
	}
	if !strings.Contains(s, "visible=1") {
		t.Fatalf("expected visible=1 in %q", s)
	}
	// The wire header still carries both.
	hdr, _ := j.CookieHeader(u, now)
	if !strings.Contains(hdr, "hidden=1") {
		t.Fatalf("expected hidden=1 on the wire, got %q", hdr)
	}
}

func TestJarMalformedDirective(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")

	if err := j.SetFromSetCookie("", u, now); err == nil {
		t.Fatal("expected error for empty directive")
	}
	if j.Len() != 0 {
		t.Fatalf("malformed directive mutated the jar: %d entries", j.Len())
	}
}

func TestJarSnapshotRoundtrip(t *testing.T) {
	j := NewJar()
	now := time.Now()
	u := mustURL(t, "https://app.example.com/")
	if err := j.SetFromSetCookie("sid=abc; Max-Age=3600; Secure", u, now); err != nil {
		t.Fatalf("set: %v", err)
	}

	snap := j.Snapshot()
	restored := JarFromSnapshot(snap)
	hdr, ok := restored.CookieHeader(u, now)
	if !ok || hdr != "sid=abc" {
		t.Fatalf("restored jar mismatch: %q ok=%v", hdr, ok)
	}
}
