package cellib

import (
	"strings"
	"testing"
)

func TestSessionIDFormat(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(string(id), "sess_") {
		t.Fatalf("unexpected id format: %s", id)
	}
	parsed, err := ParseSessionID(string(id))
	if err != nil {
		t.Fatalf("parse own id: %v", err)
	}
	if parsed != id {
		t.Fatalf("roundtrip mismatch: %s != %s", parsed, id)
	}
}

func TestSessionIDsSortByCreation(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	if !(string(a) < string(b)) {
		t.Fatalf("ids not monotonic: %s then %s", a, b)
	}
}

func TestParseSessionIDRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "abc", "sess_", "sess_not-a-ulid"} {
		if _, err := ParseSessionID(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestFingerprintURL(t *testing.T) {
	fp, ok := FingerprintURL("https://App.Example.com/Mail?x=1#top")
	if !ok {
		t.Fatal("expected a fingerprint")
	}
	if fp.Domain != "app.example.com" || fp.Path != "/Mail" {
		t.Fatalf("unexpected fingerprint: %+v", fp)
	}
	if _, ok := FingerprintURL("::not a url::"); ok {
		t.Fatal("expected failure for junk input")
	}
}

func TestRememberURLDedupeAndCap(t *testing.T) {
	s := NewSession(NextColor())
	first, _ := FingerprintURL("https://a.test/one")
	s.RememberURL(first)
	for i := 0; i < 2*maxRememberedURLs; i++ {
		fp, _ := FingerprintURL("https://a.test/page" + string(rune('a'+i)))
		s.RememberURL(fp)
	}
	if len(s.LastKnownURLs) != maxRememberedURLs {
		t.Fatalf("expected cap at %d, got %d", maxRememberedURLs, len(s.LastKnownURLs))
	}

	// Re-remembering moves to the front without duplicating.
	fp := s.LastKnownURLs[maxRememberedURLs-1]
	s.RememberURL(fp)
	if s.LastKnownURLs[0] != fp {
		t.Fatal("re-remembered fingerprint not promoted")
	}
	seen := make(map[URLFingerprint]bool)
	for _, u := range s.LastKnownURLs {
		if seen[u] {
			t.Fatalf("duplicate fingerprint %+v", u)
		}
		seen[u] = true
	}
}
