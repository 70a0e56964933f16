package intercept

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/tabcell/tabcell/pkg/cellib"
)

type recordingPersister struct {
	mu    sync.Mutex
	saved []cellib.SessionID
}

func (p *recordingPersister) Save(_ context.Context, id cellib.SessionID, immediate bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if immediate {
		panic("interception path must never request an immediate write")
	}
	p.saved = append(p.saved, id)
	return nil
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saved)
}

// newBoundSession puts a fresh session in the table and binds the tab.
func newBoundSession(t *testing.T, table *cellib.SessionTable, binder *cellib.Binder, tab int64) cellib.SessionID {
	t.Helper()
	s := cellib.NewSession(cellib.NextColor())
	table.Put(s)
	if err := binder.Bind(tab, s.ID); err != nil {
		t.Fatalf("bind tab %d: %v", tab, err)
	}
	return s.ID
}

func newInterceptor(t *testing.T) (*Interceptor, *cellib.SessionTable, *cellib.Binder, *recordingPersister) {
	t.Helper()
	table := cellib.NewSessionTable()
	binder := cellib.NewBinder(table)
	p := &recordingPersister{}
	return New(nil, table, binder, p), table, binder, p
}

func TestTwoSessionsGetIsolatedCookies(t *testing.T) {
	icept, table, binder, _ := newInterceptor(t)
	newBoundSession(t, table, binder, 1)
	newBoundSession(t, table, binder, 2)

	// Both tabs visit the same site; the server sets a distinct identity
	// cookie for each.
	respA := make(http.Header)
	respA.Add("Set-Cookie", "sid=alice; Path=/")
	if out := icept.FilterResponse(1, "https://app.example/login", respA); out.Get("Set-Cookie") != "" {
		t.Fatal("Set-Cookie must be stripped from a bound tab's response")
	}
	respB := make(http.Header)
	respB.Add("Set-Cookie", "sid=bob; Path=/")
	icept.FilterResponse(2, "https://app.example/login", respB)

	// Each tab's next request carries only its own session's cookie, even
	// when the browser supplies a stale shared-store header.
	reqA := make(http.Header)
	reqA.Set("Cookie", "sid=stale-shared")
	outA := icept.FilterRequest(1, "https://app.example/home", reqA)
	if got := outA.Get("Cookie"); got != "sid=alice" {
		t.Fatalf("tab 1 cookie = %q, want sid=alice", got)
	}
	outB := icept.FilterRequest(2, "https://app.example/home", make(http.Header))
	if got := outB.Get("Cookie"); got != "sid=bob" {
		t.Fatalf("tab 2 cookie = %q, want sid=bob", got)
	}

	// The original header map is never mutated in place.
	if reqA.Get("Cookie") != "sid=stale-shared" {
		t.Fatal("caller's header map was mutated")
	}
}

func TestUnboundTabPassesThrough(t *testing.T) {
	icept, _, _, _ := newInterceptor(t)

	req := make(http.Header)
	req.Set("Cookie", "shared=1")
	if out := icept.FilterRequest(99, "https://app.example/", req); out.Get("Cookie") != "shared=1" {
		t.Fatal("unbound tab request should pass through untouched")
	}

	resp := make(http.Header)
	resp.Add("Set-Cookie", "shared=2")
	if out := icept.FilterResponse(99, "https://app.example/", resp); out.Get("Set-Cookie") != "shared=2" {
		t.Fatal("unbound tab response should keep its Set-Cookie headers")
	}
}

func TestNoMatchRemovesCookieHeader(t *testing.T) {
	icept, table, binder, _ := newInterceptor(t)
	newBoundSession(t, table, binder, 1)

	req := make(http.Header)
	req.Set("Cookie", "shared=1")
	out := icept.FilterRequest(1, "https://app.example/", req)
	if _, present := out["Cookie"]; present {
		t.Fatal("empty jar match must remove the Cookie header, not send it empty")
	}
}

func TestMalformedSetCookieCountedAndDropped(t *testing.T) {
	icept, table, binder, p := newInterceptor(t)
	newBoundSession(t, table, binder, 1)

	resp := make(http.Header)
	resp.Add("Set-Cookie", "good=1; Path=/")
	resp.Add("Set-Cookie", "=nodir")
	resp.Add("Set-Cookie", "evil=1; Domain=attacker.example")
	icept.FilterResponse(1, "https://app.example/", resp)

	if got := icept.MalformedDropped(); got != 2 {
		t.Fatalf("malformed counter = %d, want 2", got)
	}

	// The good cookie still landed, and a write was scheduled for it.
	req := icept.FilterRequest(1, "https://app.example/", make(http.Header))
	if got := req.Get("Cookie"); got != "good=1" {
		t.Fatalf("cookie = %q, want good=1", got)
	}
	if p.count() == 0 {
		t.Fatal("a mutating response must schedule a persistence write")
	}
}

func TestResponseWithoutCookiesSchedulesNothing(t *testing.T) {
	icept, table, binder, p := newInterceptor(t)
	newBoundSession(t, table, binder, 1)

	icept.FilterResponse(1, "https://app.example/", make(http.Header))
	if p.count() != 0 {
		t.Fatal("a cookieless response must not schedule a write")
	}
}

func TestScriptCookieSharedWithNetworkPath(t *testing.T) {
	icept, table, binder, _ := newInterceptor(t)
	newBoundSession(t, table, binder, 1)

	if err := icept.ApplyScriptCookie(1, "https://app.example/page", "pref=dark; Path=/"); err != nil {
		t.Fatalf("script write: %v", err)
	}

	// The network path sees the scripted cookie.
	req := icept.FilterRequest(1, "https://app.example/other", make(http.Header))
	if got := req.Get("Cookie"); got != "pref=dark" {
		t.Fatalf("network cookie = %q, want pref=dark", got)
	}

	// And the script view sees cookies the network path captured, except
	// HttpOnly ones.
	resp := make(http.Header)
	resp.Add("Set-Cookie", "sid=s1; Path=/; HttpOnly")
	resp.Add("Set-Cookie", "theme=light; Path=/")
	icept.FilterResponse(1, "https://app.example/", resp)

	value, ok := icept.ReadScriptCookies(1, "https://app.example/page")
	if !ok {
		t.Fatal("bound tab should get a script cookie view")
	}
	if strings.Contains(value, "sid=") {
		t.Fatalf("HttpOnly cookie leaked to scripts: %q", value)
	}
	if !strings.Contains(value, "pref=dark") || !strings.Contains(value, "theme=light") {
		t.Fatalf("script view = %q, want pref and theme", value)
	}
}

func TestScriptAccessOnUnboundTab(t *testing.T) {
	icept, _, _, _ := newInterceptor(t)

	if err := icept.ApplyScriptCookie(5, "https://app.example/", "a=1"); err != cellib.ErrTabNotBound {
		t.Fatalf("expected ErrTabNotBound, got %v", err)
	}
	if _, ok := icept.ReadScriptCookies(5, "https://app.example/"); ok {
		t.Fatal("unbound tab must fall through to the real accessor")
	}
}

func TestSessionDeletedMidFlight(t *testing.T) {
	icept, table, binder, _ := newInterceptor(t)
	id := newBoundSession(t, table, binder, 1)

	// The binding snapshot is taken at lookup; deleting the session under
	// it degrades to passthrough instead of a half-swapped header.
	table.Delete(id)

	req := make(http.Header)
	req.Set("Cookie", "shared=1")
	if out := icept.FilterRequest(1, "https://app.example/", req); out.Get("Cookie") != "shared=1" {
		t.Fatal("deleted session should degrade to passthrough")
	}

	resp := make(http.Header)
	resp.Add("Set-Cookie", "a=1")
	if out := icept.FilterResponse(1, "https://app.example/", resp); out.Get("Set-Cookie") != "a=1" {
		t.Fatal("deleted session response should pass through")
	}
}
