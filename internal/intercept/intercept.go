// Package intercept implements the cookie swap layer: outbound requests
// from bound tabs carry their session's cookies, and inbound Set-Cookie
// headers are captured into the session jar instead of the browser's
// shared store.
package intercept

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// Persister schedules durable writes for mutated sessions. Writes from the
// interception path are never immediate; they must not block the
// request/response callback on storage IO.
type Persister interface {
	Save(ctx context.Context, id cellib.SessionID, immediate bool) error
}

// Interceptor rewrites request and response headers for session-bound
// tabs. Unbound tabs pass through untouched and keep using the browser's
// shared jar.
type Interceptor struct {
	log     logger.Logger
	table   *cellib.SessionTable
	binder  *cellib.Binder
	persist Persister

	malformedDropped atomic.Uint64
}

// New creates an interceptor over the shared session table and binder.
func New(l logger.Logger, table *cellib.SessionTable, binder *cellib.Binder, p Persister) *Interceptor {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Interceptor{log: l, table: table, binder: binder, persist: p}
}

// FilterRequest substitutes the Cookie header for an outbound request from
// the given tab. The owning session is resolved once, here, at
// request-start; handlers racing a close event act on this snapshot, never
// on a later binding state. When no jar entry matches the request target
// the Cookie header is removed entirely, not sent empty.
func (i *Interceptor) FilterRequest(tab int64, rawURL string, hdr http.Header) http.Header {
	id, ok := i.binder.Lookup(tab)
	if !ok {
		return hdr
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return hdr
	}

	out := hdr.Clone()
	if out == nil {
		out = make(http.Header)
	}
	now := time.Now()
	err = i.table.Update(id, func(s *cellib.Session) {
		s.Touch()
		if value, match := s.Jar.CookieHeader(u, now); match {
			out.Set("Cookie", value)
		} else {
			out.Del("Cookie")
		}
	})
	if err != nil {
		// Session deleted between lookup and update: fall back to
		// passthrough rather than sending a half-swapped header set.
		return hdr
	}
	return out
}

// FilterResponse captures every Set-Cookie directive of a response to a
// bound tab into the session jar and strips them from the headers the
// browser itself applies, keeping the shared jar clean. Malformed
// directives are dropped and counted; they never reach any jar.
func (i *Interceptor) FilterResponse(tab int64, rawURL string, hdr http.Header) http.Header {
	id, ok := i.binder.Lookup(tab)
	if !ok {
		return hdr
	}
	setCookies := hdr.Values("Set-Cookie")
	if len(setCookies) == 0 {
		return hdr
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return hdr
	}

	var mutated bool
	now := time.Now()
	uerr := i.table.Update(id, func(s *cellib.Session) {
		for _, raw := range setCookies {
			if err := s.Jar.SetFromSetCookie(raw, u, now); err != nil {
				if errors.Is(err, cellib.ErrMalformedCookie) {
					i.malformedDropped.Add(1)
					i.log.Warning("intercept: dropped malformed cookie for %s: %v", u.Hostname(), err)
					continue
				}
				continue
			}
			mutated = true
		}
		s.Touch()
	})
	if uerr != nil {
		return hdr
	}

	out := hdr.Clone()
	out.Del("Set-Cookie")

	if mutated && i.persist != nil {
		if err := i.persist.Save(context.Background(), id, false); err != nil {
			i.log.Warning("intercept: scheduling persistence for %s failed: %v", id, err)
		}
	}
	return out
}

// ApplyScriptCookie routes a document.cookie style write from the script
// shim into the same jar the network path uses, keeping the two views
// consistent.
func (i *Interceptor) ApplyScriptCookie(tab int64, pageURL, directive string) error {
	id, ok := i.binder.Lookup(tab)
	if !ok {
		return cellib.ErrTabNotBound
	}
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return cellib.ErrMalformedCookie
	}
	now := time.Now()
	var setErr error
	uerr := i.table.Update(id, func(s *cellib.Session) {
		setErr = s.Jar.SetScripted(directive, u, now)
		s.Touch()
	})
	if uerr != nil {
		return uerr
	}
	if setErr != nil {
		if errors.Is(setErr, cellib.ErrMalformedCookie) {
			i.malformedDropped.Add(1)
		}
		return setErr
	}
	if i.persist != nil {
		_ = i.persist.Save(context.Background(), id, false)
	}
	return nil
}

// ReadScriptCookies returns the cookie string a same-origin script may see
// for the page, or ok=false when the tab is unbound (the shim then passes
// through to the real accessor).
func (i *Interceptor) ReadScriptCookies(tab int64, pageURL string) (string, bool) {
	id, ok := i.binder.Lookup(tab)
	if !ok {
		return "", false
	}
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	var value string
	if err := i.table.View(id, func(s *cellib.Session) {
		value = s.Jar.ScriptCookies(u, time.Now())
	}); err != nil {
		return "", false
	}
	return value, true
}

// MalformedDropped reports how many malformed cookie directives were
// discarded since startup.
func (i *Interceptor) MalformedDropped() uint64 {
	return i.malformedDropped.Load()
}
