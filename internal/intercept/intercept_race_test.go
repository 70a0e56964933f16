package intercept

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
)

// =============================================================================
// Race Condition Tests for Interceptor
// Run with: go test -race -run '_Race_' ./internal/intercept/
// =============================================================================

// TestInterceptor_Race_RequestResponseSameSession hammers the request and
// response filters for one session from many goroutines.
func TestInterceptor_Race_RequestResponseSameSession(t *testing.T) {
	icept, table, binder, _ := newInterceptor(t)
	newBoundSession(t, table, binder, 1)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resp := make(http.Header)
			resp.Add("Set-Cookie", fmt.Sprintf("k%d=v%d; Path=/", n, n))
			_ = icept.FilterResponse(1, "https://app.example/", resp)
		}(i)
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := make(http.Header)
			req.Set("Cookie", "shared=stale")
			_ = icept.FilterRequest(1, "https://app.example/", req)
		}()
	}
	wg.Wait()
}

// TestInterceptor_Race_ScriptAndNetworkPaths mixes script reads and writes
// with network-path filtering on the same tab.
func TestInterceptor_Race_ScriptAndNetworkPaths(t *testing.T) {
	icept, table, binder, _ := newInterceptor(t)
	newBoundSession(t, table, binder, 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = icept.ApplyScriptCookie(1, "https://app.example/", fmt.Sprintf("pref%d=dark", n))
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = icept.ReadScriptCookies(1, "https://app.example/")
		}()
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resp := make(http.Header)
			resp.Add("Set-Cookie", fmt.Sprintf("net%d=1; Path=/", n))
			_ = icept.FilterResponse(1, "https://app.example/", resp)
			_ = icept.MalformedDropped()
		}(i)
	}
	wg.Wait()
}

// TestInterceptor_Race_DeleteMidTraffic deletes the session while filters
// are in flight; late callers must degrade to passthrough, never panic.
func TestInterceptor_Race_DeleteMidTraffic(t *testing.T) {
	icept, table, binder, _ := newInterceptor(t)
	id := newBoundSession(t, table, binder, 1)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resp := make(http.Header)
			resp.Add("Set-Cookie", fmt.Sprintf("k%d=v; Path=/", n))
			_ = icept.FilterResponse(1, "https://app.example/", resp)
			_ = icept.FilterRequest(1, "https://app.example/", make(http.Header))
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		binder.DropSession(id)
		table.Delete(id)
	}()
	wg.Wait()

	if fixed := binder.Repair(); fixed != 0 {
		t.Errorf("binder left inconsistent after mid-traffic delete: %d", fixed)
	}
}
