// Package events carries tab-lifecycle and request-lifecycle events from
// the browser companion into the engine. The engine subscribes to a small
// fixed set of event types; each handler is short and non-blocking and may
// only enqueue background work.
package events

import (
	"encoding/json"
	"sync"
)

// Type enumerates the inbound event kinds.
type Type string

const (
	RequestStart    Type = "request_start"
	ResponseHeaders Type = "response_headers"
	TabCreated      Type = "tab_created"
	TabUpdated      Type = "tab_updated"
	TabRemoved      Type = "tab_removed"
)

// Event is one inbound browser event. Seq correlates replies on
// transports that need them.
type Event struct {
	Seq     int64               `json:"seq,omitempty"`
	Type    Type                `json:"type"`
	TabID   int64               `json:"tab_id"`
	URL     string              `json:"url,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
}

// Reply answers a request-start or response-headers event with the
// (possibly swapped) header set the browser should apply.
type Reply struct {
	Seq     int64               `json:"seq,omitempty"`
	Ok      bool                `json:"ok"`
	Error   string              `json:"error,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
}

// ParseEvent decodes one wire event.
func ParseEvent(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// TabInfo is the registry's view of one live browser tab.
type TabInfo struct {
	ID  int64
	URL string
}

// TabRegistry tracks live tabs in creation order. The restoration machine
// consumes the ordered list so first-match-wins ties resolve by creation
// order.
type TabRegistry struct {
	mu    sync.Mutex
	order []int64
	tabs  map[int64]*TabInfo
}

// NewTabRegistry returns an empty registry.
func NewTabRegistry() *TabRegistry {
	return &TabRegistry{tabs: make(map[int64]*TabInfo)}
}

// Add records a new tab. Re-adding an existing id only updates the URL.
func (r *TabRegistry) Add(id int64, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tabs[id]; ok {
		t.URL = url
		return
	}
	r.tabs[id] = &TabInfo{ID: id, URL: url}
	r.order = append(r.order, id)
}

// SetURL updates a tab's current URL.
func (r *TabRegistry) SetURL(id int64, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tabs[id]; ok {
		t.URL = url
	}
}

// Remove forgets a tab.
func (r *TabRegistry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tabs[id]; !ok {
		return
	}
	delete(r.tabs, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// List returns all live tabs in creation order.
func (r *TabRegistry) List() []TabInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TabInfo, 0, len(r.order))
	for _, id := range r.order {
		if t, ok := r.tabs[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Len returns the number of live tabs.
func (r *TabRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}
