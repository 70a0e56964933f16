package events

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/tabcell/tabcell/internal/intercept"
	"github.com/tabcell/tabcell/internal/policy"
	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// Deleter removes a session from memory and every storage tier.
type Deleter interface {
	DeleteSession(ctx context.Context, id cellib.SessionID) (map[string]string, error)
}

// Persister schedules durable writes for mutated sessions.
type Persister interface {
	Save(ctx context.Context, id cellib.SessionID, immediate bool) error
}

// Hub dispatches inbound browser events into the engine. Handlers mutate
// the session table through its atomic update interface only; heavier
// work (orphan deletion) is pushed to a background goroutine.
type Hub struct {
	log     logger.Logger
	table   *cellib.SessionTable
	binder  *cellib.Binder
	icept   *intercept.Interceptor
	tabs    *TabRegistry
	gate    *policy.Gate
	persist Persister
	deleter Deleter

	dispatched atomic.Uint64
}

// NewHub wires the event dispatcher over the shared engine state.
func NewHub(l logger.Logger, table *cellib.SessionTable, binder *cellib.Binder,
	icept *intercept.Interceptor, tabs *TabRegistry, gate *policy.Gate,
	persist Persister, deleter Deleter) *Hub {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Hub{
		log:     l,
		table:   table,
		binder:  binder,
		icept:   icept,
		tabs:    tabs,
		gate:    gate,
		persist: persist,
		deleter: deleter,
	}
}

// Tabs exposes the live tab registry.
func (h *Hub) Tabs() *TabRegistry { return h.tabs }

// Dispatched reports the number of events handled since startup.
func (h *Hub) Dispatched() uint64 { return h.dispatched.Load() }

// Dispatch handles one inbound event and produces its reply.
func (h *Hub) Dispatch(e *Event) Reply {
	h.dispatched.Add(1)
	switch e.Type {
	case RequestStart:
		hdr := h.icept.FilterRequest(e.TabID, e.URL, http.Header(e.Headers))
		return Reply{Seq: e.Seq, Ok: true, Headers: hdr}

	case ResponseHeaders:
		hdr := h.icept.FilterResponse(e.TabID, e.URL, http.Header(e.Headers))
		return Reply{Seq: e.Seq, Ok: true, Headers: hdr}

	case TabCreated:
		h.tabs.Add(e.TabID, e.URL)
		return Reply{Seq: e.Seq, Ok: true}

	case TabUpdated:
		h.tabs.SetURL(e.TabID, e.URL)
		h.handleNavigation(e.TabID, e.URL)
		return Reply{Seq: e.Seq, Ok: true}

	case TabRemoved:
		h.tabs.Remove(e.TabID)
		h.handleTabRemoved(e.TabID)
		return Reply{Seq: e.Seq, Ok: true}

	default:
		h.log.Warning("events: unknown event type %q", e.Type)
		return Reply{Seq: e.Seq, Ok: false, Error: "unknown event type: " + string(e.Type)}
	}
}

// handleNavigation remembers the new URL fingerprint on the owning
// session for restoration matching.
func (h *Hub) handleNavigation(tab int64, url string) {
	id, ok := h.binder.Lookup(tab)
	if !ok {
		return
	}
	fp, ok := cellib.FingerprintURL(url)
	if !ok {
		return
	}
	if err := h.table.Update(id, func(s *cellib.Session) {
		s.RememberURL(fp)
		s.Touch()
	}); err != nil {
		return
	}
	if h.persist != nil {
		_ = h.persist.Save(context.Background(), id, false)
	}
}

// handleTabRemoved unbinds the tab. When the session becomes an orphan and
// the active policy grants no restoration, it is deleted right away; any
// grace period would leave storage and memory disagreeing.
func (h *Hub) handleTabRemoved(tab int64) {
	id, ok := h.binder.Lookup(tab)
	if !ok {
		return
	}
	h.binder.Unbind(tab)

	var orphan bool
	if err := h.table.View(id, func(s *cellib.Session) {
		orphan = s.IsOrphan()
	}); err != nil {
		return
	}
	if !orphan {
		return
	}
	if h.gate != nil && h.gate.RestorationEnabled() {
		// Orphan survives for restoration; make its final state durable.
		if h.persist != nil {
			_ = h.persist.Save(context.Background(), id, false)
		}
		return
	}
	if h.deleter == nil {
		return
	}
	go func() {
		if _, err := h.deleter.DeleteSession(context.Background(), id); err != nil {
			h.log.Error("events: deleting orphan session %s: %v", id, err)
		}
	}()
}
