package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/internal/events"
	"github.com/tabcell/tabcell/internal/intercept"
	"github.com/tabcell/tabcell/internal/policy"
	"github.com/tabcell/tabcell/internal/storage"
	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

type apiFixture struct {
	api    *Api
	table  *cellib.SessionTable
	binder *cellib.Binder
	store  *storage.Manager
}

func newApiFixture(t *testing.T) *apiFixture {
	t.Helper()
	table := cellib.NewSessionTable()
	binder := cellib.NewBinder(table)
	store := storage.NewManager(nil, table, time.Millisecond, storage.NewMemoryTier())
	t.Cleanup(func() { _ = store.Close() })

	gate := policy.NewGate(nil, policy.TierPremium, time.Millisecond, nil)
	t.Cleanup(gate.Close)
	icept := intercept.New(nil, table, binder, store)
	tabs := events.NewTabRegistry()
	hub := events.NewHub(nil, table, binder, icept, tabs, gate, store, store)

	api, err := NewApi(logger.NewNopLogger(), table, binder, store, gate, icept, hub)
	if err != nil {
		t.Fatalf("new api: %v", err)
	}
	return &apiFixture{api: api, table: table, binder: binder, store: store}
}

func mustParams(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return b
}

func (f *apiFixture) createSession(t *testing.T) cellib.SessionID {
	t.Helper()
	res, err := f.api.createSessionHandler(nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	id, err := cellib.ParseSessionID(res.(*common.CreateSessionResponse).SessionId)
	if err != nil {
		t.Fatalf("parse session id: %v", err)
	}
	return id
}

func TestUnbindTabIdempotent(t *testing.T) {
	f := newApiFixture(t)
	id := f.createSession(t)
	if err := f.binder.Bind(3, id); err != nil {
		t.Fatalf("bind: %v", err)
	}

	params := mustParams(t, common.UnbindTabParams{TabId: 3})
	res, err := f.api.unbindTabHandler(params)
	if err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if !res.(*common.AckResponse).Ok {
		t.Fatal("unbind not acked")
	}

	// The same request again lands after the tab is already unbound; it
	// must ack, not error, so a retried extension event is harmless.
	res, err = f.api.unbindTabHandler(params)
	if err != nil {
		t.Fatalf("repeat unbind: %v", err)
	}
	if !res.(*common.AckResponse).Ok {
		t.Fatal("repeat unbind not acked")
	}
	if _, bound := f.binder.Lookup(3); bound {
		t.Fatal("tab still bound")
	}
}

func TestUnbindNeverBoundTabSucceeds(t *testing.T) {
	f := newApiFixture(t)
	res, err := f.api.unbindTabHandler(mustParams(t, common.UnbindTabParams{TabId: 99}))
	if err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if !res.(*common.AckResponse).Ok {
		t.Fatal("unbind of an unknown tab not acked")
	}
}

func TestListSessionsEmptyMarshalsAsArray(t *testing.T) {
	f := newApiFixture(t)
	res, err := f.api.listSessionsHandler(nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"sessions":[]`) {
		t.Fatalf("empty list marshaled as %s, want a JSON array", b)
	}
}

func TestListSessionsOrderedById(t *testing.T) {
	f := newApiFixture(t)
	a := f.createSession(t)
	b := f.createSession(t)
	if err := f.binder.Bind(1, a); err != nil {
		t.Fatalf("bind: %v", err)
	}

	res, err := f.api.listSessionsHandler(nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	list := res.(*common.ListSessionsResponse).Sessions
	if len(list) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(list))
	}
	if list[0].SessionId > list[1].SessionId {
		t.Fatal("sessions not ordered by id")
	}
	for _, s := range list {
		switch s.SessionId {
		case string(a):
			if s.IsOrphan || len(s.TabIds) != 1 || s.TabIds[0] != 1 {
				t.Fatalf("bound session summary wrong: %+v", s)
			}
		case string(b):
			if !s.IsOrphan {
				t.Fatalf("unbound session should report orphan: %+v", s)
			}
		}
	}
}

func TestClearAllWipesSessionsAndBindings(t *testing.T) {
	f := newApiFixture(t)
	id := f.createSession(t)
	f.createSession(t)
	if err := f.binder.Bind(5, id); err != nil {
		t.Fatalf("bind: %v", err)
	}

	res, err := f.api.clearAllHandler(nil)
	if err != nil {
		t.Fatalf("clear all: %v", err)
	}
	resp := res.(*common.ClearAllResponse)
	if resp.Cleared != 2 {
		t.Fatalf("cleared = %d, want 2", resp.Cleared)
	}
	if resp.PerTier[storage.TierMemory] != "ok" {
		t.Fatalf("memory outcome = %q", resp.PerTier[storage.TierMemory])
	}
	if f.table.Len() != 0 {
		t.Fatalf("table still holds %d sessions", f.table.Len())
	}
	if _, bound := f.binder.Lookup(5); bound {
		t.Fatal("binding survived the clear")
	}
}
