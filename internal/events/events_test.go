package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tabcell/tabcell/internal/intercept"
	"github.com/tabcell/tabcell/internal/policy"
	"github.com/tabcell/tabcell/pkg/cellib"
)

type hubDeleter struct {
	table *cellib.SessionTable

	mu      sync.Mutex
	deleted []cellib.SessionID
}

func (d *hubDeleter) DeleteSession(_ context.Context, id cellib.SessionID) (map[string]string, error) {
	d.mu.Lock()
	d.deleted = append(d.deleted, id)
	d.mu.Unlock()
	d.table.Delete(id)
	return map[string]string{"memory": "ok"}, nil
}

func (d *hubDeleter) deletedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deleted)
}

type hubSaver struct {
	mu    sync.Mutex
	saved []cellib.SessionID
}

func (p *hubSaver) Save(_ context.Context, id cellib.SessionID, _ bool) error {
	p.mu.Lock()
	p.saved = append(p.saved, id)
	p.mu.Unlock()
	return nil
}

type hubFixture struct {
	hub    *Hub
	table  *cellib.SessionTable
	binder *cellib.Binder
	tabs   *TabRegistry
	del    *hubDeleter
	save   *hubSaver
}

func newHubFixture(t *testing.T, tier policy.Tier) *hubFixture {
	t.Helper()
	table := cellib.NewSessionTable()
	binder := cellib.NewBinder(table)
	del := &hubDeleter{table: table}
	save := &hubSaver{}
	icept := intercept.New(nil, table, binder, save)
	tabs := NewTabRegistry()
	gate := policy.NewGate(nil, tier, time.Millisecond, nil)
	if policy.LimitsFor(tier).AllowRestore {
		if err := gate.SetAutoRestore(true); err != nil {
			t.Fatalf("enable auto restore: %v", err)
		}
	}
	hub := NewHub(nil, table, binder, icept, tabs, gate, save, del)
	return &hubFixture{hub: hub, table: table, binder: binder, tabs: tabs, del: del, save: save}
}

func (f *hubFixture) bindSession(t *testing.T, tab int64) cellib.SessionID {
	t.Helper()
	s := cellib.NewSession(cellib.NextColor())
	f.table.Put(s)
	if err := f.binder.Bind(tab, s.ID); err != nil {
		t.Fatalf("bind: %v", err)
	}
	return s.ID
}

func TestDispatchRequestLifecycle(t *testing.T) {
	f := newHubFixture(t, policy.TierFree)
	f.bindSession(t, 1)

	reply := f.hub.Dispatch(&Event{
		Seq:     3,
		Type:    ResponseHeaders,
		TabID:   1,
		URL:     "https://app.example/login",
		Headers: map[string][]string{"Set-Cookie": {"sid=a1; Path=/"}},
	})
	if !reply.Ok || reply.Seq != 3 {
		t.Fatalf("reply = %+v, want ok with seq 3", reply)
	}
	if len(reply.Headers["Set-Cookie"]) != 0 {
		t.Fatal("response reply should carry stripped headers")
	}

	reply = f.hub.Dispatch(&Event{
		Seq:   4,
		Type:  RequestStart,
		TabID: 1,
		URL:   "https://app.example/home",
	})
	if got := reply.Headers["Cookie"]; len(got) != 1 || got[0] != "sid=a1" {
		t.Fatalf("request reply cookie = %v, want [sid=a1]", got)
	}

	if f.hub.Dispatched() != 2 {
		t.Fatalf("dispatched = %d, want 2", f.hub.Dispatched())
	}
}

func TestDispatchUnknownType(t *testing.T) {
	f := newHubFixture(t, policy.TierFree)
	reply := f.hub.Dispatch(&Event{Seq: 1, Type: "tab_hibernated"})
	if reply.Ok {
		t.Fatal("unknown event type must not report ok")
	}
	if !strings.Contains(reply.Error, "tab_hibernated") {
		t.Fatalf("error %q should name the offending type", reply.Error)
	}
}

func TestTabLifecycleKeepsRegistryOrdered(t *testing.T) {
	f := newHubFixture(t, policy.TierFree)

	f.hub.Dispatch(&Event{Type: TabCreated, TabID: 10, URL: "https://a.example/"})
	f.hub.Dispatch(&Event{Type: TabCreated, TabID: 11, URL: "https://b.example/"})
	f.hub.Dispatch(&Event{Type: TabCreated, TabID: 12, URL: "https://c.example/"})
	f.hub.Dispatch(&Event{Type: TabUpdated, TabID: 10, URL: "https://a.example/next"})
	f.hub.Dispatch(&Event{Type: TabRemoved, TabID: 11})

	list := f.tabs.List()
	if len(list) != 2 {
		t.Fatalf("registry has %d tabs, want 2", len(list))
	}
	if list[0].ID != 10 || list[1].ID != 12 {
		t.Fatalf("creation order lost: %v", list)
	}
	if list[0].URL != "https://a.example/next" {
		t.Fatalf("tab 10 url = %q, want the updated one", list[0].URL)
	}
}

func TestNavigationRemembersURLForRestoration(t *testing.T) {
	f := newHubFixture(t, policy.TierFree)
	id := f.bindSession(t, 1)

	f.hub.Dispatch(&Event{Type: TabUpdated, TabID: 1, URL: "https://app.example/settings?x=1"})

	fp, _ := cellib.FingerprintURL("https://app.example/settings")
	var match bool
	if err := f.table.View(id, func(s *cellib.Session) {
		match = s.MatchesURL(fp)
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if !match {
		t.Fatal("navigation should record the URL fingerprint")
	}
	f.save.mu.Lock()
	saves := len(f.save.saved)
	f.save.mu.Unlock()
	if saves == 0 {
		t.Fatal("navigation should schedule a persistence write")
	}
}

func TestOrphanDeletedWhenRestorationOff(t *testing.T) {
	f := newHubFixture(t, policy.TierFree)
	id := f.bindSession(t, 1)

	f.hub.Dispatch(&Event{Type: TabRemoved, TabID: 1})

	// Deletion runs on a background goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for f.del.deletedCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("orphan was not deleted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if f.table.Has(id) {
		t.Fatal("orphan session should be gone from the table")
	}
}

func TestOrphanKeptWhenRestorationOn(t *testing.T) {
	f := newHubFixture(t, policy.TierPremium)
	id := f.bindSession(t, 1)

	f.hub.Dispatch(&Event{Type: TabRemoved, TabID: 1})

	time.Sleep(20 * time.Millisecond)
	if f.del.deletedCount() != 0 {
		t.Fatal("restoration-enabled orphan must not be deleted")
	}
	if !f.table.Has(id) {
		t.Fatal("orphan should stay in the table")
	}
	var orphan bool
	_ = f.table.View(id, func(s *cellib.Session) { orphan = s.IsOrphan() })
	if !orphan {
		t.Fatal("session should be flagged as an orphan")
	}
}

func TestLastTabOfMultiTabSessionTriggersOrphanPath(t *testing.T) {
	f := newHubFixture(t, policy.TierFree)
	id := f.bindSession(t, 1)
	if err := f.binder.Bind(2, id); err != nil {
		t.Fatalf("bind second tab: %v", err)
	}

	f.hub.Dispatch(&Event{Type: TabRemoved, TabID: 1})
	time.Sleep(20 * time.Millisecond)
	if f.del.deletedCount() != 0 {
		t.Fatal("session with a remaining tab must not be deleted")
	}

	f.hub.Dispatch(&Event{Type: TabRemoved, TabID: 2})
	deadline := time.Now().Add(2 * time.Second)
	for f.del.deletedCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("last tab close should delete the orphan")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFrameRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	msg := []byte(`{"type":"tab_created","tab_id":1}`)
	if err := WriteFrame(&buf, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("roundtrip = %q, want %q", got, msg)
	}
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	// A 4-byte header claiming a payload far past the cap must be refused
	// before any allocation.
	hdr := []byte{0xff, 0xff, 0xff, 0x7f}
	if _, err := ReadFrame(bytes.NewReader(hdr)); err == nil {
		t.Fatal("oversized frame length should be rejected")
	}
}

func TestStdioHostPumpsEvents(t *testing.T) {
	f := newHubFixture(t, policy.TierFree)

	var in, out bytes.Buffer
	for _, raw := range []string{
		`{"seq":1,"type":"tab_created","tab_id":5,"url":"https://a.example/"}`,
		`not json`,
		`{"seq":2,"type":"tab_created","tab_id":6,"url":"https://b.example/"}`,
	} {
		if err := WriteFrame(&in, []byte(raw)); err != nil {
			t.Fatalf("frame fixture: %v", err)
		}
	}

	host := NewStdioHost(nil, f.hub, &in, &out)
	if err := host.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if f.tabs.Len() != 2 {
		t.Fatalf("registry has %d tabs, want 2", f.tabs.Len())
	}

	// One reply per decodable event; the garbage frame is dropped.
	var seqs []int64
	for {
		b, err := ReadFrame(&out)
		if err != nil {
			break
		}
		var r Reply
		if err := json.Unmarshal(b, &r); err != nil {
			t.Fatalf("undecodable reply: %v", err)
		}
		if !r.Ok {
			t.Fatalf("reply %d not ok: %s", r.Seq, r.Error)
		}
		seqs = append(seqs, r.Seq)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("reply seqs = %v, want [1 2]", seqs)
	}
}
