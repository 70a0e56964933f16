package cellib

import (
	"testing"
)

func newBoundSession(t *testing.T, table *SessionTable) *Session {
	t.Helper()
	s := NewSession(NextColor())
	table.Put(s)
	return s
}

func TestBindIdempotent(t *testing.T) {
	table := NewSessionTable()
	b := NewBinder(table)
	s := newBoundSession(t, table)

	if err := b.Bind(1, s.ID); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := b.Bind(1, s.ID); err != nil {
		t.Fatalf("re-bind: %v", err)
	}
	if got := b.TabsOf(s.ID); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected exactly tab 1, got %v", got)
	}
}

func TestBindMovesTabBetweenSessions(t *testing.T) {
	table := NewSessionTable()
	b := NewBinder(table)
	s1 := newBoundSession(t, table)
	s2 := newBoundSession(t, table)

	if err := b.Bind(7, s1.ID); err != nil {
		t.Fatalf("bind s1: %v", err)
	}
	if err := b.Bind(7, s2.ID); err != nil {
		t.Fatalf("bind s2: %v", err)
	}
	if tabs := b.TabsOf(s1.ID); len(tabs) != 0 {
		t.Fatalf("tab still attached to old session: %v", tabs)
	}
	id, ok := b.Lookup(7)
	if !ok || id != s2.ID {
		t.Fatalf("lookup = %v %v, want %v", id, ok, s2.ID)
	}
	// The table view moved with it.
	_ = table.View(s1.ID, func(s *Session) {
		if len(s.Tabs) != 0 {
			t.Errorf("old session still tracks the tab: %v", s.Tabs)
		}
	})
}

func TestBindUnknownSession(t *testing.T) {
	table := NewSessionTable()
	b := NewBinder(table)
	if err := b.Bind(1, SessionID("sess_missing")); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestBindClearsCreating(t *testing.T) {
	table := NewSessionTable()
	b := NewBinder(table)
	s := newBoundSession(t, table)
	if !s.Creating {
		t.Fatal("fresh session should be creating")
	}
	if err := b.Bind(1, s.ID); err != nil {
		t.Fatalf("bind: %v", err)
	}
	_ = table.View(s.ID, func(s *Session) {
		if s.Creating {
			t.Error("bound session still marked creating")
		}
		if s.IsOrphan() {
			t.Error("bound session reported as orphan")
		}
	})
}

func TestUnbindUnboundTabIsNoop(t *testing.T) {
	table := NewSessionTable()
	b := NewBinder(table)
	b.Unbind(999)
}

func TestDropSessionDetachesAllTabs(t *testing.T) {
	table := NewSessionTable()
	b := NewBinder(table)
	s := newBoundSession(t, table)

	_ = b.Bind(1, s.ID)
	_ = b.Bind(2, s.ID)
	tabs := b.DropSession(s.ID)
	if len(tabs) != 2 {
		t.Fatalf("expected 2 detached tabs, got %v", tabs)
	}
	if _, ok := b.Lookup(1); ok {
		t.Fatal("tab 1 still resolvable after drop")
	}
}

func TestRepairDropsDanglingBindings(t *testing.T) {
	table := NewSessionTable()
	b := NewBinder(table)
	s := newBoundSession(t, table)
	_ = b.Bind(1, s.ID)

	// Simulate a session vanishing underneath the binder.
	table.Delete(s.ID)
	fixed := b.Repair()
	if fixed == 0 {
		t.Fatal("expected repair to fix at least one entry")
	}
	if _, ok := b.Lookup(1); ok {
		t.Fatal("dangling binding survived repair")
	}
}

func TestOrphansListing(t *testing.T) {
	table := NewSessionTable()
	b := NewBinder(table)
	bound := newBoundSession(t, table)
	_ = b.Bind(1, bound.ID)

	orphan := NewSession(NextColor())
	orphan.Creating = false
	table.Put(orphan)

	creating := NewSession(NextColor())
	table.Put(creating)

	ids := table.Orphans()
	if len(ids) != 1 || ids[0] != orphan.ID {
		t.Fatalf("expected only %v orphaned, got %v", orphan.ID, ids)
	}
}
