package cellib

import "sync"

// Binder maintains the bidirectional tab <-> session mapping. The forward
// map (tab -> session) and the inverse map (session -> tab set) are
// mutated together under one mutex so they can never drift apart within
// the binder itself. The session table's per-session tab sets are updated
// in the same call; Repair reconciles them if corruption is ever detected.
type Binder struct {
	mu       sync.Mutex
	table    *SessionTable
	tabs     map[int64]SessionID
	sessions map[SessionID]map[int64]bool
}

// NewBinder creates a binder over the given table.
func NewBinder(table *SessionTable) *Binder {
	return &Binder{
		table:    table,
		tabs:     make(map[int64]SessionID),
		sessions: make(map[SessionID]map[int64]bool),
	}
}

// Bind associates a tab with a session, detaching it from any previous
// session first. Binding a tab to the session it already belongs to is a
// no-op, making the operation idempotent.
func (b *Binder) Bind(tab int64, id SessionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.table.Has(id) {
		return ErrSessionNotFound
	}
	if prev, ok := b.tabs[tab]; ok {
		if prev == id {
			return nil
		}
		b.detachLocked(tab, prev)
	}
	b.tabs[tab] = id
	set := b.sessions[id]
	if set == nil {
		set = make(map[int64]bool)
		b.sessions[id] = set
	}
	set[tab] = true
	_ = b.table.Update(id, func(s *Session) {
		s.Tabs[tab] = true
		s.Creating = false
		s.Touch()
	})
	return nil
}

// Unbind detaches a tab from whatever session owns it. Unbinding an
// unbound tab is a no-op.
func (b *Binder) Unbind(tab int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.tabs[tab]
	if !ok {
		return
	}
	b.detachLocked(tab, id)
}

func (b *Binder) detachLocked(tab int64, id SessionID) {
	delete(b.tabs, tab)
	if set := b.sessions[id]; set != nil {
		delete(set, tab)
		if len(set) == 0 {
			delete(b.sessions, id)
		}
	}
	_ = b.table.Update(id, func(s *Session) {
		delete(s.Tabs, tab)
		s.Touch()
	})
}

// Lookup resolves the owning session for a tab. The result is the binding
// snapshot at call time; request handlers must resolve once at
// request-start and reuse that value rather than resolving again later.
func (b *Binder) Lookup(tab int64) (SessionID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.tabs[tab]
	return id, ok
}

// TabsOf returns the tabs currently bound to a session.
func (b *Binder) TabsOf(id SessionID) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.sessions[id]
	tabs := make([]int64, 0, len(set))
	for t := range set {
		tabs = append(tabs, t)
	}
	return tabs
}

// DropSession removes every binding of the session and returns the tabs
// that were detached. Used when a session is deleted.
func (b *Binder) DropSession(id SessionID) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.sessions[id]
	tabs := make([]int64, 0, len(set))
	for t := range set {
		tabs = append(tabs, t)
		delete(b.tabs, t)
	}
	delete(b.sessions, id)
	return tabs
}

// Snapshot returns a copy of the forward map.
func (b *Binder) Snapshot() map[int64]SessionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int64]SessionID, len(b.tabs))
	for t, id := range b.tabs {
		out[t] = id
	}
	return out
}

// Repair runs the integrity pass over the binder maps and the session
// table: forward entries pointing at missing sessions are dropped, inverse
// sets are rebuilt from the forward map, and each session's tab set is
// rewritten to mirror the binder. It returns the number of repaired
// discrepancies.
func (b *Binder) Repair() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var fixed int
	for tab, id := range b.tabs {
		if !b.table.Has(id) {
			delete(b.tabs, tab)
			fixed++
		}
	}

	rebuilt := make(map[SessionID]map[int64]bool, len(b.sessions))
	for tab, id := range b.tabs {
		set := rebuilt[id]
		if set == nil {
			set = make(map[int64]bool)
			rebuilt[id] = set
		}
		set[tab] = true
	}
	if len(rebuilt) != len(b.sessions) {
		fixed++
	} else {
		for id, set := range rebuilt {
			old := b.sessions[id]
			if len(old) != len(set) {
				fixed++
				break
			}
			for t := range set {
				if !old[t] {
					fixed++
					break
				}
			}
		}
	}
	b.sessions = rebuilt

	b.table.RangeUpdate(func(s *Session) bool {
		want := rebuilt[s.ID]
		if len(s.Tabs) == len(want) {
			same := true
			for t := range want {
				if !s.Tabs[t] {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
		fixed++
		s.Tabs = make(map[int64]bool, len(want))
		for t := range want {
			s.Tabs[t] = true
		}
		return true
	})
	return fixed
}
