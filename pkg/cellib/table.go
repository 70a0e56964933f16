package cellib

import "sync"

// SessionTable is the canonical in-memory session map. It is the single
// source of truth shared by the binder, the interceptor, the persistence
// manager and the restoration machine, so every mutation goes through one
// of its methods and is atomic with respect to concurrent handlers.
//
// Sessions handed out by View/Update must not be retained past the
// callback; they share the table's lock the way warp-style managers share
// one mutex across items.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[SessionID]*Session
}

// NewSessionTable returns an empty table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[SessionID]*Session)}
}

// Put inserts or replaces a session.
func (t *SessionTable) Put(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID] = s
}

// Delete removes a session. Deleting an absent id is a no-op.
func (t *SessionTable) Delete(id SessionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Has reports whether the session exists.
func (t *SessionTable) Has(id SessionID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[id]
	return ok
}

// Len returns the number of sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// IDs returns a snapshot of all session ids.
func (t *SessionTable) IDs() []SessionID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]SessionID, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	return ids
}

// View runs fn with read access to the session. It returns
// ErrSessionNotFound when the id is absent.
func (t *SessionTable) View(id SessionID, fn func(*Session)) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	fn(s)
	return nil
}

// Update runs fn with exclusive access to the session. Handlers must do
// their read-check-write inside one Update call; reads taken earlier may
// be stale by the time the write applies.
func (t *SessionTable) Update(id SessionID, fn func(*Session)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	fn(s)
	return nil
}

// Range calls fn for every session under the read lock until fn returns
// false. fn must not mutate the sessions.
func (t *SessionTable) Range(fn func(*Session) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.sessions {
		if !fn(s) {
			return
		}
	}
}

// RangeUpdate calls fn for every session under the write lock. fn may
// mutate the sessions; returning false stops iteration.
func (t *SessionTable) RangeUpdate(fn func(*Session) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.sessions {
		if !fn(s) {
			return
		}
	}
}

// Orphans returns the ids of sessions with no bound tabs.
func (t *SessionTable) Orphans() []SessionID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []SessionID
	for id, s := range t.sessions {
		if s.IsOrphan() {
			ids = append(ids, id)
		}
	}
	return ids
}
