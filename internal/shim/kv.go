// Package shim provides the page-context script shim: cookie and
// local-storage accessors overridden so client-side reads and writes see
// only their session's view. The JS prelude is injected by the browser
// companion before any page script runs; the goja runtime here executes
// the same prelude against bridged host functions for shim evaluation and
// tests.
package shim

import (
	"sort"
	"sync"

	"github.com/tabcell/tabcell/pkg/cellib"
)

// KVStore is the session-namespaced local-storage replacement. Keys are
// scoped per session id; enumeration and length never cross namespaces.
type KVStore struct {
	mu   sync.RWMutex
	data map[cellib.SessionID]map[string]string
}

// NewKVStore returns an empty store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[cellib.SessionID]map[string]string)}
}

// Get returns the value for key within the session namespace.
func (s *KVStore) Get(id cellib.SessionID, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[id][key]
	return v, ok
}

// Set writes key within the session namespace.
func (s *KVStore) Set(id cellib.SessionID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.data[id]
	if ns == nil {
		ns = make(map[string]string)
		s.data[id] = ns
	}
	ns[key] = value
}

// Remove deletes key from the session namespace.
func (s *KVStore) Remove(id cellib.SessionID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[id], key)
}

// Clear drops the whole session namespace.
func (s *KVStore) Clear(id cellib.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
}

// Len returns the number of keys visible to the session.
func (s *KVStore) Len(id cellib.SessionID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[id])
}

// Keys returns the session's keys in sorted order, for enumeration.
func (s *KVStore) Keys(id cellib.SessionID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data[id]))
	for k := range s.data[id] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
