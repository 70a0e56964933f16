package storage

import (
	"context"
	"sync"
)

// MemoryTier is the fast volatile tier: a mutex-guarded record map that is
// lost on restart. It exists so intercept-path reads after a crash of the
// durable tiers still have a consistent record set, and so tests can run
// the manager without touching disk.
type MemoryTier struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemoryTier returns an empty volatile tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{recs: make(map[string]Record)}
}

func (m *MemoryTier) Name() string { return TierMemory }

func (m *MemoryTier) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.SessionID] = rec
	return nil
}

func (m *MemoryTier) LoadAll(_ context.Context) (map[string]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Record, len(m.recs))
	for id, rec := range m.recs {
		out[id] = rec
	}
	return out, nil
}

func (m *MemoryTier) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, sessionID)
	return nil
}

func (m *MemoryTier) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = make(map[string]Record)
	return nil
}

func (m *MemoryTier) Probe(context.Context) error { return nil }

func (m *MemoryTier) Close() error { return nil }

var _ Tier = (*MemoryTier)(nil)
