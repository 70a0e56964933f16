package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// DefaultWriteDebounce coalesces rapid repeated jar writes headed for the
// asynchronous tier to bound write amplification.
const DefaultWriteDebounce = 2 * time.Second

// Health is the externally visible state of one tier.
type Health struct {
	Available bool
	LastError string
}

// LoadReport summarizes startup reconciliation.
type LoadReport struct {
	Restored     int
	Repaired     int
	Incompatible []string
	Tiers        map[string]Health
}

// Reinitializer is implemented by tiers whose connection handle can be
// torn down and recreated (the sqlite tier).
type Reinitializer interface {
	Reinitialize(ctx context.Context, force bool) error
}

type tierStatus struct {
	available bool
	lastErr   error
}

type pendingWrite struct {
	timer *time.Timer
	rec   Record
}

// Manager keeps the three storage tiers eventually consistent with the
// session table. Tier order is fastest first: memory, file, sqlite. The
// last tier is treated as the asynchronous one: non-immediate saves to it
// are debounced per session with a single pending timer each.
type Manager struct {
	log   logger.Logger
	table *cellib.SessionTable
	tiers []Tier

	debounce time.Duration

	mu      sync.Mutex
	status  map[string]*tierStatus
	pending map[cellib.SessionID]*pendingWrite
	deleted map[cellib.SessionID]bool
	closed  bool

	fileQueue chan Record
	wg        sync.WaitGroup
}

// NewManager builds a manager over the given tiers. Tiers must be ordered
// fastest to most durable; at least one is required.
func NewManager(l logger.Logger, table *cellib.SessionTable, debounce time.Duration, tiers ...Tier) *Manager {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultWriteDebounce
	}
	m := &Manager{
		log:       l,
		table:     table,
		tiers:     tiers,
		debounce:  debounce,
		status:    make(map[string]*tierStatus, len(tiers)),
		pending:   make(map[cellib.SessionID]*pendingWrite),
		deleted:   make(map[cellib.SessionID]bool),
		fileQueue: make(chan Record, 64),
	}
	for _, t := range tiers {
		m.status[t.Name()] = &tierStatus{available: true}
	}
	m.wg.Add(1)
	go m.fileWriter()
	return m
}

// fileWriter serializes queued writes to the synchronous file tier so
// coalesced saves can never land out of order.
func (m *Manager) fileWriter() {
	defer m.wg.Done()
	for rec := range m.fileQueue {
		id := cellib.SessionID(rec.SessionID)
		m.mu.Lock()
		tomb := m.deleted[id]
		m.mu.Unlock()
		if tomb {
			continue
		}
		t := m.tierByName(TierFile)
		if t == nil || !m.tierAvailable(TierFile) {
			continue
		}
		if err := t.Save(context.Background(), rec); err != nil {
			m.markUnavailable(TierFile, err)
		}
	}
}

func (m *Manager) tierByName(name string) Tier {
	for _, t := range m.tiers {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func (m *Manager) tierAvailable(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[name]
	return st != nil && st.available
}

func (m *Manager) markUnavailable(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[name]
	if st == nil {
		return
	}
	if st.available {
		m.log.Warning("storage tier %s marked unavailable: %v", name, err)
	}
	st.available = false
	st.lastErr = err
}

func (m *Manager) markAvailable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st := m.status[name]; st != nil {
		if !st.available {
			m.log.Info("storage tier %s available again", name)
		}
		st.available = true
		st.lastErr = nil
	}
}

// snapshot builds the record for a session from the live table.
func (m *Manager) snapshot(id cellib.SessionID) (Record, error) {
	var rec Record
	err := m.table.View(id, func(s *cellib.Session) {
		rec = SnapshotSession(s, time.Now())
	})
	return rec, err
}

// Save persists the session. The volatile tier is written synchronously,
// the file tier is queued, and the asynchronous tier is either awaited
// (immediate) or coalesced behind a per-session debounce timer. A tier
// failure degrades durability but fails the call only on the immediate
// path's final write.
func (m *Manager) Save(ctx context.Context, id cellib.SessionID, immediate bool) error {
	rec, err := m.snapshot(id)
	if err != nil {
		return err
	}

	if t := m.tierByName(TierMemory); t != nil && m.tierAvailable(TierMemory) {
		if err := t.Save(ctx, rec); err != nil {
			m.markUnavailable(TierMemory, err)
		}
	}

	m.mu.Lock()
	if m.closed || m.deleted[id] {
		m.mu.Unlock()
		return nil
	}
	// The queue send stays inside the critical section: Close closes the
	// channel under the same lock, so a send can never race the close. The
	// buffered channel plus default keeps this non-blocking.
	if m.tierByName(TierFile) != nil {
		select {
		case m.fileQueue <- rec:
		default:
			// Queue full: fold into the debounced async write; the next
			// queued save carries the newer state anyway.
		}
	}
	m.mu.Unlock()

	async := m.asyncTier()
	if async == nil {
		return nil
	}
	if immediate {
		m.cancelPending(id)
		if !m.tierAvailable(async.Name()) {
			return fmt.Errorf("%w: %s", cellib.ErrStorageTierUnavailable, async.Name())
		}
		if err := async.Save(ctx, rec); err != nil {
			m.markUnavailable(async.Name(), err)
			return err
		}
		return nil
	}
	m.scheduleAsync(id, rec)
	return nil
}

func (m *Manager) asyncTier() Tier {
	if len(m.tiers) == 0 {
		return nil
	}
	t := m.tiers[len(m.tiers)-1]
	if t.Name() == TierMemory || t.Name() == TierFile {
		return nil
	}
	return t
}

// scheduleAsync coalesces writes: one pending timer per session id,
// canceled and rescheduled on each new save, never stacked.
func (m *Manager) scheduleAsync(id cellib.SessionID, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.deleted[id] {
		return
	}
	if p := m.pending[id]; p != nil {
		p.timer.Stop()
		p.rec = rec
		p.timer = time.AfterFunc(m.debounce, func() { m.flushAsync(id) })
		return
	}
	p := &pendingWrite{rec: rec}
	p.timer = time.AfterFunc(m.debounce, func() { m.flushAsync(id) })
	m.pending[id] = p
}

func (m *Manager) flushAsync(id cellib.SessionID) {
	m.mu.Lock()
	p := m.pending[id]
	delete(m.pending, id)
	tomb := m.deleted[id]
	m.mu.Unlock()
	if p == nil || tomb {
		return
	}
	async := m.asyncTier()
	if async == nil || !m.tierAvailable(async.Name()) {
		return
	}
	if err := async.Save(context.Background(), p.rec); err != nil {
		m.markUnavailable(async.Name(), err)
	}
}

func (m *Manager) cancelPending(id cellib.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.pending[id]; p != nil {
		p.timer.Stop()
		delete(m.pending, id)
	}
}

// Load reads every tier, reconciles per session by newest write timestamp,
// repairs stale tiers, and fills the session table. Losing every tier is a
// data-loss event, not a crash: the engine starts empty.
func (m *Manager) Load(ctx context.Context) LoadReport {
	report := LoadReport{Tiers: make(map[string]Health, len(m.tiers))}

	perTier := make(map[string]map[string]Record, len(m.tiers))
	for _, t := range m.tiers {
		if err := t.Probe(ctx); err != nil {
			m.markUnavailable(t.Name(), err)
			continue
		}
		recs, err := t.LoadAll(ctx)
		if err != nil {
			m.markUnavailable(t.Name(), err)
			continue
		}
		m.markAvailable(t.Name())
		perTier[t.Name()] = recs
	}

	// Newest write timestamp wins per session.
	chosen := make(map[string]Record)
	for _, recs := range perTier {
		for id, rec := range recs {
			if best, ok := chosen[id]; !ok || rec.WrittenAt.After(best.WrittenAt) {
				chosen[id] = rec
			}
		}
	}

	for id, rec := range chosen {
		if err := rec.Validate(); err != nil {
			m.log.Error("storage: refusing record %s: %v", id, err)
			report.Incompatible = append(report.Incompatible, id)
			continue
		}
		m.table.Put(rec.RestoreSession())
		report.Restored++

		// Write the winning record back to any available tier holding a
		// stale or missing copy.
		for _, t := range m.tiers {
			recs, ok := perTier[t.Name()]
			if !ok {
				continue
			}
			if have, ok := recs[id]; ok && !have.WrittenAt.Before(rec.WrittenAt) {
				continue
			}
			if err := t.Save(ctx, rec); err != nil {
				m.markUnavailable(t.Name(), err)
				continue
			}
			report.Repaired++
		}
	}

	if len(perTier) == 0 {
		m.log.Error("storage: all tiers unavailable at startup, starting with an empty session table (data loss)")
	}

	m.mu.Lock()
	m.deleted = make(map[cellib.SessionID]bool)
	for name, st := range m.status {
		h := Health{Available: st.available}
		if st.lastErr != nil {
			h.LastError = st.lastErr.Error()
		}
		report.Tiers[name] = h
	}
	m.mu.Unlock()
	return report
}

// DeleteSession removes the session from the table and from every tier.
// It returns per-tier results; partial removal is surfaced as
// ErrStorageInconsistent, never swallowed, because a half-deleted session
// is an orphan-in-waiting. Pending persistence writes for the session are
// invalidated first so a stale write cannot resurrect the record.
func (m *Manager) DeleteSession(ctx context.Context, id cellib.SessionID) (map[string]string, error) {
	m.mu.Lock()
	m.deleted[id] = true
	if p := m.pending[id]; p != nil {
		p.timer.Stop()
		delete(m.pending, id)
	}
	m.mu.Unlock()

	m.table.Delete(id)

	perTier := make(map[string]string, len(m.tiers))
	var merr *multierror.Error
	var successes int
	for _, t := range m.tiers {
		if !m.tierAvailable(t.Name()) {
			perTier[t.Name()] = "unavailable"
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", t.Name(), cellib.ErrStorageTierUnavailable))
			continue
		}
		if err := t.Delete(ctx, id.String()); err != nil {
			m.markUnavailable(t.Name(), err)
			perTier[t.Name()] = err.Error()
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}
		perTier[t.Name()] = "ok"
		successes++
	}

	if err := merr.ErrorOrNil(); err != nil {
		if successes > 0 {
			return perTier, fmt.Errorf("%w: %v", cellib.ErrStorageInconsistent, err)
		}
		return perTier, err
	}
	return perTier, nil
}

// ClearAll wipes every session from the table and every tier, then forces
// the asynchronous tier to reinitialize so no stale handle can report
// healthy against the cleared state. Per-tier outcomes follow the
// DeleteSession contract.
func (m *Manager) ClearAll(ctx context.Context) (map[string]string, error) {
	ids := m.table.IDs()

	m.mu.Lock()
	for _, id := range ids {
		m.deleted[id] = true
	}
	for id, p := range m.pending {
		p.timer.Stop()
		delete(m.pending, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.table.Delete(id)
	}

	perTier := make(map[string]string, len(m.tiers))
	var merr *multierror.Error
	var successes int
	for _, t := range m.tiers {
		if !m.tierAvailable(t.Name()) {
			perTier[t.Name()] = "unavailable"
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", t.Name(), cellib.ErrStorageTierUnavailable))
			continue
		}
		if err := t.Clear(ctx); err != nil {
			m.markUnavailable(t.Name(), err)
			perTier[t.Name()] = err.Error()
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}
		perTier[t.Name()] = "ok"
		successes++
	}

	if err := m.Reinitialize(ctx, true); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("reinitialize: %w", err))
	}

	if err := merr.ErrorOrNil(); err != nil {
		if successes > 0 {
			return perTier, fmt.Errorf("%w: %v", cellib.ErrStorageInconsistent, err)
		}
		return perTier, err
	}
	return perTier, nil
}

// Reinitialize resets the asynchronous tier's connection handle. Required
// after a destructive clear-all; see SQLiteTier.Reinitialize.
func (m *Manager) Reinitialize(ctx context.Context, force bool) error {
	async := m.asyncTier()
	if async == nil {
		return nil
	}
	r, ok := async.(Reinitializer)
	if !ok {
		return nil
	}
	if err := r.Reinitialize(ctx, force); err != nil {
		m.markUnavailable(async.Name(), err)
		return err
	}
	m.markAvailable(async.Name())
	return nil
}

// ProbeAll re-probes every tier, bringing recovered tiers back into
// rotation.
func (m *Manager) ProbeAll(ctx context.Context) {
	for _, t := range m.tiers {
		if err := t.Probe(ctx); err != nil {
			m.markUnavailable(t.Name(), err)
		} else {
			m.markAvailable(t.Name())
		}
	}
}

// HealthSnapshot reports per-tier availability.
func (m *Manager) HealthSnapshot() map[string]Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Health, len(m.status))
	for name, st := range m.status {
		h := Health{Available: st.available}
		if st.lastErr != nil {
			h.LastError = st.lastErr.Error()
		}
		out[name] = h
	}
	return out
}

// Close flushes pending writes and closes every tier.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	flush := make([]Record, 0, len(m.pending))
	for id, p := range m.pending {
		p.timer.Stop()
		if !m.deleted[id] {
			flush = append(flush, p.rec)
		}
	}
	m.pending = make(map[cellib.SessionID]*pendingWrite)
	// Closed under m.mu: Save only sends to the queue while holding the
	// lock and seeing closed == false.
	close(m.fileQueue)
	m.mu.Unlock()

	if async := m.asyncTier(); async != nil && m.tierAvailable(async.Name()) {
		for _, rec := range flush {
			if err := async.Save(context.Background(), rec); err != nil {
				m.log.Warning("storage: final flush of %s failed: %v", rec.SessionID, err)
				break
			}
		}
	}

	m.wg.Wait()

	var merr *multierror.Error
	for _, t := range m.tiers {
		if err := t.Close(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("close %s: %w", t.Name(), err))
		}
	}
	return merr.ErrorOrNil()
}
