// Package restore runs the startup restoration/cleanup state machine:
// LOADING -> POLICY_CHECK -> {RESTORING | CLEANING} -> READY. It decides,
// per tier policy and user preference, whether persisted sessions are
// re-bound to recreated tabs or discarded immediately.
package restore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tabcell/tabcell/internal/events"
	"github.com/tabcell/tabcell/internal/policy"
	"github.com/tabcell/tabcell/internal/storage"
	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// State is the machine's current phase.
type State int32

const (
	StateLoading State = iota
	StatePolicyCheck
	StateRestoring
	StateCleaning
	StateReady
	StateError
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePolicyCheck:
		return "policy_check"
	case StateRestoring:
		return "restoring"
	case StateCleaning:
		return "cleaning"
	case StateReady:
		return "ready"
	default:
		return "error"
	}
}

// Loader reconciles storage tiers into the session table at startup.
type Loader interface {
	Load(ctx context.Context) storage.LoadReport
}

// Deleter removes a session from memory and every tier.
type Deleter interface {
	DeleteSession(ctx context.Context, id cellib.SessionID) (map[string]string, error)
}

// Persister schedules durable writes.
type Persister interface {
	Save(ctx context.Context, id cellib.SessionID, immediate bool) error
}

// TabLister exposes live tabs in creation order.
type TabLister interface {
	List() []events.TabInfo
	Len() int
}

const (
	// tabWaitAttempts bounds the wait for the host to recreate tabs after a
	// restart. Forward progress beats completeness: a host that never
	// reports tabs yields a clean empty state instead of a hang.
	tabWaitAttempts = 3
	defaultTabWait  = 500 * time.Millisecond
)

// Machine drives startup restoration or cleanup, and re-evaluates policy
// when the tier settles after a debounced change.
type Machine struct {
	log    logger.Logger
	table  *cellib.SessionTable
	binder *cellib.Binder
	gate   *policy.Gate
	loader Loader
	delete Deleter
	save   Persister
	tabs   TabLister

	// Notify emits a one-time user-facing notice; nil discards.
	Notify func(msg string)

	tabWait time.Duration
	state   atomic.Int32

	mu         sync.Mutex
	noticeSent bool
}

// NewMachine wires the state machine. tabWait <= 0 uses the default retry
// backoff.
func NewMachine(l logger.Logger, table *cellib.SessionTable, binder *cellib.Binder,
	gate *policy.Gate, loader Loader, del Deleter, save Persister,
	tabs TabLister, tabWait time.Duration) *Machine {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if tabWait <= 0 {
		tabWait = defaultTabWait
	}
	return &Machine{
		log:     l,
		table:   table,
		binder:  binder,
		gate:    gate,
		loader:  loader,
		delete:  del,
		save:    save,
		tabs:    tabs,
		tabWait: tabWait,
	}
}

// State returns the machine's current phase.
func (m *Machine) State() State {
	return State(m.state.Load())
}

func (m *Machine) setState(s State) {
	m.state.Store(int32(s))
	m.log.Info("restore: state -> %s", s)
}

// Run executes the startup sequence to completion. It returns an error
// only on context cancellation; every storage failure degrades instead.
func (m *Machine) Run(ctx context.Context) error {
	m.setState(StateLoading)
	report := m.loader.Load(ctx)
	m.log.Info("restore: loaded %d session(s), repaired %d stale record(s)", report.Restored, report.Repaired)
	for _, id := range report.Incompatible {
		m.log.Error("restore: session %s persisted by a newer build, refusing its cookie payload", id)
	}
	if err := ctx.Err(); err != nil {
		m.setState(StateError)
		return err
	}

	m.setState(StatePolicyCheck)
	if m.gate.RestorationEnabled() {
		m.setState(StateRestoring)
		if err := m.restore(ctx); err != nil {
			m.setState(StateError)
			return err
		}
	} else {
		m.setState(StateCleaning)
		if err := m.clean(ctx); err != nil {
			m.setState(StateError)
			return err
		}
	}
	if n := m.binder.Repair(); n > 0 {
		m.log.Warning("restore: dropped %d binding(s) to deleted sessions", n)
	}
	m.setState(StateReady)
	return nil
}

// restore waits briefly for the host to recreate tabs, then matches each
// tab to a persisted session by URL fingerprint. Ties resolve first-match
// -wins in tab-creation order; sessions nothing matched stay as orphans
// for the sweep.
func (m *Machine) restore(ctx context.Context) error {
	tabs := m.waitForTabs(ctx)
	if len(tabs) == 0 {
		m.log.Warning("restore: no tabs reported after %d attempts, proceeding with none (%v)",
			tabWaitAttempts, cellib.ErrRestorationTimeout)
	}

	// Candidate sessions ordered by id; session ids are time-ordered, so
	// this is creation order and keeps matching deterministic.
	candidates := m.table.IDs()
	sort.Slice(candidates, func(a, b int) bool { return candidates[a] < candidates[b] })

	claimed := make(map[cellib.SessionID]bool)
	var bound int
	for _, tab := range tabs {
		fp, ok := cellib.FingerprintURL(tab.URL)
		if !ok {
			continue
		}
		for _, id := range candidates {
			if claimed[id] {
				continue
			}
			var match bool
			if err := m.table.View(id, func(s *cellib.Session) {
				match = s.MatchesURL(fp)
			}); err != nil {
				continue
			}
			if !match {
				continue
			}
			if err := m.binder.Bind(tab.ID, id); err != nil {
				continue
			}
			claimed[id] = true
			bound++
			if m.save != nil {
				_ = m.save.Save(ctx, id, false)
			}
			break
		}
	}
	m.log.Info("restore: re-bound %d tab(s) to %d session(s)", bound, len(claimed))
	return ctx.Err()
}

// waitForTabs polls the registry with bounded retries and short backoff;
// tab creation is asynchronous and may lag the engine's own startup.
func (m *Machine) waitForTabs(ctx context.Context) []events.TabInfo {
	for attempt := 0; attempt < tabWaitAttempts; attempt++ {
		if m.tabs.Len() > 0 {
			return m.tabs.List()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.tabWait):
		}
	}
	return m.tabs.List()
}

// clean deletes every orphaned session from memory and all tiers with no
// grace period: any delay opens a window where durable storage and the
// in-memory table disagree.
func (m *Machine) clean(ctx context.Context) error {
	for _, id := range m.table.Orphans() {
		if _, err := m.delete.DeleteSession(ctx, id); err != nil {
			m.log.Error("restore: cleaning orphan %s: %v", id, err)
		}
	}
	return ctx.Err()
}

// OnTierChanged re-runs the policy check after a debounced tier change.
// When a downgrade revokes restoration while the preference was on, the
// preference is cleared and a one-time notice is emitted, then orphans
// held for restoration are cleaned.
func (m *Machine) OnTierChanged(oldTier, newTier policy.Tier) {
	wasEnabled := m.gate.AutoRestore()
	allowed := m.gate.Limits().AllowRestore
	if allowed || !wasEnabled {
		return
	}
	m.gate.ClearAutoRestore()
	m.notifyOnce("Session restoration is not available on the " + newTier.String() +
		" tier; automatic restore has been turned off.")

	m.setState(StateCleaning)
	if err := m.clean(context.Background()); err != nil {
		m.setState(StateError)
		return
	}
	m.setState(StateReady)
}

func (m *Machine) notifyOnce(msg string) {
	m.mu.Lock()
	sent := m.noticeSent
	m.noticeSent = true
	m.mu.Unlock()
	if sent {
		return
	}
	m.log.Warning("restore: %s", msg)
	if m.Notify != nil {
		m.Notify(msg)
	}
}

// SweepOnce deletes orphaned sessions idle past the tier's inactivity
// threshold. Called from the daemon's periodic sweep.
func (m *Machine) SweepOnce(ctx context.Context, now time.Time) int {
	threshold := m.gate.Limits().SweepAfter
	var stale []cellib.SessionID
	m.table.Range(func(s *cellib.Session) bool {
		if s.IsOrphan() && now.Sub(s.LastActivity) > threshold {
			stale = append(stale, s.ID)
		}
		return true
	})
	for _, id := range stale {
		if _, err := m.delete.DeleteSession(ctx, id); err != nil {
			m.log.Error("restore: sweeping stale session %s: %v", id, err)
		}
	}
	if len(stale) > 0 {
		if n := m.binder.Repair(); n > 0 {
			m.log.Warning("restore: dropped %d binding(s) to swept sessions", n)
		}
	}
	return len(stale)
}
