// Package policy implements the tier policy gate: the license-tier-derived
// rule set the rest of the engine consults before enabling restoration,
// encryption at rest, or unlimited session counts.
package policy

import (
	"strings"
	"sync"
	"time"

	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// Tier is the active license tier.
type Tier int

const (
	TierFree Tier = iota
	TierPremium
	TierEnterprise
)

// String returns the wire name of the tier.
func (t Tier) String() string {
	switch t {
	case TierPremium:
		return "premium"
	case TierEnterprise:
		return "enterprise"
	default:
		return "free"
	}
}

// ParseTier maps a wire name to a tier. Unknown names degrade to free.
func ParseTier(s string) Tier {
	switch strings.ToLower(s) {
	case "premium":
		return TierPremium
	case "enterprise":
		return TierEnterprise
	default:
		return TierFree
	}
}

// Limits is the rule set a tier grants.
type Limits struct {
	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions int
	// AllowRestore permits re-binding tabs to persisted sessions after a
	// restart.
	AllowRestore bool
	// AllowEncryption permits encrypting persisted records at rest.
	AllowEncryption bool
	// SweepAfter is the inactivity threshold after which orphaned sessions
	// are removed by the periodic sweep.
	SweepAfter time.Duration
}

// LimitsFor returns the rule set for a tier.
func LimitsFor(t Tier) Limits {
	switch t {
	case TierPremium:
		return Limits{MaxSessions: 20, AllowRestore: true, AllowEncryption: true, SweepAfter: 30 * 24 * time.Hour}
	case TierEnterprise:
		return Limits{MaxSessions: 0, AllowRestore: true, AllowEncryption: true, SweepAfter: 90 * 24 * time.Hour}
	default:
		return Limits{MaxSessions: 5, AllowRestore: false, AllowEncryption: false, SweepAfter: 7 * 24 * time.Hour}
	}
}

// Downgrade records the last tier drop, kept for diagnostics only.
type Downgrade struct {
	From   Tier
	To     Tier
	Reason string
	At     time.Time
}

// DefaultDebounce is the window within which rapid tier-change
// notifications collapse into a single policy transition.
const DefaultDebounce = 3 * time.Second

// Gate holds the current tier policy state. Tier-change notifications are
// debounced with one pending timer that is canceled and rescheduled on
// every new event, so a burst of changes applies only the final tier.
type Gate struct {
	log      logger.Logger
	onChange func(old, new Tier)

	mu            sync.Mutex
	tier          Tier
	autoRestore   bool
	prefs         *PrefStore
	lastDowngrade *Downgrade
	debounce      time.Duration
	pending       *time.Timer
	pendingTier   Tier
}

// NewGate creates a gate at the given tier. onChange fires once per
// settled transition, after the debounce window elapses; it may be nil.
func NewGate(l logger.Logger, initial Tier, debounce time.Duration, onChange func(old, new Tier)) *Gate {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Gate{
		log:      l,
		onChange: onChange,
		tier:     initial,
		debounce: debounce,
	}
}

// Tier returns the currently applied tier.
func (g *Gate) Tier() Tier {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tier
}

// Limits returns the rule set of the currently applied tier.
func (g *Gate) Limits() Limits {
	return LimitsFor(g.Tier())
}

// CanCreateSession checks the session-count cap against the current count.
func (g *Gate) CanCreateSession(current int) error {
	l := g.Limits()
	if l.MaxSessions > 0 && current >= l.MaxSessions {
		return cellib.ErrTierLimitExceeded
	}
	return nil
}

// UsePrefStore attaches durable storage for the auto-restore preference
// and seeds the in-memory flag from it. The stored value only takes
// effect when the current tier grants restoration; a downgraded daemon
// keeps the file but starts disabled.
func (g *Gate) UsePrefStore(ps *PrefStore) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prefs = ps
	if ps != nil && ps.Load() && LimitsFor(g.tier).AllowRestore {
		g.autoRestore = true
	}
}

// persistPrefLocked writes the preference through to durable storage.
// Caller holds g.mu.
func (g *Gate) persistPrefLocked(enabled bool) {
	if g.prefs == nil {
		return
	}
	if err := g.prefs.Save(enabled); err != nil {
		g.log.Warning("persisting auto-restore preference: %v", err)
	}
}

// AutoRestore reports the user preference for restoring sessions on start.
func (g *Gate) AutoRestore() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoRestore
}

// SetAutoRestore updates the preference. Enabling it requires a tier that
// grants restoration.
func (g *Gate) SetAutoRestore(enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if enabled && !LimitsFor(g.tier).AllowRestore {
		return cellib.ErrTierNotAllowed
	}
	g.autoRestore = enabled
	g.persistPrefLocked(enabled)
	return nil
}

// ClearAutoRestore drops the preference without a tier check. Used when a
// downgrade revokes restoration.
func (g *Gate) ClearAutoRestore() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoRestore = false
	g.persistPrefLocked(false)
}

/// RestorationEnabled reports whether sessions should be restored: the tier
// must grant it and the user must have opted in.
func (g *Gate) RestorationEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return LimitsFor(g.tier).AllowRestore && g.autoRestore
}

// LastDowngrade returns the most recent recorded downgrade, if any.
func (g *Gate) LastDowngrade() *Downgrade {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastDowngrade == nil {
		return nil
	}
	d := *g.lastDowngrade
	return &d
}

// NotifyTierChanged schedules a debounced transition to newTier. Rapid
// successive notifications collapse; only the final tier is applied when
// the window elapses.
func (g *Gate) NotifyTierChanged(oldTier, newTier Tier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pendingTier = newTier
	if g.pending != nil {
		g.pending.Stop()
	}
	g.pending = time.AfterFunc(g.debounce, g.applyPending)
	g.log.Info("tier change queued: %s -> %s (debounced %s)", oldTier, newTier, g.debounce)
}

func (g *Gate) applyPending() {
	g.mu.Lock()
	prev := g.tier
	next := g.pendingTier
	g.pending = nil
	if next == prev {
		g.mu.Unlock()
		return
	}
	g.tier = next
	if next < prev {
		g.lastDowngrade = &Downgrade{From: prev, To: next, Reason: "tier change notification", At: time.Now()}
	}
	cb := g.onChange
	g.mu.Unlock()

	g.log.Info("tier changed: %s -> %s", prev, next)
	if cb != nil {
		cb(prev, next)
	}
}

// Close cancels any pending transition timer.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}
