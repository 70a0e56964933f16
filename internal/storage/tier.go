package storage

import "context"

// Tier names, ordered fastest to most durable.
const (
	TierMemory = "memory"
	TierFile   = "file"
	TierSQLite = "sqlite"
)

// Tier is one storage level holding persisted session records. A tier that
// fails is excluded from reads and writes until its next successful Probe;
// the manager keeps functioning on the remaining tiers.
type Tier interface {
	// Name identifies the tier in health reports and delete results.
	Name() string

	// Save writes or replaces the record for its session id.
	Save(ctx context.Context, rec Record) error

	// LoadAll returns every stored record keyed by session id.
	LoadAll(ctx context.Context) (map[string]Record, error)

	// Delete removes the record for the session id. Deleting an absent id
	// is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Clear removes every record. Destructive; used by the clear-all
	// maintenance path.
	Clear(ctx context.Context) error

	// Probe checks tier health.
	Probe(ctx context.Context) error

	// Close releases tier resources.
	Close() error
}
