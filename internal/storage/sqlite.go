package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// initState tracks sqlite tier setup explicitly. Memoizing a single setup
// result forever is exactly the bug class Reinitialize exists to fix: a
// destructive clear leaves a closed handle behind, and a cached "ready"
// answer would report false-healthy against it.
type initState int

const (
	stateUninitialized initState = iota
	stateInitializing
	stateReady
	stateFailed
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    written_at INTEGER NOT NULL,
    sealed     INTEGER NOT NULL DEFAULT 0,
    payload    BLOB NOT NULL
);`

// SQLiteTier is the larger asynchronous transactional tier. Payloads are
// JSON records, optionally sealed when a Sealer is attached.
type SQLiteTier struct {
	log    logger.Logger
	path   string
	sealer *Sealer

	mu    sync.Mutex
	state initState
	db    *sql.DB
}

// NewSQLiteTier creates the tier without opening the database; the first
// operation (or an explicit Probe) performs setup. sealer may be nil.
func NewSQLiteTier(l logger.Logger, path string, sealer *Sealer) *SQLiteTier {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &SQLiteTier{log: l, path: path, sealer: sealer}
}

func (t *SQLiteTier) Name() string { return TierSQLite }

// ensureReady opens the database and applies the schema if the tier is not
// ready yet. Caller must hold t.mu.
func (t *SQLiteTier) ensureReadyLocked(ctx context.Context) error {
	switch t.state {
	case stateReady:
		return nil
	case stateInitializing:
		// Setup is single-flighted by t.mu; seeing this state means a
		// previous attempt aborted mid-way.
	}
	t.state = stateInitializing
	if t.db != nil {
		_ = t.db.Close()
		t.db = nil
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", t.path))
	if err != nil {
		t.state = stateFailed
		return fmt.Errorf("%w: open sqlite: %v", cellib.ErrStorageTierUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		t.state = stateFailed
		return fmt.Errorf("%w: apply schema: %v", cellib.ErrStorageTierUnavailable, err)
	}
	t.db = db
	t.state = stateReady
	return nil
}

// Reinitialize tears down and recreates the database handle. With force it
// resets even a ready tier; required after a destructive clear-all, since
// the old handle would otherwise keep reporting healthy while pointing at
// a closed resource.
func (t *SQLiteTier) Reinitialize(ctx context.Context, force bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == stateReady && !force {
		return nil
	}
	if t.db != nil {
		_ = t.db.Close()
		t.db = nil
	}
	t.state = stateUninitialized
	return t.ensureReadyLocked(ctx)
}

func (t *SQLiteTier) encode(rec Record) (payload []byte, sealed bool, err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("marshal record: %w", err)
	}
	if t.sealer == nil {
		return b, false, nil
	}
	sb, err := t.sealer.Seal(b)
	if err != nil {
		return nil, false, fmt.Errorf("seal record: %w", err)
	}
	return sb, true, nil
}

func (t *SQLiteTier) decode(payload []byte, sealed bool) (Record, error) {
	var rec Record
	if sealed {
		if t.sealer == nil {
			return rec, fmt.Errorf("sealed record but no key available")
		}
		b, err := t.sealer.Open(payload)
		if err != nil {
			return rec, fmt.Errorf("open sealed record: %w", err)
		}
		payload = b
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

func (t *SQLiteTier) Save(ctx context.Context, rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureReadyLocked(ctx); err != nil {
		return err
	}
	payload, sealed, err := t.encode(rec)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx, `
        INSERT INTO sessions (id, written_at, sealed, payload) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET written_at=excluded.written_at,
            sealed=excluded.sealed, payload=excluded.payload
    `, rec.SessionID, rec.WrittenAt.UnixNano(), boolInt(sealed), payload)
	if err != nil {
		return fmt.Errorf("%w: upsert record: %v", cellib.ErrStorageTierUnavailable, err)
	}
	return nil
}

func (t *SQLiteTier) LoadAll(ctx context.Context) (map[string]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureReadyLocked(ctx); err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx, `SELECT id, sealed, payload FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %v", cellib.ErrStorageTierUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		var (
			id      string
			sealed  int
			payload []byte
		)
		if err := rows.Scan(&id, &sealed, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", cellib.ErrStorageTierUnavailable, err)
		}
		rec, err := t.decode(payload, sealed != 0)
		if err != nil {
			// A single bad row degrades to a warning, not a tier failure.
			t.log.Warning("sqlite tier: skipping undecodable record %s: %v", id, err)
			continue
		}
		out[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", cellib.ErrStorageTierUnavailable, err)
	}
	return out, nil
}

func (t *SQLiteTier) Delete(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureReadyLocked(ctx); err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: delete record: %v", cellib.ErrStorageTierUnavailable, err)
	}
	return nil
}

// Clear removes every record. Callers should Reinitialize(force) after a
// destructive clear so the tier starts from a fresh handle.
func (t *SQLiteTier) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureReadyLocked(ctx); err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("%w: clear records: %v", cellib.ErrStorageTierUnavailable, err)
	}
	return nil
}

func (t *SQLiteTier) Probe(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureReadyLocked(ctx); err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := t.db.PingContext(pctx); err != nil {
		t.state = stateFailed
		return fmt.Errorf("%w: ping: %v", cellib.ErrStorageTierUnavailable, err)
	}
	return nil
}

func (t *SQLiteTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = stateUninitialized
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Tier = (*SQLiteTier)(nil)
