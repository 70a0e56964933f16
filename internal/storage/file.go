package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/tabcell/tabcell/pkg/cellib"
)

// FileTier is the small synchronous durable tier: the full record set is
// gob-encoded and rewritten as one snapshot file on every save, the way a
// download manager rewrites its userdata file. Writes go buffer-first so a
// failed encode never truncates the previous snapshot, and every write is
// fsynced before returning.
type FileTier struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	recs map[string]Record
}

// NewFileTier opens (or creates) the snapshot file at path on the given
// filesystem. A corrupt or empty file starts the tier fresh rather than
// failing; the durable copy of record history lives in the sqlite tier.
func NewFileTier(fs afero.Fs, path string) (*FileTier, error) {
	t := &FileTier{fs: fs, path: path, recs: make(map[string]Record)}
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open snapshot %s: %v", cellib.ErrStorageTierUnavailable, path, err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&t.recs); err != nil && err != io.EOF {
		t.recs = make(map[string]Record)
	}
	return t, nil
}

func (t *FileTier) Name() string { return TierFile }

func (t *FileTier) Save(_ context.Context, rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, had := t.recs[rec.SessionID]
	t.recs[rec.SessionID] = rec
	if err := t.persist(); err != nil {
		if had {
			t.recs[rec.SessionID] = prev
		} else {
			delete(t.recs, rec.SessionID)
		}
		return err
	}
	return nil
}

func (t *FileTier) LoadAll(context.Context) (map[string]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Record, len(t.recs))
	for id, rec := range t.recs {
		out[id] = rec
	}
	return out, nil
}

func (t *FileTier) Delete(_ context.Context, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, had := t.recs[sessionID]
	if !had {
		return nil
	}
	delete(t.recs, sessionID)
	if err := t.persist(); err != nil {
		t.recs[sessionID] = prev
		return err
	}
	return nil
}

func (t *FileTier) Clear(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.recs
	t.recs = make(map[string]Record)
	if err := t.persist(); err != nil {
		t.recs = prev
		return err
	}
	return nil
}

// persist rewrites the snapshot file. Caller holds t.mu.
func (t *FileTier) persist() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t.recs); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	f, err := t.fs.OpenFile(t.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open snapshot: %v", cellib.ErrStorageTierUnavailable, err)
	}
	defer f.Close()
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate snapshot: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek snapshot: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	return nil
}

func (t *FileTier) Probe(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.fs.Stat(t.path); err != nil {
		return fmt.Errorf("%w: %v", cellib.ErrStorageTierUnavailable, err)
	}
	return nil
}

func (t *FileTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persist()
}

var _ Tier = (*FileTier)(nil)
