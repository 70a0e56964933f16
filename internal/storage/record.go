// Package storage keeps the session table eventually consistent with three
// storage tiers of increasing durability: an in-process memory tier, a
// small synchronous file snapshot, and a larger asynchronous sqlite store.
package storage

import (
	"fmt"
	"time"

	"github.com/tabcell/tabcell/pkg/cellib"
)

// SchemaVersion is the persisted record schema this build reads and
// writes. Readers must refuse cookie payloads tagged with a newer version
// rather than guess at their layout.
const SchemaVersion = 2

// Record is the durable projection of one session: identity, display
// metadata, the cookie jar snapshot and the restoration fingerprints,
// tagged with a write timestamp used for newest-wins reconciliation.
type Record struct {
	SchemaVersion int                     `json:"schema_version"`
	SessionID     string                  `json:"session_id"`
	Color         string                  `json:"color"`
	CustomColor   string                  `json:"custom_color,omitempty"`
	Name          string                  `json:"name,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	LastAccessed  time.Time               `json:"last_accessed"`
	WrittenAt     time.Time               `json:"written_at"`
	Cookies       cellib.JarSnapshot      `json:"cookies"`
	LastKnownURLs []cellib.URLFingerprint `json:"last_known_urls"`
}

// SnapshotSession projects a session into its durable record form.
func SnapshotSession(s *cellib.Session, now time.Time) Record {
	return Record{
		SchemaVersion: SchemaVersion,
		SessionID:     s.ID.String(),
		Color:         s.Color,
		CustomColor:   s.CustomColor,
		Name:          s.Name,
		CreatedAt:     s.CreatedAt,
		LastAccessed:  s.LastActivity,
		WrittenAt:     now,
		Cookies:       s.Jar.Snapshot(),
		LastKnownURLs: append([]cellib.URLFingerprint(nil), s.LastKnownURLs...),
	}
}

// Validate checks the record is interpretable by this build.
func (r Record) Validate() error {
	if r.SchemaVersion > SchemaVersion {
		return fmt.Errorf("%w: record %s has schema %d, this build understands %d",
			cellib.ErrSchemaTooNew, r.SessionID, r.SchemaVersion, SchemaVersion)
	}
	if r.SessionID == "" {
		return fmt.Errorf("record has no session id")
	}
	return nil
}

// RestoreSession rebuilds an in-memory session from a record. Restored
// sessions start with no bound tabs; the restoration machine re-binds them
// or cleans them up.
func (r Record) RestoreSession() *cellib.Session {
	return &cellib.Session{
		ID:            cellib.SessionID(r.SessionID),
		Name:          r.Name,
		Color:         r.Color,
		CustomColor:   r.CustomColor,
		CreatedAt:     r.CreatedAt,
		LastActivity:  r.LastAccessed,
		Tabs:          make(map[int64]bool),
		LastKnownURLs: append([]cellib.URLFingerprint(nil), r.LastKnownURLs...),
		Jar:           cellib.JarFromSnapshot(r.Cookies),
	}
}
