package cellib

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one isolated browsing session. IDs are prefixed
// ULIDs: time-ordered, collision-resistant and safe to use as storage keys.
type SessionID string

const sessionIDPrefix = "sess_"

func (id SessionID) String() string { return string(id) }

// idGenerator produces ULIDs from a shared entropy source. The mutex keeps
// the entropy reader safe for concurrent generation.
type idGenerator struct {
	entropy io.Reader
	mu      sync.Mutex
}

var defaultIDGen = &idGenerator{entropy: rand.Reader}

func (g *idGenerator) next() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// NewSessionID generates a fresh session id.
func NewSessionID() SessionID {
	return SessionID(sessionIDPrefix + defaultIDGen.next().String())
}

// ParseSessionID validates the textual form of a session id.
func ParseSessionID(s string) (SessionID, error) {
	raw, ok := strings.CutPrefix(s, sessionIDPrefix)
	if !ok {
		return "", ErrSessionNotFound
	}
	if _, err := ulid.Parse(raw); err != nil {
		return "", ErrSessionNotFound
	}
	return SessionID(s), nil
}

// IDTimestamp extracts the creation time encoded in a session id.
func IDTimestamp(id SessionID) (time.Time, error) {
	raw, ok := strings.CutPrefix(string(id), sessionIDPrefix)
	if !ok {
		return time.Time{}, ErrSessionNotFound
	}
	u, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
