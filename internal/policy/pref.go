package policy

import (
	"bytes"
	"os"

	"github.com/spf13/afero"
)

// PrefStore persists the auto-restore preference in the daemon data
// directory so it survives restarts. A missing or unreadable file reads
// as disabled; restoration never turns itself on by accident.
type PrefStore struct {
	fs   afero.Fs
	path string
}

// NewPrefStore creates a store over the given filesystem and path.
func NewPrefStore(fs afero.Fs, path string) *PrefStore {
	return &PrefStore{fs: fs, path: path}
}

// Load reads the stored preference.
func (p *PrefStore) Load() bool {
	b, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		return false
	}
	return bytes.Equal(bytes.TrimSpace(b), []byte("1"))
}

// Save writes the preference.
func (p *PrefStore) Save(enabled bool) error {
	v := []byte("0\n")
	if enabled {
		v = []byte("1\n")
	}
	return afero.WriteFile(p.fs, p.path, v, os.FileMode(0o600))
}
