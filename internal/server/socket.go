package server

import (
	"os"
	"path/filepath"

	"github.com/tabcell/tabcell/common"
)

// SocketPath returns the control socket location, honoring the override
// environment variable.
func SocketPath() string {
	if path := os.Getenv(common.SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "tabcell.sock")
}
