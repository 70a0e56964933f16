// Package common provides shared types and constants used across the tabcell
// client-server communication layer.
package common

// Environment variable names for configuration.
const (
	// SocketPathEnv is the environment variable for custom socket path.
	SocketPathEnv = "TABCELL_SOCKET_PATH"

	// TCPPortEnv is the environment variable for custom TCP port.
	TCPPortEnv = "TABCELL_TCP_PORT"

	// DataDirEnv is the environment variable for the daemon data directory.
	DataDirEnv = "TABCELL_DATA_DIR"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "TABCELL_DEBUG"

	// HTTPPortEnv is the environment variable for the browser-facing HTTP
	// port (event channel, JSON-RPC bridge, shim endpoint).
	HTTPPortEnv = "TABCELL_HTTP_PORT"

	// RPCSecretEnv is the environment variable holding the JSON-RPC bearer
	// token. An empty value disables the bridge.
	RPCSecretEnv = "TABCELL_RPC_SECRET"

	// TierEnv is the environment variable setting the initial subscription
	// tier. Later changes arrive through the control surface.
	TierEnv = "TABCELL_TIER"
)
