package cmd

import "time"

const (
	// DEF_WRITE_DEBOUNCE batches persistence writes triggered by cookie
	// traffic before the async tier sees them.
	DEF_WRITE_DEBOUNCE = 2 * time.Second

	// DEF_TAB_WAIT is the per-attempt wait for the browser to recreate
	// tabs during startup restoration.
	DEF_TAB_WAIT = 500 * time.Millisecond

	// DEF_SWEEP_INTERVAL is how often orphaned sessions are checked
	// against the tier's inactivity threshold.
	DEF_SWEEP_INTERVAL = time.Hour
)

const DESCRIPTION = `
Tabcell keeps every browser tab group in its own isolated session:
separate cookie jars, separate script-visible storage, and per-session
persistence that survives restarts. The daemon talks to a browser
companion over a local event channel and exposes a control socket for
this CLI.
`

const (
	CreateDescription = `The create command allocates a new isolated session and
prints its id and color. An optional seed URL primes the
session for restoration matching.

Example:
        tabcell create https://mail.example.com/inbox

`
	ListDescription = `The list command displays every live session along with
its bound tabs and last activity.

Example:
        tabcell list

`
	DeleteDescription = `The delete command removes a session from memory and from
every storage tier. On partial failure the per-tier outcome
is printed so nothing fails silently.

Example:
        tabcell delete sess_01HV2K3J8ZQ4R9T0W1X2Y3Z4A5

`
	JarDescription = `The jar command prints the cookie jar of a session for
diagnostics. Values are shown as stored; HttpOnly entries
are included.

Example:
        tabcell jar sess_01HV2K3J8ZQ4R9T0W1X2Y3Z4A5

`
	HealthDescription = `The health command reports per-tier persistence status and
engine diagnostic counters.

Example:
        tabcell health

`
)
