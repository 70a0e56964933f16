package common

import "time"

type InputSessionId struct {
	SessionId string `json:"session_id"`
}

type CreateSessionParams struct {
	SeedUrl string `json:"seed_url,omitempty"`
}

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
	Color     string `json:"color"`
}

type SessionSummary struct {
	SessionId    string    `json:"session_id"`
	Name         string    `json:"name,omitempty"`
	Color        string    `json:"color"`
	TabIds       []int64   `json:"tab_ids"`
	LastActivity time.Time `json:"last_activity"`
	IsOrphan     bool      `json:"is_orphan"`
}

type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type UpdateSessionParams struct {
	SessionId string `json:"session_id"`
	Name      string `json:"name,omitempty"`
	Color     string `json:"color,omitempty"`
}

type BindTabParams struct {
	TabId     int64  `json:"tab_id"`
	SessionId string `json:"session_id"`
}

type UnbindTabParams struct {
	TabId int64 `json:"tab_id"`
}

// CookieExport is the diagnostic/export projection of a single jar entry.
type CookieExport struct {
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
	SameSite string    `json:"same_site,omitempty"`
	Expiry   time.Time `json:"expiry,omitempty"`
}

type GetJarResponse struct {
	SessionId string         `json:"session_id"`
	Cookies   []CookieExport `json:"cookies"`
}

// DeleteSessionResponse reports the outcome of the delete on every storage
// tier. A tier maps to "ok" or to its error string; partial success is an
// error at the call level, never silent.
type DeleteSessionResponse struct {
	SessionId string            `json:"session_id"`
	PerTier   map[string]string `json:"per_tier"`
}

// ClearAllResponse reports a destructive clear across every tier, in the
// same per-tier form as DeleteSessionResponse.
type ClearAllResponse struct {
	Cleared int               `json:"cleared"`
	PerTier map[string]string `json:"per_tier"`
}

type TierHealth struct {
	Available bool   `json:"available"`
	LastError string `json:"last_error,omitempty"`
}

type HealthResponse struct {
	Tiers       map[string]TierHealth `json:"tiers"`
	Diagnostics Diagnostics           `json:"diagnostics"`
}

// Diagnostics carries engine counters surfaced for debugging.
type Diagnostics struct {
	MalformedCookiesDropped uint64 `json:"malformed_cookies_dropped"`
	EventsDispatched        uint64 `json:"events_dispatched"`
}

type SetAutoRestoreParams struct {
	Enabled bool `json:"enabled"`
}

type AckResponse struct {
	Ok bool `json:"ok"`
}

type TierChangedParams struct {
	OldTier string `json:"old_tier"`
	NewTier string `json:"new_tier"`
}
