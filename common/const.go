package common

// UpdateType identifies a control-surface method.
type UpdateType string

const (
	UPDATE_CREATE_SESSION   UpdateType = "create_session"
	UPDATE_LIST_SESSIONS    UpdateType = "list_sessions"
	UPDATE_UPDATE_SESSION   UpdateType = "update_session"
	UPDATE_BIND_TAB         UpdateType = "bind_tab"
	UPDATE_UNBIND_TAB       UpdateType = "unbind_tab"
	UPDATE_GET_JAR          UpdateType = "get_jar"
	UPDATE_DELETE_SESSION   UpdateType = "delete_session"
	UPDATE_HEALTH           UpdateType = "persistence_health"
	UPDATE_SET_AUTORESTORE  UpdateType = "set_auto_restore"
	UPDATE_TIER_CHANGED     UpdateType = "tier_changed"
	UPDATE_CLEAR_ALL        UpdateType = "clear_all"
)

// DefaultTCPPort is the fallback control port when the unix socket is
// unavailable. The daemon binds it on localhost only.
const DefaultTCPPort = 4726

// MaxMessageSize bounds a single framed control or event message.
// Browser native messaging caps payloads at 1MB; the same cap is applied
// everywhere for consistency.
const MaxMessageSize = 1024 * 1024
