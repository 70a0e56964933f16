package cellcli

import (
	"encoding/json"

	"github.com/tabcell/tabcell/common"
)

func invoke[T any](c *Client, method common.UpdateType, message any) (*T, error) {
	resp, err := c.invoke(method, message)
	if err != nil {
		if len(resp) > 0 {
			// partial results (per-tier delete outcome) still decode
			var d T
			if uerr := json.Unmarshal(resp, &d); uerr == nil {
				return &d, err
			}
		}
		return nil, err
	}
	var d T
	return &d, json.Unmarshal(resp, &d)
}

// CreateSession creates a new isolated session. seedUrl may be empty; when
// set it seeds the session's restoration fingerprint list.
func (c *Client) CreateSession(seedUrl string) (*common.CreateSessionResponse, error) {
	return invoke[common.CreateSessionResponse](c, common.UPDATE_CREATE_SESSION, &common.CreateSessionParams{
		SeedUrl: seedUrl,
	})
}

func (c *Client) ListSessions() (*common.ListSessionsResponse, error) {
	return invoke[common.ListSessionsResponse](c, common.UPDATE_LIST_SESSIONS, nil)
}

func (c *Client) UpdateSession(sessionId, name, color string) (bool, error) {
	_, err := c.invoke(common.UPDATE_UPDATE_SESSION, &common.UpdateSessionParams{
		SessionId: sessionId,
		Name:      name,
		Color:     color,
	})
	return err == nil, err
}

func (c *Client) BindTab(tabId int64, sessionId string) (bool, error) {
	_, err := c.invoke(common.UPDATE_BIND_TAB, &common.BindTabParams{
		TabId:     tabId,
		SessionId: sessionId,
	})
	return err == nil, err
}

func (c *Client) UnbindTab(tabId int64) (bool, error) {
	_, err := c.invoke(common.UPDATE_UNBIND_TAB, &common.UnbindTabParams{
		TabId: tabId,
	})
	return err == nil, err
}

func (c *Client) GetJar(sessionId string) (*common.GetJarResponse, error) {
	return invoke[common.GetJarResponse](c, common.UPDATE_GET_JAR, &common.InputSessionId{
		SessionId: sessionId,
	})
}

// DeleteSession removes a session from every storage tier. On partial
// failure the response still carries the per-tier outcome alongside the
// error.
func (c *Client) DeleteSession(sessionId string) (*common.DeleteSessionResponse, error) {
	return invoke[common.DeleteSessionResponse](c, common.UPDATE_DELETE_SESSION, &common.InputSessionId{
		SessionId: sessionId,
	})
}

// ClearAll destructively wipes every session from every storage tier. Like
// DeleteSession, a partial failure still carries per-tier outcomes.
func (c *Client) ClearAll() (*common.ClearAllResponse, error) {
	return invoke[common.ClearAllResponse](c, common.UPDATE_CLEAR_ALL, nil)
}

func (c *Client) GetPersistenceHealth() (*common.HealthResponse, error) {
	return invoke[common.HealthResponse](c, common.UPDATE_HEALTH, nil)
}

func (c *Client) SetAutoRestore(enabled bool) (bool, error) {
	_, err := c.invoke(common.UPDATE_SET_AUTORESTORE, &common.SetAutoRestoreParams{
		Enabled: enabled,
	})
	return err == nil, err
}

func (c *Client) NotifyTierChanged(oldTier, newTier string) (bool, error) {
	_, err := c.invoke(common.UPDATE_TIER_CHANGED, &common.TierChangedParams{
		OldTier: oldTier,
		NewTier: newTier,
	})
	return err == nil, err
}
