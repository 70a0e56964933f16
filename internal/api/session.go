package api

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/pkg/cellib"
)

func (s *Api) createSessionHandler(body json.RawMessage) (any, error) {
	var m common.CreateSessionParams
	if len(body) > 0 {
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
	}
	if err := s.gate.CanCreateSession(s.table.Len()); err != nil {
		return nil, err
	}
	sess := cellib.NewSession(cellib.NextColor())
	if m.SeedUrl != "" {
		if fp, ok := cellib.FingerprintURL(m.SeedUrl); ok {
			sess.RememberURL(fp)
		}
	}
	s.table.Put(sess)
	// First write is synchronous so the session survives an immediate crash.
	if err := s.store.Save(context.Background(), sess.ID, true); err != nil {
		s.log.Warning("initial save for %s: %v", sess.ID, err)
	}
	return &common.CreateSessionResponse{
		SessionId: string(sess.ID),
		Color:     sess.Color,
	}, nil
}

func (s *Api) listSessionsHandler(_ json.RawMessage) (any, error) {
	// Marshals as [] rather than null when no sessions exist.
	out := []common.SessionSummary{}
	s.table.Range(func(sess *cellib.Session) bool {
		tabs := sess.TabIDs()
		sort.Slice(tabs, func(i, j int) bool { return tabs[i] < tabs[j] })
		out = append(out, common.SessionSummary{
			SessionId:    string(sess.ID),
			Name:         sess.Name,
			Color:        sess.DisplayColor(),
			TabIds:       tabs,
			LastActivity: sess.LastActivity,
			IsOrphan:     sess.IsOrphan(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SessionId < out[j].SessionId })
	return &common.ListSessionsResponse{Sessions: out}, nil
}

func (s *Api) updateSessionHandler(body json.RawMessage) (any, error) {
	var m common.UpdateSessionParams
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	id, err := cellib.ParseSessionID(m.SessionId)
	if err != nil {
		return nil, err
	}
	err = s.table.Update(id, func(sess *cellib.Session) {
		if m.Name != "" {
			sess.Name = m.Name
		}
		if m.Color != "" {
			sess.CustomColor = m.Color
		}
		sess.Touch()
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(context.Background(), id, false); err != nil {
		s.log.Warning("saving %s after update: %v", id, err)
	}
	return &common.AckResponse{Ok: true}, nil
}

func (s *Api) deleteSessionHandler(body json.RawMessage) (any, error) {
	var m common.InputSessionId
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	id, err := cellib.ParseSessionID(m.SessionId)
	if err != nil {
		return nil, err
	}
	if !s.table.Has(id) {
		return nil, cellib.ErrSessionNotFound
	}
	s.binder.DropSession(id)
	perTier, err := s.store.DeleteSession(context.Background(), id)
	resp := &common.DeleteSessionResponse{
		SessionId: string(id),
		PerTier:   perTier,
	}
	if err != nil {
		return resp, err
	}
	return resp, nil
}
