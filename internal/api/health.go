package api

import (
	"context"
	"encoding/json"

	"github.com/tabcell/tabcell/common"
)

func (s *Api) healthHandler(_ json.RawMessage) (any, error) {
	tiers := make(map[string]common.TierHealth)
	for name, h := range s.store.HealthSnapshot() {
		tiers[name] = common.TierHealth{
			Available: h.Available,
			LastError: h.LastError,
		}
	}
	return &common.HealthResponse{
		Tiers: tiers,
		Diagnostics: common.Diagnostics{
			MalformedCookiesDropped: s.icept.MalformedDropped(),
			EventsDispatched:        s.hub.Dispatched(),
		},
	}, nil
}

// clearAllHandler wipes every session from memory and all tiers and forces
// the asynchronous tier to reinitialize. The response carries per-tier
// outcomes even on partial failure.
func (s *Api) clearAllHandler(_ json.RawMessage) (any, error) {
	cleared := s.table.Len()
	perTier, err := s.store.ClearAll(context.Background())
	if n := s.binder.Repair(); n > 0 {
		s.log.Warning("dropped %d dangling tab bindings after clear", n)
	}
	resp := &common.ClearAllResponse{Cleared: cleared, PerTier: perTier}
	if err != nil {
		return resp, err
	}
	return resp, nil
}
