package api

import (
	"encoding/json"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/internal/policy"
)

func (s *Api) setAutoRestoreHandler(body json.RawMessage) (any, error) {
	var m common.SetAutoRestoreParams
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	if err := s.gate.SetAutoRestore(m.Enabled); err != nil {
		return nil, err
	}
	return &common.AckResponse{Ok: true}, nil
}

func (s *Api) tierChangedHandler(body json.RawMessage) (any, error) {
	var m common.TierChangedParams
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	oldTier := policy.ParseTier(m.OldTier)
	newTier := policy.ParseTier(m.NewTier)
	s.gate.NotifyTierChanged(oldTier, newTier)
	return &common.AckResponse{Ok: true}, nil
}
