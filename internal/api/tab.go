package api

import (
	"context"
	"encoding/json"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/pkg/cellib"
)

func (s *Api) bindTabHandler(body json.RawMessage) (any, error) {
	var m common.BindTabParams
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	id, err := cellib.ParseSessionID(m.SessionId)
	if err != nil {
		return nil, err
	}
	if err := s.binder.Bind(m.TabId, id); err != nil {
		return nil, err
	}
	if err := s.store.Save(context.Background(), id, false); err != nil {
		s.log.Warning("saving %s after bind: %v", id, err)
	}
	return &common.AckResponse{Ok: true}, nil
}

func (s *Api) unbindTabHandler(body json.RawMessage) (any, error) {
	var m common.UnbindTabParams
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	id, bound := s.binder.Lookup(m.TabId)
	if !bound {
		// Unbinding an unbound tab is a no-op, same as Binder.Unbind.
		return &common.AckResponse{Ok: true}, nil
	}
	s.binder.Unbind(m.TabId)
	if err := s.store.Save(context.Background(), id, false); err != nil {
		s.log.Warning("saving %s after unbind: %v", id, err)
	}
	return &common.AckResponse{Ok: true}, nil
}
