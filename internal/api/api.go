package api

import (
	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/internal/events"
	"github.com/tabcell/tabcell/internal/intercept"
	"github.com/tabcell/tabcell/internal/policy"
	"github.com/tabcell/tabcell/internal/server"
	"github.com/tabcell/tabcell/internal/storage"
	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

type Api struct {
	log    logger.Logger
	table  *cellib.SessionTable
	binder *cellib.Binder
	store  *storage.Manager
	gate   *policy.Gate
	icept  *intercept.Interceptor
	hub    *events.Hub
}

func NewApi(l logger.Logger, table *cellib.SessionTable, binder *cellib.Binder,
	store *storage.Manager, gate *policy.Gate, icept *intercept.Interceptor,
	hub *events.Hub) (*Api, error) {
	return &Api{
		log:    l,
		table:  table,
		binder: binder,
		store:  store,
		gate:   gate,
		icept:  icept,
		hub:    hub,
	}, nil
}

func (s *Api) RegisterHandlers(srv *server.Server) {
	// session API methods
	srv.RegisterHandler(common.UPDATE_CREATE_SESSION, s.createSessionHandler)
	srv.RegisterHandler(common.UPDATE_LIST_SESSIONS, s.listSessionsHandler)
	srv.RegisterHandler(common.UPDATE_UPDATE_SESSION, s.updateSessionHandler)
	srv.RegisterHandler(common.UPDATE_DELETE_SESSION, s.deleteSessionHandler)
	srv.RegisterHandler(common.UPDATE_GET_JAR, s.getJarHandler)

	// tab binding API methods
	srv.RegisterHandler(common.UPDATE_BIND_TAB, s.bindTabHandler)
	srv.RegisterHandler(common.UPDATE_UNBIND_TAB, s.unbindTabHandler)

	// maintenance API methods
	srv.RegisterHandler(common.UPDATE_HEALTH, s.healthHandler)
	srv.RegisterHandler(common.UPDATE_SET_AUTORESTORE, s.setAutoRestoreHandler)
	srv.RegisterHandler(common.UPDATE_TIER_CHANGED, s.tierChangedHandler)
	srv.RegisterHandler(common.UPDATE_CLEAR_ALL, s.clearAllHandler)
}

func (s *Api) Close() error {
	return s.store.Close()
}
