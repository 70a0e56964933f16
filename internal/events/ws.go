package events

import (
	"context"
	"encoding/json"
	"net/http"

	cws "github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tabcell/tabcell/pkg/logger"
)

// WSHandler accepts browser-companion WebSocket connections and pumps
// their events through the hub. One goroutine serves each connection; the
// engine itself stays single-writer through the hub's table updates.
type WSHandler struct {
	log logger.Logger
	hub *Hub
}

// NewWSHandler creates the WebSocket event endpoint.
func NewWSHandler(l logger.Logger, hub *Hub) *WSHandler {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &WSHandler{log: l, hub: hub}
}

// ServeHTTP upgrades the connection and processes events until the peer
// disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, &cws.AcceptOptions{
		// The companion connects from an extension origin; localhost-only
		// listening is the actual boundary.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warning("events: websocket accept failed: %v", err)
		return
	}
	connID := uuid.NewString()
	h.log.Info("events: companion connected (%s)", connID)
	defer h.log.Info("events: companion disconnected (%s)", connID)

	ctx := r.Context()
	defer conn.Close(cws.StatusNormalClosure, "")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		e, err := ParseEvent(data)
		if err != nil {
			h.log.Warning("events: dropping undecodable message on %s: %v", connID, err)
			continue
		}
		reply := h.hub.Dispatch(e)
		b, err := json.Marshal(reply)
		if err != nil {
			h.log.Error("events: encoding reply on %s: %v", connID, err)
			return
		}
		if err := conn.Write(ctx, cws.MessageText, b); err != nil {
			return
		}
	}
}

// Serve runs a standalone HTTP server for the event endpoint on addr,
// shutting down when ctx is canceled.
func (h *WSHandler) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
