package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// JSON-RPC error codes for session operations.
const (
	codeSessionNotFound     = jrpc2.Code(-32001)
	codeTierNotAllowed      = jrpc2.Code(-32002)
	codeStorageInconsistent = jrpc2.Code(-32003)
	codeSessionLimit        = jrpc2.Code(-32004)
)

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret  string // Auth token (required, empty means RPC disabled)
	Version string // Daemon version
}

// RPCServer bridges the extension popup to the control surface over
// JSON-RPC 2.0. HTTP POST and WebSocket transports share one method table,
// and every method forwards into the control server's handler map so the
// framed socket and the bridge cannot drift apart.
type RPCServer struct {
	bridge  jhttp.Bridge
	methods handler.Map
	secret  string
	version string
	srv     *Server
	log     logger.Logger
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
}

// rpcMethodTable maps JSON-RPC method names to control methods.
var rpcMethodTable = map[string]common.UpdateType{
	"session.create":          common.UPDATE_CREATE_SESSION,
	"session.list":            common.UPDATE_LIST_SESSIONS,
	"session.update":          common.UPDATE_UPDATE_SESSION,
	"session.delete":          common.UPDATE_DELETE_SESSION,
	"session.getJar":          common.UPDATE_GET_JAR,
	"tab.bind":                common.UPDATE_BIND_TAB,
	"tab.unbind":              common.UPDATE_UNBIND_TAB,
	"persistence.health":      common.UPDATE_HEALTH,
	"policy.setAutoRestore":   common.UPDATE_SET_AUTORESTORE,
	"policy.notifyTierChange": common.UPDATE_TIER_CHANGED,
	"maintenance.clearAll":    common.UPDATE_CLEAR_ALL,
}

// NewRPCServer creates the bridge over an already-populated control server.
func NewRPCServer(cfg *RPCConfig, srv *Server, l logger.Logger) *RPCServer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	rs := &RPCServer{
		secret:  cfg.Secret,
		version: cfg.Version,
		srv:     srv,
		log:     l,
	}

	methods := handler.Map{
		"system.getVersion": handler.New(rs.systemGetVersion),
	}
	for name, update := range rpcMethodTable {
		methods[name] = handler.New(rs.forward(update))
	}
	rs.methods = methods
	rs.bridge = jhttp.NewBridge(methods, nil)
	return rs
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{Version: rs.version}, nil
}

// forward adapts one control method into a jrpc2 handler.
func (rs *RPCServer) forward(update common.UpdateType) func(context.Context, json.RawMessage) (any, error) {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		res, err := rs.srv.Dispatch(update, params)
		if err != nil {
			return nil, rpcError(err)
		}
		return res, nil
	}
}

// rpcError converts engine sentinel errors into stable JSON-RPC codes.
func rpcError(err error) error {
	switch {
	case errors.Is(err, cellib.ErrSessionNotFound):
		return &jrpc2.Error{Code: codeSessionNotFound, Message: err.Error()}
	case errors.Is(err, cellib.ErrTierNotAllowed):
		return &jrpc2.Error{Code: codeTierNotAllowed, Message: err.Error()}
	case errors.Is(err, cellib.ErrTierLimitExceeded):
		return &jrpc2.Error{Code: codeSessionLimit, Message: err.Error()}
	case errors.Is(err, cellib.ErrStorageInconsistent):
		return &jrpc2.Error{Code: codeStorageInconsistent, Message: err.Error()}
	default:
		return &jrpc2.Error{Code: jrpc2.Code(-32602), Message: err.Error()}
	}
}

// Handler returns the http.Handler exposing /jsonrpc and /jsonrpc/ws.
func (rs *RPCServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/jsonrpc", rs.requireToken(rs.bridge))
	mux.Handle("/jsonrpc/ws", rs.requireToken(http.HandlerFunc(rs.handleWS)))
	return mux
}

func (rs *RPCServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		rs.log.Warning("ws accept: %v", err)
		return
	}
	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(rs.methods, nil)
	srv.Start(ch)
	if err := srv.Wait(); err != nil {
		rs.log.Info("ws rpc session ended: %v", err)
	}
	_ = ch.Close()
}

// requireToken wraps a handler with Bearer token authentication. An empty
// secret rejects every request so the bridge cannot run without auth.
func (rs *RPCServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rs.validToken(r.Header.Get("Authorization")) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"error": map[string]any{
					"code":    -32600,
					"message": "Unauthorized",
				},
				"id": nil,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rs *RPCServer) validToken(authHeader string) bool {
	if rs.secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(rs.secret)) == 1
}

// Close shuts down the jhttp bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
