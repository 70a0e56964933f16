// Package server exposes the engine's control surface: a framed protocol
// over a unix socket (TCP fallback), plus a JSON-RPC 2.0 bridge for the
// extension popup.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/pkg/logger"
)

// Server accepts control connections from the CLI and dispatches framed
// requests to registered handlers.
type Server struct {
	log      logger.Logger
	handler  map[common.UpdateType]HandlerFunc
	port     int
	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a control server. The unix socket is the primary
// transport; TCP on the given localhost port is the fallback.
func NewServer(l logger.Logger, port int) *Server {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Server{
		log:     l,
		handler: make(map[common.UpdateType]HandlerFunc),
		port:    port,
	}
}

// RegisterHandler associates a handler with a control method.
func (s *Server) RegisterHandler(method common.UpdateType, handler HandlerFunc) {
	s.handler[method] = handler
}

func (s *Server) createListener() (net.Listener, error) {
	socketPath := SocketPath()
	_ = os.Remove(socketPath)
	l, err := net.ListenUnix("unix", &net.UnixAddr{
		Name: socketPath,
		Net:  "unix",
	})
	if err != nil {
		s.log.Warning("unix socket unavailable (%v), falling back to tcp", err)
		tcpListener, tcpErr := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.port))
		if tcpErr != nil {
			return nil, fmt.Errorf("error listening: %s", tcpErr.Error())
		}
		return tcpListener, nil
	}
	_ = os.Chmod(socketPath, 0o600)
	return l, nil
}

// Start listens for connections and blocks until the context is canceled.
// Each connection is served by its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	l, err := s.createListener()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.Warning("accept: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Shutdown closes the listener and removes the socket file.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.log.Warning("closing listener: %v", err)
		}
		s.listener = nil
	}
	socketPath := SocketPath()
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		s.log.Warning("removing socket file: %v", err)
	}
	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	sconn := NewSyncConn(conn)
	defer conn.Close()
	for {
		buf, err := sconn.Read()
		if err != nil {
			if err != io.EOF {
				s.log.Warning("reading request: %v", err)
			}
			return
		}
		if err := s.handlerWrapper(sconn, buf); err != nil {
			s.log.Warning("handling request: %v", err)
			return
		}
	}
}

// Dispatch invokes the handler registered for a method directly, without
// going through the framed transport. The JSON-RPC bridge reuses the same
// handler table this way.
func (s *Server) Dispatch(method common.UpdateType, body json.RawMessage) (any, error) {
	rHandler, ok := s.handler[method]
	if !ok {
		return nil, fmt.Errorf("unknown method: %s", method)
	}
	return rHandler(body)
}

func (s *Server) handlerWrapper(sconn *SyncConn, b []byte) error {
	req, err := ParseRequest(b)
	if err != nil {
		return fmt.Errorf("error parsing request: %s", err.Error())
	}
	rHandler, ok := s.handler[req.Method]
	if !ok {
		return sconn.Write(CreateError("unknown method: " + string(req.Method)))
	}
	msg, err := rHandler(req.Message)
	if err != nil {
		if msg != nil {
			return sconn.Write(ErrorWithResult(err, msg))
		}
		return sconn.Write(InitError(err))
	}
	return sconn.Write(MakeResult(msg))
}
