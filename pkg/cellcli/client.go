// Package cellcli is the client library for the tabcell daemon's control
// socket. The CLI and tests use it; browser-facing traffic goes over the
// event channel instead.
package cellcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/tabcell/tabcell/common"
)

type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewClient dials the daemon's unix socket, falling back to the localhost
// TCP port when the socket is unavailable.
func NewClient() (*Client, error) {
	conn, err := net.Dial("unix", socketPath())
	if err != nil {
		conn, err = net.Dial("tcp", fmt.Sprintf("localhost:%d", tcpPort()))
		if err != nil {
			return nil, fmt.Errorf("error connecting to daemon: %s", err.Error())
		}
	}
	return &Client{conn: conn}, nil
}

func socketPath() string {
	if p := os.Getenv(common.SocketPathEnv); p != "" {
		return p
	}
	return filepath.Join(os.TempDir(), "tabcell.sock")
}

func tcpPort() int {
	if p := os.Getenv(common.TCPPortEnv); p != "" {
		var port int
		if _, err := fmt.Sscanf(p, "%d", &port); err == nil && port > 0 {
			return port
		}
	}
	return common.DefaultTCPPort
}

type request struct {
	Method  common.UpdateType `json:"method"`
	Message any               `json:"data,omitempty"`
}

type response struct {
	Ok      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

func (c *Client) invoke(method common.UpdateType, message any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := json.Marshal(&request{
		Method:  method,
		Message: message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	if err = write(c.conn, buf); err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	buf, err = read(c.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	var res response
	if err = json.Unmarshal(buf, &res); err != nil {
		return nil, fmt.Errorf("failed to read %s: %s", method, err.Error())
	}
	if !res.Ok {
		return res.Message, errors.New(res.Error)
	}
	return res.Message, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
