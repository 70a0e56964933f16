package server

import (
	"context"

	cws "github.com/coder/websocket"
)

// wsChannel adapts a coder/websocket.Conn to the jrpc2 Channel interface
// so one WebSocket connection carries one JSON-RPC session.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}
