package server

import (
	"io"
	"net"
	"sync"
)

func intToBytes(v uint32) []byte {
	b := make([]byte, 4)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	return b
}

func bytesToInt(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func read(mu *sync.Mutex, conn net.Conn) ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()
	head := make([]byte, 4)
	if _, err := io.ReadFull(conn, head); err != nil {
		return nil, err
	}
	buf := make([]byte, bytesToInt(head))
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func write(mu *sync.Mutex, conn net.Conn, b []byte) error {
	mu.Lock()
	defer mu.Unlock()
	if _, err := conn.Write(intToBytes(uint32(len(b)))); err != nil {
		return err
	}
	_, err := conn.Write(b)
	return err
}

// SyncConn wraps a net.Conn with independently locked framed reads and
// writes so concurrent handlers can share one connection.
type SyncConn struct {
	Conn     net.Conn
	rmu, wmu sync.Mutex
}

func NewSyncConn(conn net.Conn) *SyncConn {
	return &SyncConn{Conn: conn}
}

func (s *SyncConn) Write(b []byte) error {
	return write(&s.wmu, s.Conn, b)
}

func (s *SyncConn) Read() ([]byte, error) {
	return read(&s.rmu, s.Conn)
}
