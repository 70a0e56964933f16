package events

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/pkg/logger"
)

// Native messaging framing: 4-byte little-endian length prefix followed by
// a JSON payload, the format Chrome and Firefox use for extension hosts.

// ReadFrame reads one framed message.
func ReadFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length > uint32(common.MaxMessageSize) {
		return nil, fmt.Errorf("message too large: %d bytes (max %d)", length, common.MaxMessageSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes one framed message.
func WriteFrame(w io.Writer, msg []byte) error {
	if len(msg) > common.MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes (max %d)", len(msg), common.MaxMessageSize)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(msg))); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// StdioHost pumps framed events from a native-messaging stdin/stdout pair
// into the hub. It runs until the reader closes.
type StdioHost struct {
	log logger.Logger
	hub *Hub
	in  io.Reader
	out io.Writer
}

// NewStdioHost creates a host over the given reader/writer pair.
func NewStdioHost(l logger.Logger, hub *Hub, in io.Reader, out io.Writer) *StdioHost {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &StdioHost{log: l, hub: hub, in: in, out: out}
}

// Run processes events until EOF.
func (h *StdioHost) Run() error {
	for {
		buf, err := ReadFrame(h.in)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		e, err := ParseEvent(buf)
		if err != nil {
			h.log.Warning("events: dropping undecodable frame: %v", err)
			continue
		}
		reply := h.hub.Dispatch(e)
		b, err := json.Marshal(reply)
		if err != nil {
			return err
		}
		if err := WriteFrame(h.out, b); err != nil {
			return err
		}
	}
}
