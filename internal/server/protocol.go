package server

import (
	"encoding/json"

	"github.com/tabcell/tabcell/common"
)

// Request is one framed control-surface call.
type Request struct {
	Method  common.UpdateType `json:"method"`
	Message json.RawMessage   `json:"data"`
}

// ParseRequest decodes a framed request.
func ParseRequest(b []byte) (*Request, error) {
	var r Request
	return &r, json.Unmarshal(b, &r)
}

// Response is the framed reply to a control-surface call.
type Response struct {
	Ok      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message any    `json:"message,omitempty"`
}

// MakeResult encodes a success response.
func MakeResult(res any) []byte {
	b, _ := json.Marshal(Response{
		Ok:      true,
		Message: res,
	})
	return b
}

// InitError encodes an error response from an error value.
func InitError(err error) []byte {
	if err == nil {
		return CreateError("Unknown")
	}
	return CreateError(err.Error())
}

// ErrorWithResult encodes an error response that still carries a partial
// result, such as the per-tier outcome of an incomplete delete.
func ErrorWithResult(err error, res any) []byte {
	b, _ := json.Marshal(Response{
		Ok:      false,
		Error:   err.Error(),
		Message: res,
	})
	return b
}

// CreateError encodes an error response from a message string.
func CreateError(err string) []byte {
	b, _ := json.Marshal(Response{
		Ok:    false,
		Error: err,
	})
	return b
}

// HandlerFunc handles one control-surface method. It receives the raw
// JSON message body and returns the response payload.
type HandlerFunc func(body json.RawMessage) (any, error)
