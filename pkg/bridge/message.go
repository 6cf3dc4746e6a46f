// Package bridge implements test-mode remote control: an external driver
// process sends code over a named pipe, the running workbench executes it
// against its live state and answers on a second pipe.
//
// Messages are UTF-8 JSON objects, each followed by the single byte 0x17
// (ETB). Encoded JSON can only carry control characters escaped, so the
// sentinel never occurs inside a payload and needs no length prefix.
package bridge

import (
	"encoding/json"
	"fmt"
)

// Sentinel terminates every frame on the wire.
const Sentinel byte = 0x17

// Message types.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
)

// Message is a single request or response. On requests Output lists the
// variable names to send back; on successful responses it maps those names
// to their values.
type Message struct {
	ID     int64          `json:"id" jsonschema:"required"`
	Type   string         `json:"type" jsonschema:"required,enum=request,enum=response"`
	Code   string         `json:"code,omitempty"`
	Input  map[string]any `json:"input,omitempty"`
	Output any            `json:"output,omitempty" jsonschema:"oneof_type=array;object"`
	Result *bool          `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// NewResponse returns the failure skeleton answering req.
func NewResponse(req *Message) *Message {
	failed := false
	return &Message{ID: req.ID, Type: TypeResponse, Result: &failed}
}

// Succeeded reports whether a response carries result true.
func (m *Message) Succeeded() bool {
	return m.Result != nil && *m.Result
}

// OutputNames returns the variable names a request asks for.
func (m *Message) OutputNames() ([]string, error) {
	switch out := m.Output.(type) {
	case nil:
		return nil, nil
	case []string:
		return out, nil
	case []any:
		names := make([]string, 0, len(out))
		for i, v := range out {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("output[%d] is %T, want string", i, v)
			}
			names = append(names, s)
		}
		return names, nil
	default:
		return nil, fmt.Errorf("request output is %T, want a list of names", m.Output)
	}
}

// OutputValues returns the captured variables of a response.
func (m *Message) OutputValues() map[string]any {
	if out, ok := m.Output.(map[string]any); ok {
		return out
	}
	return nil
}

// String renders m as JSON.
func (m *Message) String() string {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("{id:%d type:%s error:%q}", m.ID, m.Type, err)
	}
	return string(data)
}
