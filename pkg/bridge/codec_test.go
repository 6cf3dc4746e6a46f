package bridge

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAppendsSentinel(t *testing.T) {
	frame, err := Encode(&Message{ID: 1, Type: TypeRequest, Code: "x = 1", Output: []string{"x"}})
	require.NoError(t, err)
	require.NotEmpty(t, frame)
	assert.Equal(t, Sentinel, frame[len(frame)-1])
	assert.Equal(t, 1, bytes.Count(frame, []byte{Sentinel}))
}

func TestEncodeEscapesControlBytes(t *testing.T) {
	frame, err := Encode(&Message{ID: 2, Type: TypeRequest, Code: "s = '\x17'"})
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(frame, []byte{Sentinel}))

	m, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "s = '\x17'", m.Code)
}

func TestEncodeRejectsNaN(t *testing.T) {
	ok := true
	_, err := Encode(&Message{ID: 3, Type: TypeResponse, Result: &ok, Output: map[string]any{"x": math.NaN()}})
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestDecodeRequest(t *testing.T) {
	m, err := Decode([]byte(`{"id": 12, "type": "request", "code": "x = a", "input": {"a": 1, "b": 2.5, "c": [3, {"d": 4}]}, "output": ["x"]}` + "\x17"))
	require.NoError(t, err)

	assert.Equal(t, int64(12), m.ID)
	assert.Equal(t, TypeRequest, m.Type)
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": 2.5,
		"c": []any{int64(3), map[string]any{"d": int64(4)}},
	}, m.Input)

	names, err := m.OutputNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names)
}

func TestDecodeResponse(t *testing.T) {
	m, err := Decode([]byte(`{"id": 5, "type": "response", "result": true, "output": {"x": 42}}`))
	require.NoError(t, err)
	assert.True(t, m.Succeeded())
	assert.Equal(t, map[string]any{"x": int64(42)}, m.OutputValues())
}

func TestDecodeRejects(t *testing.T) {
	for name, frame := range map[string]string{
		"empty":       "\x17",
		"blank":       "  ",
		"not json":    "hello\x17",
		"missing id":  `{"type": "request"}`,
		"bad type":    `{"id": 1, "type": "notify"}`,
		"string id":   `{"id": "1", "type": "request"}`,
		"scalar out":  `{"id": 1, "type": "request", "output": 3}`,
		"array input": `{"id": 1, "type": "request", "input": [1]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			assert.ErrorIs(t, err, ErrChannelParse)
		})
	}
}

func TestDecodeKeepsUnknownFields(t *testing.T) {
	m, err := Decode([]byte(`{"id": 9, "type": "request", "code": "pass", "trace": "abc"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), m.ID)
}

func TestOutputNamesRejectsNonStrings(t *testing.T) {
	m := &Message{Output: []any{"a", int64(1)}}
	_, err := m.OutputNames()
	assert.Error(t, err)
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse(&Message{ID: 77, Type: TypeRequest})
	assert.Equal(t, int64(77), resp.ID)
	assert.Equal(t, TypeResponse, resp.Type)
	require.NotNil(t, resp.Result)
	assert.False(t, *resp.Result)
	assert.JSONEq(t, `{"id": 77, "type": "response", "result": false}`, resp.String())
}

func TestMessageSchema(t *testing.T) {
	data, err := MessageSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, messageSchemaID, doc["$id"])
	assert.Contains(t, string(data), `"request"`)
	assert.Contains(t, string(data), `"response"`)
}
