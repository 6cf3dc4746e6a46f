package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrChannelParse marks an incoming frame that could not be read or
	// decoded. The frame is dropped.
	ErrChannelParse = errors.New("channel parse error")
	// ErrSerialization marks a message that could not be encoded.
	ErrSerialization = errors.New("serialization error")
)

// Encode returns the wire frame for m: its JSON encoding followed by the
// sentinel byte.
func Encode(m *Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if bytes.IndexByte(data, Sentinel) >= 0 {
		return nil, fmt.Errorf("%w: payload contains the frame sentinel", ErrSerialization)
	}
	return append(data, Sentinel), nil
}

// Decode parses one frame (with or without its trailing sentinel) into a
// Message after checking it against the message schema. Numbers decode as
// int64 when integral and float64 otherwise.
func Decode(frame []byte) (*Message, error) {
	frame = bytes.TrimSuffix(frame, []byte{Sentinel})
	if len(bytes.TrimSpace(frame)) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrChannelParse)
	}
	if err := ValidateFrame(frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelParse, err)
	}

	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.UseNumber()
	var m Message
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelParse, err)
	}
	m.Input = normalizeMap(m.Input)
	m.Output = normalizeNumbers(m.Output)
	return &m, nil
}

// normalizeNumbers replaces json.Number values, at any depth, with int64 or
// float64.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		return normalizeMap(t)
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeNumbers(v)
	}
	return m
}
