// Package document decodes YAML test documents into an ordered tree and
// normalises the tree for validation.
package document

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when the text is not a well-formed YAML mapping.
var ErrInvalid = errors.New("invalid YAML structure")

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   string
	Value any
}

// Map is a string-keyed mapping that remembers insertion order.
// Setting an existing key replaces the value in place.
type Map struct {
	entries []Entry
	index   map[string]int
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

// Set stores value under key.
func (m *Map) Set(key string, value any) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Keys returns the keys in document order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries in document order.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Parse decodes text into a tree of *Map, []any and scalar values.
// Empty input yields nil.
func Parse(text string) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}
	d := &decoder{active: make(map[*yaml.Node]bool)}
	return d.node(root.Content[0])
}

// ParseMap decodes text whose top level must be a mapping.
// Empty input yields an empty Map.
func ParseMap(text string) (*Map, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return NewMap(), nil
	case *Map:
		return t, nil
	default:
		return nil, fmt.Errorf("%w: top level is %T, want mapping", ErrInvalid, v)
	}
}

// Lowercase returns a copy of v with every mapping key lowercased, at any
// depth. Values are not touched. When two keys collapse to the same
// lowercase form the later one wins, keeping the earlier position.
func Lowercase(v any) any {
	switch t := v.(type) {
	case *Map:
		out := NewMap()
		for _, e := range t.entries {
			out.Set(strings.ToLower(e.Key), Lowercase(e.Value))
		}
		return out
	default:
		return v
	}
}

type decoder struct {
	active map[*yaml.Node]bool
}

func (d *decoder) node(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return d.node(n.Content[0])
	case yaml.AliasNode:
		if d.active[n.Alias] {
			return nil, fmt.Errorf("%w: recursive alias at line %d", ErrInvalid, n.Line)
		}
		d.active[n.Alias] = true
		defer delete(d.active, n.Alias)
		return d.node(n.Alias)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalid, n.Line, err)
		}
		return v, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := d.node(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return d.mapping(n)
	default:
		return nil, fmt.Errorf("%w: unexpected node kind %d at line %d", ErrInvalid, n.Kind, n.Line)
	}
}

func (d *decoder) mapping(n *yaml.Node) (*Map, error) {
	m := NewMap()
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, vn := n.Content[i], n.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.Tag == "!!merge" {
			if err := d.merge(m, vn); err != nil {
				return nil, err
			}
			continue
		}
		key, err := d.key(k)
		if err != nil {
			return nil, err
		}
		v, err := d.node(vn)
		if err != nil {
			return nil, err
		}
		m.Set(key, v)
	}
	return m, nil
}

// merge applies a "<<" entry. Keys already present are kept.
func (d *decoder) merge(m *Map, n *yaml.Node) error {
	var sources []*yaml.Node
	if n.Kind == yaml.SequenceNode {
		sources = n.Content
	} else {
		sources = []*yaml.Node{n}
	}
	for _, s := range sources {
		v, err := d.node(s)
		if err != nil {
			return err
		}
		src, ok := v.(*Map)
		if !ok {
			return fmt.Errorf("%w: merge value at line %d is not a mapping", ErrInvalid, s.Line)
		}
		for _, e := range src.entries {
			if !m.Has(e.Key) {
				m.Set(e.Key, e.Value)
			}
		}
	}
	return nil
}

func (d *decoder) key(n *yaml.Node) (string, error) {
	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!null" {
			return "", nil
		}
		return n.Value, nil
	}
	v, err := d.node(n)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}
