// Package doctree models extraction candidates and reconciled records as a
// tagged union over scalars, sequences and string-keyed mappings. Mappings
// preserve insertion order so that reconciliation tie-breaks and rendered
// output are deterministic across runs.
package doctree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind discriminates the three node shapes.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// Node is one value in a document tree.
type Node interface {
	Kind() Kind
	json.Marshaler
}

// Scalar holds a leaf value: string, json.Number, bool or nil.
type Scalar struct {
	Value interface{}
}

// Kind implements Node.
func (Scalar) Kind() Kind { return KindScalar }

// String renders the scalar as text. Null renders as the empty string.
func (s Scalar) String() string {
	switch v := s.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Value)
}

// Sequence holds an ordered list of nodes.
type Sequence struct {
	Items []Node
}

// Kind implements Node.
func (*Sequence) Kind() Kind { return KindSequence }

// Len returns the number of items.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Append adds an item to the end of the sequence.
func (s *Sequence) Append(n Node) {
	s.Items = append(s.Items, n)
}

// MarshalJSON implements json.Marshaler.
func (s *Sequence) MarshalJSON() ([]byte, error) {
	if s == nil || len(s.Items) == 0 {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range s.Items {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Mapping holds string-keyed child nodes in insertion order.
type Mapping struct {
	keys   []string
	values map[string]Node
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]Node)}
}

// Kind implements Node.
func (*Mapping) Kind() Kind { return KindMapping }

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is shared; do not mutate.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Get returns the child node for key.
func (m *Mapping) Get(key string) (Node, bool) {
	if m == nil {
		return nil, false
	}
	n, ok := m.values[key]
	return n, ok
}

// Set stores the child node for key, appending the key on first insert.
func (m *Mapping) Set(key string, n Node) {
	if m.values == nil {
		m.values = make(map[string]Node)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = n
}

// GetString returns the scalar text at key, or "" when absent or non-scalar.
func (m *Mapping) GetString(key string) string {
	n, ok := m.Get(key)
	if !ok {
		return ""
	}
	s, ok := n.(Scalar)
	if !ok {
		return ""
	}
	return s.String()
}

// GetMapping returns the child mapping at key, or nil when absent or mismatched.
func (m *Mapping) GetMapping(key string) *Mapping {
	n, ok := m.Get(key)
	if !ok {
		return nil
	}
	sub, ok := n.(*Mapping)
	if !ok {
		return nil
	}
	return sub
}

// GetSequence returns the child sequence at key, or nil when absent or mismatched.
func (m *Mapping) GetSequence(key string) *Sequence {
	n, ok := m.Get(key)
	if !ok {
		return nil
	}
	seq, ok := n.(*Sequence)
	if !ok {
		return nil
	}
	return seq
}

// MarshalJSON implements json.Marshaler, emitting keys in insertion order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	if m == nil || len(m.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyData, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyData)
		buf.WriteByte(':')
		valData, err := json.Marshal(m.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valData)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// IsEmpty reports whether a node carries no information: nil, a null or empty
// scalar, or an empty sequence/mapping.
func IsEmpty(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case Scalar:
		return v.Value == nil || v.String() == ""
	case *Sequence:
		return v.Len() == 0
	case *Mapping:
		return v.Len() == 0
	default:
		return true
	}
}

// Canonical returns the compact JSON rendering of a node. Used as an equality
// key for deduplication and frequency counting during reconciliation.
func Canonical(n Node) string {
	if n == nil {
		return "null"
	}
	data, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	return string(data)
}
