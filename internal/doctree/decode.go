package doctree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseObject salvages a JSON object from raw oracle output. Markdown code
// fences are stripped, then everything outside the first '{' and the last '}'
// is discarded before decoding. Returns nil and an error when no well-formed
// object can be recovered.
func ParseObject(raw string) (*Mapping, error) {
	cleaned := stripFences(raw)
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("doctree: no JSON object in response")
	}
	node, err := Decode(cleaned[start : end+1])
	if err != nil {
		return nil, err
	}
	m, ok := node.(*Mapping)
	if !ok {
		return nil, fmt.Errorf("doctree: top-level value is not an object")
	}
	return m, nil
}

// Decode parses a JSON document into a Node, preserving object key order.
func Decode(text string) (Node, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	node, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("doctree: decode: %w", err)
	}
	// Trailing garbage after the document is malformed output, not a candidate.
	if _, err := dec.Token(); err == nil {
		return nil, fmt.Errorf("doctree: trailing data after JSON document")
	}
	return node, nil
}

func stripFences(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```JSON", "")
	return strings.ReplaceAll(cleaned, "```", "")
}

func decodeValue(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return Scalar{Value: t}, nil
	case json.Number:
		return Scalar{Value: t}, nil
	case bool:
		return Scalar{Value: t}, nil
	case nil:
		return Scalar{Value: nil}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (*Mapping, error) {
	m := NewMapping()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		m.Set(key, val)
	}
	// Consume closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeArray(dec *json.Decoder) (*Sequence, error) {
	seq := &Sequence{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		seq.Append(val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return seq, nil
}
