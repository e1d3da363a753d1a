package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Attribute is a single requested state change, kept with its raw JSON value
// so the success result can echo exactly what the client sent.
type Attribute struct {
	Key   string
	Value json.RawMessage
}

// Attributes is an ordered attribute map. Order follows the request body.
type Attributes []Attribute

// ErrNotObject is returned when a state body is not a JSON object.
var ErrNotObject = errors.New("state body is not a json object")

// ParseAttributes decodes a JSON object preserving key order. A repeated key
// keeps its first position and takes the last value.
func ParseAttributes(data []byte) (Attributes, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read state body: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}

	var attrs Attributes
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read attribute name: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, ErrNotObject
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to read attribute %q: %w", key, err)
		}
		if i, dup := seen[key]; dup {
			attrs[i].Value = raw
			continue
		}
		seen[key] = len(attrs)
		attrs = append(attrs, Attribute{Key: key, Value: raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to close state body: %w", err)
	}
	return attrs, nil
}

// Attr builds an Attribute from a Go value. Mostly useful in tests and scripts.
func Attr(key string, value any) Attribute {
	raw, err := json.Marshal(value)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Attribute{Key: key, Value: raw}
}

// Keys returns the attribute names in order.
func (a Attributes) Keys() []string {
	keys := make([]string, len(a))
	for i, attr := range a {
		keys[i] = attr.Key
	}
	return keys
}
