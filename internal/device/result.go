package device

import (
	"encoding/json"
)

// ErrorTypeInternal is the Hue error type reported for declined attributes.
const ErrorTypeInternal = 901

// Error is the Hue-style error descriptor.
type Error struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// Result is the outcome of one attribute update.
// It marshals to {"success":{address:value}} or {"error":{...}}.
type Result struct {
	Key     string
	Address string
	Value   json.RawMessage
	Error   *Error
	Cause   error
}

// OK reports whether the attribute was committed.
func (r Result) OK() bool {
	return r.Error == nil
}

func success(address, key string, value json.RawMessage) Result {
	return Result{Key: key, Address: address, Value: value}
}

func failure(address, key string, cause error) Result {
	return Result{
		Key:     key,
		Address: address,
		Cause:   cause,
		Error: &Error{
			Type:        ErrorTypeInternal,
			Address:     address,
			Description: "Internal error",
		},
	}
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(map[string]*Error{"error": r.Error})
	}
	value := r.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return json.Marshal(map[string]map[string]json.RawMessage{
		"success": {r.Address: value},
	})
}
