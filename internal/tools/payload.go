package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
)

// ThoughtsKey carries the model's reasoning next to tool parameters
const ThoughtsKey = "_thoughts"

// Payload is a parsed tool invocation
type Payload struct {
	Thoughts string         `json:"_thoughts,omitempty"`
	Params   map[string]any `json:"params"`
}

// ParsePayload decodes model output into a payload.
// The text must be exactly one JSON object. Markdown fences and trailing
// prose are rejected rather than repaired.
func ParsePayload(raw []byte) (Payload, error) {
	params, err := decodeObject(raw)
	if err != nil {
		return Payload{}, &PayloadParseError{Raw: string(raw), Cause: err}
	}

	p := Payload{Params: params}
	if thoughts, ok := params[ThoughtsKey]; ok {
		if s, ok := thoughts.(string); ok {
			p.Thoughts = s
		} else if thoughts != nil {
			p.Thoughts = fmt.Sprint(thoughts)
		}
		delete(params, ThoughtsKey)
	}
	return p, nil
}

// NewPayload builds a payload from parameters
func NewPayload(params map[string]any) Payload {
	if params == nil {
		params = map[string]any{}
	}
	return Payload{Params: maps.Clone(params)}
}

// Has reports whether a parameter is present and not null
func (p Payload) Has(key string) bool {
	v, ok := p.Params[key]
	return ok && v != nil
}

// Value returns the raw parameter value
func (p Payload) Value(key string) any {
	return p.Params[key]
}

// String returns a parameter as text. Non-string values are JSON encoded.
func (p Payload) String(key string) string {
	v, ok := p.Params[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Int returns a numeric parameter, or def when absent or not a number
func (p Payload) Int(key string, def int) int {
	switch v := p.Params[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// Map returns a copy of the parameters
func (p Payload) Map() map[string]any {
	return maps.Clone(p.Params)
}

// JSON encodes the parameters, thoughts excluded
func (p Payload) JSON() string {
	params := p.Params
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeObject(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty output")
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %q", preview(string(trimmed)))
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected content after JSON object")
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

func preview(s string) string {
	const limit = 40
	return truncate(strings.ReplaceAll(s, "\n", " "), limit)
}
