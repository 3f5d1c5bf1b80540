package openweathermap

import (
	"bytes"
	"encoding/json"
)

// value is a lazily decoded JSON value. Every accessor returns the zero
// value on a type mismatch so a malformed payload degrades field by field.
type value json.RawMessage

// object is a decoded JSON object. A nil object answers every lookup with nil.
type object map[string]json.RawMessage

func parse(body []byte) (value, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return value(raw), nil
}

func (v value) obj() object {
	var o map[string]json.RawMessage
	if len(v) == 0 || v[0] != '{' {
		return nil
	}
	if err := json.Unmarshal(v, &o); err != nil {
		return nil
	}
	return o
}

func (v value) arr() values {
	var a []json.RawMessage
	if len(v) == 0 || v[0] != '[' {
		return nil
	}
	if err := json.Unmarshal(v, &a); err != nil {
		return nil
	}
	out := make(values, len(a))
	for i, item := range a {
		out[i] = value(item)
	}
	return out
}

type values []value

func (vs values) first() value {
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

func (o object) field(key string) value {
	return value(o[key])
}

func (o object) num(key string) *float64 {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	return &n
}

func (o object) str(key string) *string {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
