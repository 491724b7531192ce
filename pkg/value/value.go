// Package value implements the JSON value model used as the data currency
// between tools, environments and the interpreter.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Normalize returns v in canonical decode shape: nil, bool, float64, string,
// []any and map[string]any. Integer and json.Number inputs are converted to
// float64; nested containers are normalized recursively. Values already in
// canonical shape are returned as-is where possible.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return t
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		// yaml decodes mappings with non-string scalar keys this way.
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	default:
		// Anything else (structs, typed slices) goes through a JSON
		// round-trip so tools can return plain Go values.
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Sprint(t)
		}
		return out
	}
}

// Clone returns a deep copy of v. Scalars are returned directly; sequences
// and mappings are copied recursively so the result shares no containers
// with the input.
func Clone(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether a and b are structurally equal: deep, order
// sensitive for sequences, key based for mappings. Numbers compare
// numerically regardless of Go representation, so int(5), int64(5) and
// float64(5) are all equal.
func Equal(a, b any) bool {
	if na, ok := AsNumber(a); ok {
		nb, ok := AsNumber(b)
		return ok && na == nb
	}
	switch ta := a.(type) {
	case nil:
		return b == nil
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	default:
		return Equal(Normalize(a), b)
	}
}

// AsNumber extracts a numeric value from any of the Go number types a JSON
// decoder or a native tool may produce.
func AsNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// AsString extracts a string value.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Decode parses JSON text into a canonical Value.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// Trailing non-whitespace content means the document was not a single
	// JSON value.
	if dec.More() {
		return nil, fmt.Errorf("trailing content after JSON value")
	}
	return v, nil
}

// Encode renders v as compact JSON text.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// EncodeIndent renders v as indented JSON text for human output.
func EncodeIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
