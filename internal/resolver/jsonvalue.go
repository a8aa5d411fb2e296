// Package resolver implements conflict resolution: LWW and the recursive
// JSON merge variant (spec §4.2).
package resolver

import (
	"bytes"
	"encoding/json"
)

// Kind tags a JSONValue's underlying shape, per spec §9's Design Note
// ("dynamic JSON values ... model as a tagged sum").
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// JSONValue is the tagged sum used by mergeJSON's recursion. Decoding
// through json.Number instead of float64 keeps integers from silently
// rounding through a float64 conversion.
type JSONValue struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	String string
	Array  []JSONValue
	Object map[string]JSONValue
}

// Decode parses raw JSON bytes into a JSONValue tree. Empty input decodes
// to KindNull, matching an empty tombstone payload.
func Decode(raw []byte) (JSONValue, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return JSONValue{Kind: KindNull}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return JSONValue{}, err
	}
	return fromAny(v), nil
}

func fromAny(v any) JSONValue {
	switch t := v.(type) {
	case nil:
		return JSONValue{Kind: KindNull}
	case bool:
		return JSONValue{Kind: KindBool, Bool: t}
	case json.Number:
		return JSONValue{Kind: KindNumber, Number: t}
	case string:
		return JSONValue{Kind: KindString, String: t}
	case []any:
		arr := make([]JSONValue, len(t))
		for i, e := range t {
			arr[i] = fromAny(e)
		}
		return JSONValue{Kind: KindArray, Array: arr}
	case map[string]any:
		obj := make(map[string]JSONValue, len(t))
		for k, e := range t {
			obj[k] = fromAny(e)
		}
		return JSONValue{Kind: KindObject, Object: obj}
	default:
		return JSONValue{Kind: KindNull}
	}
}

// Encode renders v back to canonical JSON bytes.
func Encode(v JSONValue) ([]byte, error) {
	return json.Marshal(toAny(v))
}

func toAny(v JSONValue) any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.String
	case KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = toAny(e)
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Object))
		for k, e := range v.Object {
			out[k] = toAny(e)
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep, order-sensitive-for-arrays equality.
func Equal(a, b JSONValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Number == b.Number
	case KindString:
		return a.String == b.String
	case KindArray:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !Equal(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Object) != len(b.Object) {
			return false
		}
		for k, av := range a.Object {
			bv, ok := b.Object[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsEmpty reports whether v carries no meaningful content (null, or an
// object/array with no elements), matching spec §4.2's "either side
// empty/null content" LWW fallback trigger.
func IsEmpty(v JSONValue) bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindObject:
		return len(v.Object) == 0
	case KindArray:
		return len(v.Array) == 0
	default:
		return false
	}
}

// elementID extracts a string identifier from an object element with an
// "id" or "_id" field, per spec §4.2's array-merge-by-id rule.
func elementID(v JSONValue) (string, bool) {
	if v.Kind != KindObject {
		return "", false
	}
	for _, key := range []string{"id", "_id"} {
		if field, ok := v.Object[key]; ok {
			return coerceToString(field), true
		}
	}
	return "", false
}

func coerceToString(v JSONValue) string {
	switch v.Kind {
	case KindString:
		return v.String
	case KindNumber:
		return v.Number.String()
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
