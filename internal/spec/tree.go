package spec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Node is one element of a decoded spec document: a mapping
// (map[string]any), a sequence ([]any) or a scalar.
type Node = any

// Map returns n as a mapping, or nil when it is not one.
func Map(n Node) map[string]any {
	m, _ := n.(map[string]any)
	return m
}

// Slice returns n as a sequence, or nil when it is not one.
func Slice(n Node) []any {
	s, _ := n.([]any)
	return s
}

// String returns the string at key in a mapping node.
func String(n Node, key string) string {
	s, _ := Map(n)[key].(string)
	return strings.TrimSpace(s)
}

// Bool returns the bool at key in a mapping node.
func Bool(n Node, key string) bool {
	b, _ := Map(n)[key].(bool)
	return b
}

// Has reports whether a mapping node declares key, even with a null value.
func Has(n Node, key string) bool {
	_, ok := Map(n)[key]
	return ok
}

// Strings returns the string elements of the sequence at key.
func Strings(n Node, key string) []string {
	seq := Slice(Map(n)[key])
	if len(seq) == 0 {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, v := range seq {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Lookup walks a mapping tree by keys and returns the node found, if any.
func Lookup(n Node, keys ...string) (Node, bool) {
	cur := n
	for _, k := range keys {
		m := Map(cur)
		if m == nil {
			return nil, false
		}
		next, ok := m[k]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// normalizeNode converts a YAML- or JSON-decoded value into the canonical
// tree shape: every mapping becomes map[string]any (YAML yields map[any]any
// for unquoted keys such as `200:`) and every number becomes json.Number.
func normalizeNode(v any) (Node, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			nv, err := normalizeNode(elem)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			nv, err := normalizeNode(elem)
			if err != nil {
				return nil, err
			}
			out[keyString(k)] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			nv, err := normalizeNode(elem)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case int:
		return json.Number(strconv.Itoa(val)), nil
	case int64:
		return json.Number(strconv.FormatInt(val, 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(val, 10)), nil
	case float64:
		return json.Number(strconv.FormatFloat(val, 'g', -1, 64)), nil
	case time.Time:
		// yaml timestamps; the schema layer parses them back per format.
		return val.Format(time.RFC3339Nano), nil
	case nil, string, bool, json.Number:
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported spec value of type %T", v)
	}
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}
