package mapping

import (
	"fmt"
	"sort"
	"time"

	"github.com/mark3labs/swaggerclient/internal/spec"
)

// SchemaKind is the closed set of shapes the schema walkers dispatch on.
type SchemaKind int

const (
	// KindAny is a schema without a usable type; values pass through.
	KindAny SchemaKind = iota
	KindScalar
	KindArray
	// KindModel is an object schema inlined from a named definition.
	KindModel
	// KindObject is a free-form object schema.
	KindObject
)

func (k SchemaKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindModel:
		return "model"
	case KindObject:
		return "object"
	}
	return "any"
}

// KindOf classifies a schema node.
func KindOf(schema spec.Node) SchemaKind {
	m := spec.Map(schema)
	if m == nil {
		return KindAny
	}
	switch spec.String(m, "type") {
	case "string", "number", "integer", "boolean":
		return KindScalar
	case "array":
		return KindArray
	case "object":
		if spec.String(m, spec.ModelKey) != "" {
			return KindModel
		}
		return KindObject
	case "":
		if spec.String(m, spec.ModelKey) != "" {
			return KindModel
		}
		if spec.Has(m, "properties") || spec.Has(m, "allOf") || spec.Has(m, "additionalProperties") {
			return KindObject
		}
		if spec.Has(m, "items") {
			return KindArray
		}
	}
	return KindAny
}

// UnmarshalSchemaObject converts a decoded JSON value into a typed value as
// described by schema. A nil value always yields nil.
func UnmarshalSchemaObject(s *spec.Spec, schema spec.Node, raw any) (any, error) {
	u := schemaWalker{spec: s}
	schema = u.expand(schema)
	return u.unmarshal(schema, raw, spec.String(schema, spec.ModelKey))
}

// schemaWalker carries the spec needed to expand recursive model stubs.
type schemaWalker struct {
	spec *spec.Spec
}

// expand replaces recursive stubs with their definition and folds allOf
// members into a single object schema.
func (w schemaWalker) expand(schema spec.Node) spec.Node {
	m := spec.Map(schema)
	if m == nil {
		return schema
	}
	if spec.Bool(m, spec.RecursiveKey) {
		if def, ok := w.spec.Definition(spec.String(m, spec.ModelKey)); ok {
			m = spec.Map(def)
		}
	}
	if spec.Has(m, "allOf") {
		return w.mergeAllOf(m)
	}
	return m
}

func (w schemaWalker) mergeAllOf(m map[string]any) map[string]any {
	merged := make(map[string]any, len(m))
	for k, v := range m {
		if k != "allOf" {
			merged[k] = v
		}
	}
	props := make(map[string]any)
	var required []any
	for _, part := range spec.Slice(m["allOf"]) {
		pm := spec.Map(w.expand(part))
		for name, ps := range spec.Map(pm["properties"]) {
			props[name] = ps
		}
		required = append(required, spec.Slice(pm["required"])...)
		if _, ok := merged["additionalProperties"]; !ok {
			if ap, ok := pm["additionalProperties"]; ok {
				merged["additionalProperties"] = ap
			}
		}
	}
	for name, ps := range spec.Map(m["properties"]) {
		props[name] = ps
	}
	required = append(required, spec.Slice(m["required"])...)
	merged["properties"] = props
	merged["required"] = required
	if spec.String(merged, "type") == "" {
		merged["type"] = "object"
	}
	return merged
}

func (w schemaWalker) unmarshal(schema spec.Node, raw any, path string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	schema = w.expand(schema)
	switch KindOf(schema) {
	case KindScalar:
		return unmarshalPrimitive(schema, raw, path)
	case KindArray:
		return w.unmarshalArray(schema, raw, path)
	case KindModel:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, typeMismatch("unmarshal", path, "object", raw)
		}
		m := NewModel(spec.String(schema, spec.ModelKey))
		for name := range spec.Map(spec.Map(schema)["properties"]) {
			m.Properties[name] = nil
		}
		if err := w.unmarshalProperties(schema, obj, path, m.Properties); err != nil {
			return nil, err
		}
		return m, nil
	case KindObject:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, typeMismatch("unmarshal", path, "object", raw)
		}
		out := make(map[string]any, len(obj))
		if err := w.unmarshalProperties(schema, obj, path, out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return raw, nil
}

func (w schemaWalker) unmarshalArray(schema spec.Node, raw any, path string) (any, error) {
	seq, ok := raw.([]any)
	if !ok {
		return nil, typeMismatch("unmarshal", path, "array", raw)
	}
	items := spec.Map(schema)["items"]
	out := make([]any, 0, len(seq))
	for i, elem := range seq {
		v, err := w.unmarshal(items, elem, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// unmarshalProperties fills out from obj: declared properties against their
// schema, others against additionalProperties unless it is false.
func (w schemaWalker) unmarshalProperties(schema spec.Node, obj map[string]any, path string, out map[string]any) error {
	m := spec.Map(schema)
	for _, name := range spec.Strings(m, "required") {
		if _, ok := obj[name]; !ok {
			return &SchemaError{Op: "unmarshal", Path: joinPath(path, name), Message: "required property is missing"}
		}
	}

	props := spec.Map(m["properties"])
	additional, hasAdditional := m["additionalProperties"]

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		propSchema, declared := props[k]
		if !declared {
			if hasAdditional {
				if allowed, isBool := additional.(bool); isBool && !allowed {
					continue
				}
				propSchema = additional
			}
		}
		v, err := w.unmarshal(propSchema, obj[k], joinPath(path, k))
		if err != nil {
			return err
		}
		out[k] = v
	}
	return nil
}

func unmarshalPrimitive(schema spec.Node, raw any, path string) (any, error) {
	m := spec.Map(schema)
	if enum := spec.Slice(m["enum"]); len(enum) > 0 && !inEnum(enum, raw) {
		return nil, &SchemaError{Op: "unmarshal", Path: path, Message: fmt.Sprintf("value %v is not one of %v", raw, enum)}
	}

	typ := spec.String(m, "type")
	switch typ {
	case "integer":
		n, ok := toInt64(raw)
		if !ok {
			return nil, typeMismatch("unmarshal", path, typ, raw)
		}
		return n, nil
	case "number":
		f, ok := toFloat64(raw)
		if !ok {
			return nil, typeMismatch("unmarshal", path, typ, raw)
		}
		return f, nil
	case "boolean":
		b, ok := raw.(bool)
		if !ok {
			return nil, typeMismatch("unmarshal", path, typ, raw)
		}
		return b, nil
	default:
		str, ok := raw.(string)
		if !ok {
			return nil, typeMismatch("unmarshal", path, typ, raw)
		}
		switch spec.String(m, "format") {
		case "date-time":
			t, err := time.Parse(time.RFC3339Nano, str)
			if err != nil {
				return nil, &SchemaError{Op: "unmarshal", Path: path, Message: "invalid date-time", Cause: err}
			}
			return t, nil
		case "date":
			t, err := time.Parse(dateLayout, str)
			if err != nil {
				return nil, &SchemaError{Op: "unmarshal", Path: path, Message: "invalid date", Cause: err}
			}
			return t, nil
		}
		return str, nil
	}
}

func inEnum(enum []any, v any) bool {
	want := fmt.Sprint(v)
	for _, e := range enum {
		if fmt.Sprint(e) == want {
			return true
		}
	}
	return false
}

func typeMismatch(op, path, want string, got any) error {
	return &SchemaError{Op: op, Path: path, Message: fmt.Sprintf("expected %s, got %T (%v)", want, got, got)}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func indexPath(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}
