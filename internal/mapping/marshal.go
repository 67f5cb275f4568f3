package mapping

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/mark3labs/swaggerclient/internal/spec"
)

// MarshalSchemaObject converts a domain value into a JSON-ready tree as
// described by schema. It mirrors UnmarshalSchemaObject: models become
// objects, time.Time becomes a string per format, slices become []any.
func MarshalSchemaObject(s *spec.Spec, schema spec.Node, value any) (any, error) {
	w := schemaWalker{spec: s}
	schema = w.expand(schema)
	return w.marshal(schema, value, spec.String(schema, spec.ModelKey))
}

func (w schemaWalker) marshal(schema spec.Node, value any, path string) (any, error) {
	if isNil(value) {
		return nil, nil
	}
	schema = w.expand(schema)
	switch KindOf(schema) {
	case KindScalar:
		return marshalPrimitive(schema, value, path)
	case KindArray:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, typeMismatch("marshal", path, "array", value)
		}
		items := spec.Map(schema)["items"]
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := w.marshal(items, rv.Index(i).Interface(), indexPath(path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case KindModel, KindObject:
		obj, err := objectFields(value)
		if err != nil {
			return nil, typeMismatch("marshal", path, "object", value)
		}
		return w.marshalProperties(schema, obj, path)
	}
	return value, nil
}

func (w schemaWalker) marshalProperties(schema spec.Node, obj map[string]any, path string) (map[string]any, error) {
	m := spec.Map(schema)
	for _, name := range spec.Strings(m, "required") {
		if isNil(obj[name]) {
			return nil, &SchemaError{Op: "marshal", Path: joinPath(path, name), Message: "required property is missing"}
		}
	}

	props := spec.Map(m["properties"])
	additional, hasAdditional := m["additionalProperties"]

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(obj))
	for _, k := range keys {
		if isNil(obj[k]) {
			continue
		}
		propSchema, declared := props[k]
		if !declared && hasAdditional {
			if allowed, isBool := additional.(bool); isBool && !allowed {
				continue
			}
			propSchema = additional
		}
		v, err := w.marshal(propSchema, obj[k], joinPath(path, k))
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// objectFields returns the fields of a model, a string-keyed map, or any
// other value that encodes to a JSON object.
func objectFields(value any) (map[string]any, error) {
	switch v := value.(type) {
	case *Model:
		return v.Properties, nil
	case Model:
		return v.Properties, nil
	case map[string]any:
		return v, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	// Structs and other encodable values go through their JSON form.
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%T does not encode to an object", value)
	}
	return out, nil
}

func marshalPrimitive(schema spec.Node, value any, path string) (any, error) {
	typ := spec.String(schema, "type")
	switch typ {
	case "integer":
		n, ok := toInt64(value)
		if !ok {
			return nil, typeMismatch("marshal", path, typ, value)
		}
		return n, nil
	case "number":
		if n, ok := value.(json.Number); ok {
			return n, nil
		}
		f, ok := toFloat64(value)
		if !ok {
			return nil, typeMismatch("marshal", path, typ, value)
		}
		return f, nil
	case "boolean":
		b, ok := value.(bool)
		if !ok {
			return nil, typeMismatch("marshal", path, typ, value)
		}
		return b, nil
	default:
		switch v := value.(type) {
		case string:
			return v, nil
		case time.Time:
			if spec.String(schema, "format") == "date" {
				return v.Format(dateLayout), nil
			}
			return v.Format(time.RFC3339Nano), nil
		case []byte:
			return base64.StdEncoding.EncodeToString(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
		return nil, typeMismatch("marshal", path, "string", value)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
