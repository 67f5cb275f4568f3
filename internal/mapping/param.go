package mapping

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/swaggerclient/internal/spec"
)

// Location is where a parameter's value goes in an HTTP request.
type Location string

const (
	InPath     Location = "path"
	InQuery    Location = "query"
	InHeader   Location = "header"
	InBody     Location = "body"
	InFormData Location = "formData"
)

func parseLocation(s string) (Location, bool) {
	switch l := Location(s); l {
	case InPath, InQuery, InHeader, InBody, InFormData:
		return l, true
	}
	return "", false
}

// Param is one parameter of an Operation. It is immutable after NewParam.
type Param struct {
	Name     string
	In       Location
	Required bool
	// Schema drives marshaling: the `schema` subtree for body parameters,
	// the parameter itself (type/format/items) otherwise.
	Schema           spec.Node
	CollectionFormat string

	spec         *spec.Spec
	hasDefault   bool
	defaultValue any
}

// NewParam builds a Param from its spec subtree.
func NewParam(s *spec.Spec, paramSpec spec.Node) (*Param, error) {
	m := spec.Map(paramSpec)
	if m == nil {
		return nil, &SpecValidationError{Message: fmt.Sprintf("parameter must be a mapping, got %T", paramSpec)}
	}
	name := spec.String(m, "name")
	if name == "" {
		return nil, &SpecValidationError{Message: "parameter is missing a name"}
	}
	in, ok := parseLocation(spec.String(m, "in"))
	if !ok {
		return nil, &SpecValidationError{Message: fmt.Sprintf("parameter %s has unknown location %q", name, spec.String(m, "in"))}
	}

	p := &Param{
		Name:             name,
		In:               in,
		Required:         spec.Bool(m, "required"),
		Schema:           m,
		CollectionFormat: spec.String(m, "collectionFormat"),
		spec:             s,
	}
	if in == InBody {
		schema, ok := m["schema"]
		if !ok {
			return nil, &SpecValidationError{Message: fmt.Sprintf("body parameter %s has no schema", name)}
		}
		p.Schema = schema
	}
	if v, ok := m["default"]; ok {
		p.hasDefault, p.defaultValue = true, v
	} else if in == InBody && spec.Has(p.Schema, "default") {
		p.hasDefault, p.defaultValue = true, spec.Map(p.Schema)["default"]
	}
	return p, nil
}

// HasDefault reports whether the spec declares a default value.
func (p *Param) HasDefault() bool { return p.hasDefault }

// Default returns the declared default value, nil when there is none.
func (p *Param) Default() any { return p.defaultValue }

// Type returns the declared schema type.
func (p *Param) Type() string { return spec.String(p.Schema, "type") }

// Format returns the declared schema format.
func (p *Param) Format() string { return spec.String(p.Schema, "format") }

// MarshalParam writes value into req at p's location. A nil value falls back
// to the declared default; without one the parameter is left out.
func MarshalParam(p *Param, value any, req *Request) error {
	if value == nil && p.HasDefault() {
		value = p.Default()
	}
	if value == nil {
		if p.Required {
			return &SchemaError{Op: "marshal", Path: p.Name, Message: "required parameter has no value"}
		}
		return nil
	}

	switch p.In {
	case InPath:
		s, err := joinedString(p.Schema, p.CollectionFormat, value, p.Name)
		if err != nil {
			return err
		}
		req.URL = strings.ReplaceAll(req.URL, "{"+p.Name+"}", url.PathEscape(s))
	case InQuery:
		vals, err := stringValues(p.Schema, p.CollectionFormat, value, p.Name)
		if err != nil {
			return err
		}
		for _, v := range vals {
			req.Params.Add(p.Name, v)
		}
	case InHeader:
		s, err := joinedString(p.Schema, p.CollectionFormat, value, p.Name)
		if err != nil {
			return err
		}
		req.Headers.Set(p.Name, s)
	case InBody:
		body, err := MarshalSchemaObject(p.spec, p.Schema, value)
		if err != nil {
			return err
		}
		req.Body = body
	case InFormData:
		if p.Type() == "file" {
			f, err := fileValue(p.Name, value)
			if err != nil {
				return err
			}
			req.Files[p.Name] = f
			return nil
		}
		vals, err := stringValues(p.Schema, p.CollectionFormat, value, p.Name)
		if err != nil {
			return err
		}
		for _, v := range vals {
			req.Form.Add(p.Name, v)
		}
	}
	return nil
}

func fileValue(name string, value any) (File, error) {
	switch v := value.(type) {
	case File:
		if v.Name == "" {
			v.Name = name
		}
		return v, nil
	case []byte:
		return File{Name: name, Reader: strings.NewReader(string(v))}, nil
	case io.Reader:
		return File{Name: name, Reader: v}, nil
	}
	return File{}, &SchemaError{Op: "marshal", Path: name, Message: fmt.Sprintf("file parameter needs an io.Reader or []byte, got %T", value)}
}

// collectionSeparator maps a Swagger collectionFormat to its delimiter.
// "multi" has no delimiter; the key is repeated instead.
func collectionSeparator(format string) string {
	switch format {
	case "ssv":
		return " "
	case "tsv":
		return "\t"
	case "pipes":
		return "|"
	default:
		return ","
	}
}

// stringValues renders value as one or more strings; only "multi" arrays
// yield more than one.
func stringValues(schema spec.Node, collectionFormat string, value any, path string) ([]string, error) {
	if spec.String(schema, "type") == "array" && collectionFormat == "multi" {
		items, err := arrayStrings(schema, value, path)
		if err != nil {
			return nil, err
		}
		return items, nil
	}
	s, err := joinedString(schema, collectionFormat, value, path)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func joinedString(schema spec.Node, collectionFormat string, value any, path string) (string, error) {
	if spec.String(schema, "type") != "array" {
		return scalarString(schema, value, path)
	}
	items, err := arrayStrings(schema, value, path)
	if err != nil {
		return "", err
	}
	return strings.Join(items, collectionSeparator(collectionFormat)), nil
}

func arrayStrings(schema spec.Node, value any, path string) ([]string, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &SchemaError{Op: "marshal", Path: path, Message: fmt.Sprintf("expected array, got %T", value)}
	}
	items := spec.Map(schema)["items"]
	nestedFormat := spec.String(items, "collectionFormat")
	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, err := joinedString(items, nestedFormat, rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// scalarString renders a scalar per the declared type and format.
func scalarString(schema spec.Node, value any, path string) (string, error) {
	typ := spec.String(schema, "type")
	format := spec.String(schema, "format")
	mismatch := func() error {
		return &SchemaError{Op: "marshal", Path: path, Message: fmt.Sprintf("expected %s, got %T (%v)", typ, value, value)}
	}

	switch typ {
	case "integer":
		if str, ok := value.(string); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64); err == nil {
				return strconv.FormatInt(n, 10), nil
			}
			return "", mismatch()
		}
		n, ok := toInt64(value)
		if !ok {
			return "", mismatch()
		}
		return strconv.FormatInt(n, 10), nil
	case "number":
		if str, ok := value.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				return strconv.FormatFloat(f, 'f', -1, 64), nil
			}
			return "", mismatch()
		}
		f, ok := toFloat64(value)
		if !ok {
			return "", mismatch()
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case "boolean":
		switch v := value.(type) {
		case bool:
			return strconv.FormatBool(v), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return "", mismatch()
			}
			return strconv.FormatBool(b), nil
		}
		return "", mismatch()
	case "string", "":
		return stringForm(format, value)
	}
	return "", &SchemaError{Op: "marshal", Path: path, Message: fmt.Sprintf("type %q cannot be sent as a scalar value", typ)}
}

func stringForm(format string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case time.Time:
		if format == "date" {
			return v.Format(dateLayout), nil
		}
		return v.Format(time.RFC3339Nano), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	if n, ok := toInt64(value); ok {
		return strconv.FormatInt(n, 10), nil
	}
	if f, ok := toFloat64(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return fmt.Sprint(value), nil
}

const dateLayout = "2006-01-02"

// toInt64 accepts Go integers, json.Number and integral floats.
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(v)
	case float32:
		return floatToInt(float64(v))
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// toFloat64 accepts Go numbers and json.Number.
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}
