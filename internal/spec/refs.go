package spec

import (
	"fmt"
	"net/url"
	"strings"
)

const definitionsPrefix = "#/definitions/"

// resolver inlines local $ref pointers into a fresh tree. Inlined object
// definitions are tagged with ModelKey so the schema layer can build named
// models from them.
type resolver struct {
	root     map[string]any
	active   map[string]bool // refs currently being inlined
	resolved map[string]Node // finished refs, shared between use sites
}

func newResolver(root map[string]any) *resolver {
	return &resolver{
		root:     root,
		active:   make(map[string]bool),
		resolved: make(map[string]Node),
	}
}

// resolveDocument returns the inlined document and its resolved definitions.
func resolveDocument(root map[string]any) (map[string]any, map[string]Node, error) {
	r := newResolver(root)

	defs := make(map[string]Node)
	for name := range Map(root["definitions"]) {
		d, err := r.resolveRef(definitionsPrefix + escapePointerToken(name))
		if err != nil {
			return nil, nil, err
		}
		defs[name] = d
	}

	out, err := r.resolve(root, "#")
	if err != nil {
		return nil, nil, err
	}
	return Map(out), defs, nil
}

func (r *resolver) resolve(n Node, ptr string) (Node, error) {
	switch val := n.(type) {
	case map[string]any:
		if ref, ok := val["$ref"].(string); ok {
			return r.resolveRef(ref)
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			rv, err := r.resolve(elem, ptr+"/"+escapePointerToken(k))
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			rv, err := r.resolve(elem, fmt.Sprintf("%s/%d", ptr, i))
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return n, nil
	}
}

func (r *resolver) resolveRef(ref string) (Node, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("spec: only local references are supported, got %q", ref), JSONPointer: ref}
	}
	if done, ok := r.resolved[ref]; ok {
		return done, nil
	}
	name, isDefinition := definitionName(ref)
	if r.active[ref] {
		if !isDefinition {
			return nil, &SpecError{Code: ValidationError, Message: fmt.Sprintf("spec: circular reference %q", ref), JSONPointer: ref}
		}
		return map[string]any{"type": "object", ModelKey: name, RecursiveKey: true}, nil
	}

	target, err := lookupPointer(r.root, ref)
	if err != nil {
		return nil, err
	}

	r.active[ref] = true
	out, err := r.resolve(target, ref)
	delete(r.active, ref)
	if err != nil {
		return nil, err
	}

	if isDefinition {
		if m := Map(out); m != nil && isObjectSchema(m) {
			if _, tagged := m[ModelKey]; !tagged {
				m[ModelKey] = name
			}
		}
	}
	r.resolved[ref] = out
	return out, nil
}

func isObjectSchema(m map[string]any) bool {
	if t, _ := m["type"].(string); t == "object" {
		return true
	}
	_, hasProps := m["properties"]
	_, hasAllOf := m["allOf"]
	return hasProps || hasAllOf
}

func definitionName(ref string) (string, bool) {
	if !strings.HasPrefix(ref, definitionsPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(ref, definitionsPrefix)
	if strings.Contains(rest, "/") {
		return "", false
	}
	return unescapePointerToken(rest), true
}

func lookupPointer(root map[string]any, ref string) (Node, error) {
	var cur Node = root
	for _, tok := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		key := unescapePointerToken(tok)
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[key]
			if !ok {
				return nil, &SpecError{Code: ValidationError, Message: fmt.Sprintf("spec: unresolved reference %q", ref), JSONPointer: ref}
			}
			cur = next
		case []any:
			var idx int
			if _, err := fmt.Sscanf(key, "%d", &idx); err != nil || idx < 0 || idx >= len(c) {
				return nil, &SpecError{Code: ValidationError, Message: fmt.Sprintf("spec: unresolved reference %q", ref), JSONPointer: ref}
			}
			cur = c[idx]
		default:
			return nil, &SpecError{Code: ValidationError, Message: fmt.Sprintf("spec: unresolved reference %q", ref), JSONPointer: ref}
		}
	}
	return cur, nil
}

func escapePointerToken(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}

func unescapePointerToken(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		s = u
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
}
