package spec

import (
	"sort"
	"strings"
)

// HttpMethod is a lower-case HTTP method as it appears under a Swagger path item.
type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
)

// Methods lists the operation keys of a Swagger 2.0 path item in a stable order.
var Methods = []HttpMethod{GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH}

// Model extension keys written by the reference resolver.
const (
	// ModelKey names the definition an inlined object schema came from.
	ModelKey = "x-model"
	// RecursiveKey marks a shallow stub left where a definition refers back
	// to itself; the full schema is available through Spec.Definition.
	RecursiveKey = "x-model-recursive"
)

// Spec is a loaded, reference-resolved Swagger 2.0 document. It is read-only
// once built and safe for concurrent use.
type Spec struct {
	// Doc is the resolved document tree; no $ref nodes remain except
	// recursive model stubs.
	Doc map[string]any
	// APIURL is the base URL requests are sent to (scheme://host/basePath).
	APIURL string
	// Origin is the file path or URL the document came from, if any.
	Origin string

	definitions map[string]Node
}

// Paths returns the document's path table.
func (s *Spec) Paths() map[string]any {
	if s == nil {
		return nil
	}
	return Map(s.Doc["paths"])
}

// PathItem returns the path item for a path template.
func (s *Spec) PathItem(path string) (map[string]any, bool) {
	item, ok := s.Paths()[path]
	if !ok {
		return nil, false
	}
	return Map(item), true
}

// Definition returns the resolved schema of a named definition.
func (s *Spec) Definition(name string) (Node, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.definitions[name]
	return d, ok
}

// DefinitionNames returns the sorted definition names.
func (s *Spec) DefinitionNames() []string {
	names := make([]string, 0, len(s.definitions))
	for name := range s.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Consumes returns the document-level default request MIME types.
func (s *Spec) Consumes() []string { return Strings(s.Doc, "consumes") }

// Produces returns the document-level default response MIME types.
func (s *Spec) Produces() []string { return Strings(s.Doc, "produces") }

// Title returns info.title.
func (s *Spec) Title() string {
	info, _ := Lookup(s.Doc, "info")
	return String(info, "title")
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
