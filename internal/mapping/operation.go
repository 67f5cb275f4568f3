package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/swaggerclient/internal/spec"
)

// Operation is one (path, method) pair of a spec with its merged parameter
// set. It is immutable after NewOperation and safe for concurrent calls.
type Operation struct {
	Spec       *spec.Spec
	PathName   string
	HTTPMethod string
	OpSpec     map[string]any
	// Params maps parameter names to their models.
	Params map[string]*Param

	operationID string
	logger      *slog.Logger
}

// OperationOption configures an Operation at construction.
type OperationOption func(*Operation)

// WithLogger sets the logger used when the operation is invoked.
func WithLogger(l *slog.Logger) OperationOption {
	return func(op *Operation) {
		if l != nil {
			op.logger = l
		}
	}
}

// NewOperation builds an Operation and its parameter set from the operation
// subtree found at paths[pathName][httpMethod].
func NewOperation(s *spec.Spec, pathName, httpMethod string, opSpec map[string]any, opts ...OperationOption) (*Operation, error) {
	op := &Operation{
		Spec:       s,
		PathName:   pathName,
		HTTPMethod: strings.ToLower(httpMethod),
		OpSpec:     opSpec,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(op)
	}
	op.operationID = deriveOperationID(op.HTTPMethod, pathName, opSpec)
	if err := op.buildParams(); err != nil {
		return nil, err
	}
	return op, nil
}

// deriveOperationID returns the declared operationId, or one built from the
// method and path: get /pet/{petId} -> get_pet_petId.
func deriveOperationID(method, path string, opSpec map[string]any) string {
	if id, _ := opSpec["operationId"].(string); id != "" {
		return id
	}
	id := strings.NewReplacer("/", "_", "{", "_", "}", "_").Replace(method + "_" + path)
	for strings.Contains(id, "__") {
		id = strings.ReplaceAll(id, "__", "_")
	}
	return strings.Trim(id, "_")
}

// buildParams merges path-level parameters with operation-level ones; an
// operation-level parameter replaces a path-level one of the same name.
func (op *Operation) buildParams() error {
	pathPtr := "#/paths/" + strings.NewReplacer("~", "~0", "/", "~1").Replace(op.PathName)
	pathItem, ok := op.Spec.PathItem(op.PathName)
	if !ok {
		return &SpecValidationError{Pointer: pathPtr, Message: fmt.Sprintf("%s references a path missing from the spec", op.OperationID())}
	}

	params := make(map[string]*Param)
	add := func(list []any, ptr string) error {
		for i, ps := range list {
			p, err := NewParam(op.Spec, ps)
			if err != nil {
				if sve, ok := err.(*SpecValidationError); ok && sve.Pointer == "" {
					sve.Pointer = fmt.Sprintf("%s/%d", ptr, i)
				}
				return err
			}
			if prev, ok := params[p.Name]; ok && (prev.In != p.In || prev.Type() != p.Type()) {
				return &SpecValidationError{
					Pointer: fmt.Sprintf("%s/%d", ptr, i),
					Message: fmt.Sprintf("parameter %s is declared as %s %s and as %s %s", p.Name, prev.In, prev.Type(), p.In, p.Type()),
				}
			}
			params[p.Name] = p
		}
		return nil
	}
	if err := add(spec.Slice(pathItem["parameters"]), pathPtr+"/parameters"); err != nil {
		return err
	}
	if err := add(spec.Slice(op.OpSpec["parameters"]), pathPtr+"/"+op.HTTPMethod+"/parameters"); err != nil {
		return err
	}

	var bodies, forms []string
	for name, p := range params {
		switch p.In {
		case InBody:
			bodies = append(bodies, name)
		case InFormData:
			forms = append(forms, name)
		}
	}
	sort.Strings(bodies)
	if len(bodies) > 1 {
		return &SpecValidationError{Pointer: pathPtr + "/" + op.HTTPMethod, Message: fmt.Sprintf("multiple body parameters: %s", strings.Join(bodies, ", "))}
	}
	if len(bodies) > 0 && len(forms) > 0 {
		return &SpecValidationError{Pointer: pathPtr + "/" + op.HTTPMethod, Message: "body and formData parameters cannot be mixed"}
	}

	op.Params = params
	return nil
}

// OperationID returns the declared or derived operation id.
func (op *Operation) OperationID() string { return op.operationID }

// Tags returns the operation's tags, or "default" when it declares none.
func (op *Operation) Tags() []string {
	ref := spec.OperationRef{Path: op.PathName, Method: spec.HttpMethod(op.HTTPMethod), Node: op.OpSpec}
	if tags := ref.Tags(); len(tags) > 0 {
		return tags
	}
	return []string{"default"}
}

// Consumes returns the operation's request MIME types, falling back to the
// spec-level default.
func (op *Operation) Consumes() []string {
	if c := spec.Strings(op.OpSpec, "consumes"); len(c) > 0 {
		return c
	}
	return op.Spec.Consumes()
}

// Produces returns the operation's response MIME types, falling back to the
// spec-level default.
func (op *Operation) Produces() []string {
	if p := spec.Strings(op.OpSpec, "produces"); len(p) > 0 {
		return p
	}
	return op.Spec.Produces()
}

func (op *Operation) String() string { return fmt.Sprintf("Operation(%s)", op.operationID) }

// ConstructRequest builds the request for one invocation.
func (op *Operation) ConstructRequest(args Args) (*Request, error) {
	opts, rest, err := SplitRequestOptions(args)
	if err != nil {
		return nil, &CallArgumentError{OperationID: op.operationID, Param: RequestOptionsKey, Reason: InvalidValue, Cause: err}
	}

	req := newRequest(op.HTTPMethod, op.Spec.APIURL+op.PathName)
	for k, v := range opts.Headers {
		req.Headers.Set(k, v)
	}
	req.Timeout = opts.Timeout

	if err := op.ConstructParams(req, rest); err != nil {
		return nil, err
	}
	return req, nil
}

// ConstructParams validates args against the parameter set and marshals them
// into req. Supplied arguments are consumed first; the remaining parameters
// are then checked for required-ness and defaults. req is left untouched
// when an error is returned.
func (op *Operation) ConstructParams(req *Request, args Args) error {
	current := make(map[string]*Param, len(op.Params))
	for name, p := range op.Params {
		current[name] = p
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	work := req.clone()
	for _, name := range names {
		p, ok := current[name]
		if !ok {
			return &CallArgumentError{OperationID: op.operationID, Param: name, Reason: UnknownParameter}
		}
		delete(current, name)
		if err := MarshalParam(p, args[name], work); err != nil {
			return op.argumentError(p, err)
		}
	}

	remaining := make([]string, 0, len(current))
	for name := range current {
		remaining = append(remaining, name)
	}
	sort.Strings(remaining)
	for _, name := range remaining {
		p := current[name]
		if p.Required {
			return &CallArgumentError{OperationID: op.operationID, Param: name, Reason: MissingParameter}
		}
		if p.HasDefault() {
			if err := MarshalParam(p, nil, work); err != nil {
				return op.argumentError(p, err)
			}
		}
	}

	*req = *work
	return nil
}

func (op *Operation) argumentError(p *Param, err error) error {
	reason := InvalidValue
	if p.Required {
		if se, ok := err.(*SchemaError); ok && se.Path == p.Name && se.Message == "required parameter has no value" {
			reason = MissingParameter
			err = nil
		}
	}
	return &CallArgumentError{OperationID: op.operationID, Param: p.Name, Reason: reason, Cause: err}
}

// Call constructs the request synchronously, so argument errors surface
// before any I/O, then hands it to client and returns the pending result.
func (op *Operation) Call(ctx context.Context, client HTTPClient, args Args) (*Future, error) {
	op.logger.DebugContext(ctx, "invoking operation", "operation_id", op.operationID, "args", argNames(args))
	req, err := op.ConstructRequest(args)
	if err != nil {
		return nil, err
	}
	return NewFuture(ctx, client, req, func(resp Response) (int, any, error) {
		return HandleResponse(resp, op)
	}), nil
}

func argNames(args Args) []string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
