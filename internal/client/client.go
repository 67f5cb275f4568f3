// Package client exposes every operation of a spec, grouped into resources
// by tag, behind a single invocation entry point.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mark3labs/swaggerclient/internal/mapping"
	"github.com/mark3labs/swaggerclient/internal/metrics"
	"github.com/mark3labs/swaggerclient/internal/spec"
	"github.com/mark3labs/swaggerclient/internal/transport"
)

// DefaultRequestIDHeader carries the per-invocation id.
const DefaultRequestIDHeader = "X-Request-ID"

// Client holds the operations of one spec and the collaborators used to
// invoke them. It is safe for concurrent use.
type Client struct {
	spec       *spec.Spec
	http       mapping.HTTPClient
	logger     *slog.Logger
	metrics    *metrics.Collector
	idHeader   string
	filters    []spec.FilterOption
	operations map[string]*mapping.Operation
	resources  map[string]*Resource
}

// Resource is the set of operations sharing a first tag.
type Resource struct {
	Name       string
	operations map[string]*mapping.Operation
}

// Operation returns the resource's operation with the given id.
func (r *Resource) Operation(id string) (*mapping.Operation, bool) {
	op, ok := r.operations[id]
	return op, ok
}

// OperationIDs returns the sorted ids of the resource's operations.
func (r *Resource) OperationIDs() []string { return sortedKeys(r.operations) }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport. The default is a resty client.
func WithHTTPClient(hc mapping.HTTPClient) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger handed to every operation.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records every invocation on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRequestIDHeader changes the header carrying the invocation id. An
// empty name disables request ids.
func WithRequestIDHeader(name string) Option {
	return func(c *Client) { c.idHeader = name }
}

// WithOperationFilters limits the operations built from the spec.
func WithOperationFilters(opts ...spec.FilterOption) Option {
	return func(c *Client) { c.filters = append(c.filters, opts...) }
}

// New builds every operation of s. Any parameter inconsistency in the spec
// fails the whole build.
func New(s *spec.Spec, opts ...Option) (*Client, error) {
	c := &Client{
		spec:       s,
		logger:     slog.Default(),
		idHeader:   DefaultRequestIDHeader,
		operations: make(map[string]*mapping.Operation),
		resources:  make(map[string]*Resource),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = transport.NewRestyClient(transport.WithRestyLogger(c.logger))
	}

	for _, ref := range s.OperationRefs(c.filters...) {
		op, err := mapping.NewOperation(s, ref.Path, string(ref.Method), spec.Map(ref.Node), mapping.WithLogger(c.logger))
		if err != nil {
			return nil, err
		}
		id := op.OperationID()
		if prev, dup := c.operations[id]; dup {
			return nil, &mapping.SpecValidationError{
				Pointer: "#/paths",
				Message: fmt.Sprintf("operation id %s is used by %s %s and %s %s", id,
					prev.HTTPMethod, prev.PathName, op.HTTPMethod, op.PathName),
			}
		}
		c.operations[id] = op

		tag := op.Tags()[0]
		res, ok := c.resources[tag]
		if !ok {
			res = &Resource{Name: tag, operations: make(map[string]*mapping.Operation)}
			c.resources[tag] = res
		}
		res.operations[id] = op
	}
	c.logger.Debug("client built", "title", s.Title(), "api_url", s.APIURL,
		"operations", len(c.operations), "resources", len(c.resources))
	return c, nil
}

// Spec returns the spec the client was built from.
func (c *Client) Spec() *spec.Spec { return c.spec }

// Resource returns the resource for a tag.
func (c *Client) Resource(tag string) (*Resource, bool) {
	r, ok := c.resources[tag]
	return r, ok
}

// Resources returns the sorted resource names.
func (c *Client) Resources() []string {
	names := make([]string, 0, len(c.resources))
	for name := range c.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operation returns the operation with the given id.
func (c *Client) Operation(id string) (*mapping.Operation, bool) {
	op, ok := c.operations[id]
	return op, ok
}

// Operations returns every operation sorted by id.
func (c *Client) Operations() []*mapping.Operation {
	out := make([]*mapping.Operation, 0, len(c.operations))
	for _, id := range sortedKeys(c.operations) {
		out = append(out, c.operations[id])
	}
	return out
}

// Call invokes an operation by id. Argument errors are returned before any
// request is sent; everything after that is reported by the Future.
func (c *Client) Call(ctx context.Context, operationID string, args mapping.Args) (*mapping.Future, error) {
	op, ok := c.operations[operationID]
	if !ok {
		return nil, &UnknownOperationError{OperationID: operationID}
	}

	args, requestID := c.withRequestID(args)
	started := time.Now()
	future, err := op.Call(ctx, c.http, args)
	if err != nil {
		c.metrics.Observe(operationID, 0, time.Since(started), err)
		return nil, err
	}
	c.logger.DebugContext(ctx, "request sent", "operation_id", operationID, "request_id", requestID)

	if c.metrics != nil {
		go func() {
			status, _, err := future.Wait()
			c.metrics.Observe(operationID, status, time.Since(started), err)
		}()
	}
	return future, nil
}

// withRequestID puts a fresh id header into the request options unless the
// caller already supplied one. Malformed options are passed through for
// ConstructRequest to reject.
func (c *Client) withRequestID(args mapping.Args) (mapping.Args, string) {
	if c.idHeader == "" {
		return args, ""
	}
	opts, rest, err := mapping.SplitRequestOptions(args)
	if err != nil {
		return args, ""
	}
	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(c.idHeader) {
			return args, v
		}
		headers[k] = v
	}
	id := uuid.NewString()
	headers[c.idHeader] = id
	opts.Headers = headers

	out := make(mapping.Args, len(rest)+1)
	for k, v := range rest {
		out[k] = v
	}
	out[mapping.RequestOptionsKey] = opts
	return out, id
}

func sortedKeys(m map[string]*mapping.Operation) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
