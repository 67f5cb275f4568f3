package client

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/swaggerclient/internal/mapping"
	"github.com/mark3labs/swaggerclient/internal/metrics"
	"github.com/mark3labs/swaggerclient/internal/spec"
	"github.com/mark3labs/swaggerclient/internal/transport"
)

const petstore = `swagger: "2.0"
info: {title: Petstore, version: "1.0"}
paths:
  /pet/{petId}:
    get:
      tags: [pet]
      operationId: getPetById
      parameters:
        - {name: petId, in: path, required: true, type: integer}
      responses:
        200:
          description: ok
          schema: {$ref: '#/definitions/Pet'}
        404: {description: missing}
    delete:
      tags: [pet]
      parameters:
        - {name: petId, in: path, required: true, type: integer}
      responses:
        204: {description: gone}
  /store/inventory:
    get:
      tags: [store, pet]
      operationId: getInventory
      responses:
        200:
          description: ok
          schema: {type: object, additionalProperties: {type: integer}}
  /health:
    get:
      operationId: health
      responses:
        200: {description: ok}
definitions:
  Pet:
    type: object
    properties:
      id: {type: integer}
      name: {type: string}
`

type recorder struct {
	mu      sync.Mutex
	headers []http.Header
}

func (r *recorder) last() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers[len(r.headers)-1]
}

func newPetServer(t *testing.T) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/pet/", func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/pet/1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 1, "name": "doggie"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/store/inventory", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"available": 3})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, rec
}

func newClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	s, err := spec.FromBytes([]byte(petstore), "", spec.WithBaseURL(baseURL))
	require.NoError(t, err)
	c, err := New(s, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_ResourcesAndOperations(t *testing.T) {
	c := newClient(t, "http://localhost")

	assert.Equal(t, []string{"default", "pet", "store"}, c.Resources())

	pet, ok := c.Resource("pet")
	require.True(t, ok)
	assert.Equal(t, []string{"delete_pet_petId", "getPetById"}, pet.OperationIDs())
	_, ok = pet.Operation("getInventory")
	assert.False(t, ok, "operations are grouped by their first tag only")

	store, ok := c.Resource("store")
	require.True(t, ok)
	_, ok = store.Operation("getInventory")
	assert.True(t, ok)

	var ids []string
	for _, op := range c.Operations() {
		ids = append(ids, op.OperationID())
	}
	assert.Equal(t, []string{"delete_pet_petId", "getInventory", "getPetById", "health"}, ids)

	op, ok := c.Operation("health")
	require.True(t, ok)
	assert.Equal(t, "/health", op.PathName)
}

func TestNew_DuplicateOperationID(t *testing.T) {
	doc := map[string]any{
		"swagger": "2.0",
		"info":    map[string]any{"title": "dup", "version": "1"},
		"paths": map[string]any{
			"/a": map[string]any{"get": map[string]any{"operationId": "same", "responses": map[string]any{"200": map[string]any{"description": "ok"}}}},
			"/b": map[string]any{"get": map[string]any{"operationId": "same", "responses": map[string]any{"200": map[string]any{"description": "ok"}}}},
		},
	}
	s, err := spec.FromMap(doc)
	require.NoError(t, err)

	_, err = New(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, mapping.ErrSpecValidation)
	assert.Contains(t, err.Error(), "operation id same is used by get /a and get /b")
}

func TestNew_InvalidParameterFailsBuild(t *testing.T) {
	doc := map[string]any{
		"swagger": "2.0",
		"info":    map[string]any{"title": "bad", "version": "1"},
		"paths": map[string]any{
			"/a": map[string]any{"get": map[string]any{
				"parameters": []any{map[string]any{"name": "b", "in": "body"}},
				"responses":  map[string]any{"200": map[string]any{"description": "ok"}},
			}},
		},
	}
	s, err := spec.FromMap(doc)
	require.NoError(t, err)
	_, err = New(s)
	assert.ErrorIs(t, err, mapping.ErrSpecValidation)
}

func TestNew_OperationFilters(t *testing.T) {
	c := newClient(t, "http://localhost", WithOperationFilters(spec.WithIncludeTags([]string{"store"})))
	ops := c.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, "getInventory", ops[0].OperationID())
}

func TestCall_BothTransports(t *testing.T) {
	srv, _ := newPetServer(t)
	transports := map[string]mapping.HTTPClient{
		"resty": transport.NewRestyClient(),
		"std":   transport.NewStdClient(srv.Client()),
	}
	for name, hc := range transports {
		t.Run(name, func(t *testing.T) {
			c := newClient(t, srv.URL, WithHTTPClient(hc))

			future, err := c.Call(context.Background(), "getPetById", mapping.Args{"petId": 1})
			require.NoError(t, err)
			status, value, err := future.Result(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 200, status)
			pet := value.(*mapping.Model)
			assert.Equal(t, "doggie", pet.Properties["name"])

			future, err = c.Call(context.Background(), "getPetById", mapping.Args{"petId": 2})
			require.NoError(t, err)
			status, value, err = future.Wait()
			require.NoError(t, err)
			assert.Equal(t, 404, status)
			assert.Nil(t, value)

			future, err = c.Call(context.Background(), "getInventory", nil)
			require.NoError(t, err)
			_, value, err = future.Wait()
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"available": int64(3)}, value)

			future, err = c.Call(context.Background(), "health", nil)
			require.NoError(t, err)
			status, _, err = future.Wait()
			assert.ErrorIs(t, err, mapping.ErrResponseMapping)
			assert.Equal(t, 503, status)
		})
	}
}

func TestCall_UnknownOperation(t *testing.T) {
	c := newClient(t, "http://localhost")
	_, err := c.Call(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestCall_RequestID(t *testing.T) {
	srv, rec := newPetServer(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newClient(t, srv.URL, WithLogger(logger))

	future, err := c.Call(context.Background(), "delete_pet_petId", mapping.Args{"petId": 1})
	require.NoError(t, err)
	status, _, err := future.Wait()
	require.NoError(t, err)
	assert.Equal(t, 204, status)

	id := rec.last().Get(DefaultRequestIDHeader)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "request id %q", id)
	assert.Contains(t, logs.String(), id)
	assert.Contains(t, logs.String(), `"operation_id":"delete_pet_petId"`)

	args := mapping.Args{
		"petId":                   1,
		mapping.RequestOptionsKey: mapping.RequestOptions{Headers: map[string]string{"x-request-id": "caller-id"}},
	}
	future, err = c.Call(context.Background(), "delete_pet_petId", args)
	require.NoError(t, err)
	_, _, err = future.Wait()
	require.NoError(t, err)
	assert.Equal(t, "caller-id", rec.last().Get(DefaultRequestIDHeader))
}

func TestCall_RequestIDDisabled(t *testing.T) {
	srv, rec := newPetServer(t)
	c := newClient(t, srv.URL, WithRequestIDHeader(""))

	future, err := c.Call(context.Background(), "delete_pet_petId", mapping.Args{"petId": 1})
	require.NoError(t, err)
	_, _, err = future.Wait()
	require.NoError(t, err)
	assert.Empty(t, rec.last().Get(DefaultRequestIDHeader))
}

func TestCall_Metrics(t *testing.T) {
	srv, _ := newPetServer(t)
	m := metrics.New()
	c := newClient(t, srv.URL, WithMetrics(m))

	future, err := c.Call(context.Background(), "getPetById", mapping.Args{"petId": 1})
	require.NoError(t, err)
	_, _, err = future.Wait()
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "getPetById", mapping.Args{})
	require.ErrorIs(t, err, mapping.ErrCallArgument)

	assert.Eventually(t, func() bool {
		n, err := testutil.GatherAndCount(m.Registry(), "swaggerclient_invocations_total")
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)

	n, err := testutil.GatherAndCount(m.Registry(), "swaggerclient_invocation_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
