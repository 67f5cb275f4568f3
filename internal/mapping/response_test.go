package mapping

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	status  int
	body    any
	bodyErr error
	header  http.Header
}

func (r *fakeResponse) StatusCode() int           { return r.status }
func (r *fakeResponse) JSON() (any, error)        { return r.body, r.bodyErr }
func (r *fakeResponse) Header(name string) string { return r.header.Get(name) }

type fakeClient struct {
	mu   sync.Mutex
	reqs []*Request
	resp Response
	err  error
	wait chan struct{}
}

func (c *fakeClient) Request(ctx context.Context, req *Request) (Response, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	c.mu.Unlock()
	if c.wait != nil {
		<-c.wait
	}
	return c.resp, c.err
}

func TestGetResponseSpec(t *testing.T) {
	s := loadPetstore(t)
	get := newOp(t, s, "/pet/{petId}", "get")

	ok, err := GetResponseSpec(200, get)
	require.NoError(t, err)
	assert.Equal(t, "ok", ok.(map[string]any)["description"])

	fallback, err := GetResponseSpec(404, get)
	require.NoError(t, err)
	assert.Equal(t, "error", fallback.(map[string]any)["description"])

	numbers := newOp(t, s, "/numbers", "get")
	_, err = GetResponseSpec(500, numbers)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResponseMapping)
	var rme *ResponseMappingError
	require.ErrorAs(t, err, &rme)
	assert.Equal(t, 500, rme.StatusCode)
	assert.Equal(t, "listNumbers", rme.OperationID)
}

func TestHandleResponse_Model(t *testing.T) {
	s := loadPetstore(t)
	op := newOp(t, s, "/pet/{petId}", "get")

	body := decodeJSON(t, `{"id": 1, "name": "doggie", "category": {"id": 2, "name": "dogs"}, "tags": ["a"], "birthday": "2020-01-02", "extra": true}`)
	status, value, err := HandleResponse(&fakeResponse{status: 200, body: body}, op)
	require.NoError(t, err)
	assert.Equal(t, 200, status)

	pet, ok := value.(*Model)
	require.True(t, ok, "got %T", value)
	assert.Equal(t, "Pet", pet.Name)
	assert.Equal(t, int64(1), pet.Properties["id"])
	assert.Equal(t, "doggie", pet.Properties["name"])
	assert.Equal(t, []any{"a"}, pet.Properties["tags"])
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), pet.Properties["birthday"])
	assert.Equal(t, true, pet.Properties["extra"], "additional properties are kept")

	petStatus, exists := pet.Get("status")
	assert.True(t, exists, "declared but absent properties are present as nil")
	assert.Nil(t, petStatus)

	category, ok := pet.Properties["category"].(*Model)
	require.True(t, ok)
	assert.Equal(t, "Category", category.Name)
	assert.Equal(t, int64(2), category.Properties["id"])
}

func TestHandleResponse_DefaultSpec(t *testing.T) {
	s := loadPetstore(t)
	op := newOp(t, s, "/pet/{petId}", "get")

	status, value, err := HandleResponse(&fakeResponse{status: 404, body: decodeJSON(t, `{"code": 404, "message": "not found"}`)}, op)
	require.NoError(t, err)
	assert.Equal(t, 404, status)
	e, ok := value.(*Model)
	require.True(t, ok)
	assert.Equal(t, "Error", e.Name)
	assert.Equal(t, "not found", e.Properties["message"])
}

func TestHandleResponse_NoSchema(t *testing.T) {
	s := loadPetstore(t)
	op := newOp(t, s, "/pet/{petId}", "delete")

	status, value, err := HandleResponse(&fakeResponse{status: 204, bodyErr: errors.New("never read")}, op)
	require.NoError(t, err)
	assert.Equal(t, 204, status)
	assert.Nil(t, value)
}

func TestHandleResponse_Errors(t *testing.T) {
	s := loadPetstore(t)
	numbers := newOp(t, s, "/numbers", "get")

	_, _, err := HandleResponse(&fakeResponse{status: 500}, numbers)
	assert.ErrorIs(t, err, ErrResponseMapping)

	_, _, err = HandleResponse("raw body", numbers)
	assert.ErrorIs(t, err, ErrUnsupportedResponse)
	assert.Contains(t, err.Error(), "string")

	_, _, err = HandleResponse(&fakeResponse{status: 200, bodyErr: errors.New("bad json")}, numbers)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestHandleResponse_Arrays(t *testing.T) {
	s := loadPetstore(t)
	op := newOp(t, s, "/numbers", "get")

	_, value, err := HandleResponse(&fakeResponse{status: 200, body: decodeJSON(t, `[1, 2, 3]`)}, op)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, value)

	_, value, err = HandleResponse(&fakeResponse{status: 200, body: decodeJSON(t, `[]`)}, op)
	require.NoError(t, err)
	assert.Equal(t, []any{}, value)

	_, _, err = HandleResponse(&fakeResponse{status: 200, body: decodeJSON(t, `["x"]`)}, op)
	require.Error(t, err)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "[0]", se.Path)

	_, value, err = HandleResponse(&fakeResponse{status: 200, body: nil}, op)
	require.NoError(t, err)
	assert.Nil(t, value, "empty body decodes to nil")
}

func TestOperationCall_Future(t *testing.T) {
	s := loadPetstore(t)
	op := newOp(t, s, "/pet/{petId}", "get")

	client := &fakeClient{resp: &fakeResponse{status: 200, body: decodeJSON(t, `{"name": "doggie"}`)}}
	future, err := op.Call(context.Background(), client, Args{"petId": 3})
	require.NoError(t, err)

	status, value, err := future.Wait()
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "doggie", value.(*Model).Properties["name"])

	require.Len(t, client.reqs, 1)
	assert.Equal(t, "https://petstore.example.com/v2/pet/3", client.reqs[0].URL)
}

func TestOperationCall_ArgumentErrorBeforeIO(t *testing.T) {
	s := loadPetstore(t)
	op := newOp(t, s, "/pet/{petId}", "get")

	client := &fakeClient{}
	_, err := op.Call(context.Background(), client, Args{"nope": 1})
	require.ErrorIs(t, err, ErrCallArgument)
	assert.Empty(t, client.reqs)
}

func TestFuture_TransportError(t *testing.T) {
	s := loadPetstore(t)
	op := newOp(t, s, "/pet/{petId}", "get")

	boom := errors.New("connection refused")
	future, err := op.Call(context.Background(), &fakeClient{err: boom}, Args{"petId": 3})
	require.NoError(t, err)
	_, _, err = future.Wait()
	assert.ErrorIs(t, err, boom)
}

func TestFuture_ResultHonoursContext(t *testing.T) {
	s := loadPetstore(t)
	op := newOp(t, s, "/pet/{petId}", "delete")

	client := &fakeClient{resp: &fakeResponse{status: 204}, wait: make(chan struct{})}
	future, err := op.Call(context.Background(), client, Args{"petId": 3})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = future.Result(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(client.wait)
	<-future.Done()
	status, _, err := future.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 204, status)
}

func TestFuture_HandlerPanicBecomesError(t *testing.T) {
	client := &fakeClient{resp: &fakeResponse{status: 200}}
	future := NewFuture(context.Background(), client, newRequest("get", "http://x"), func(Response) (int, any, error) {
		panic("boom")
	})
	_, _, err := future.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
