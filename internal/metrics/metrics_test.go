package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/swaggerclient/internal/mapping"
)

func TestCollector_Observe(t *testing.T) {
	c := New()

	c.Observe("getPet", 200, 10*time.Millisecond, nil)
	c.Observe("getPet", 200, 20*time.Millisecond, nil)
	c.Observe("getPet", 500, 5*time.Millisecond, &mapping.ResponseMappingError{OperationID: "getPet", StatusCode: 500})
	c.Observe("getPet", 0, time.Millisecond, errors.New("dial tcp: refused"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.invocations.WithLabelValues("getPet", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.invocations.WithLabelValues("getPet", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("getPet", "response_mapping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("getPet", "transport")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))

	count, err := testutil.GatherAndCount(c.Registry(), "swaggerclient_invocations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() { c.Observe("x", 200, time.Second, nil) })
}

func TestNewWithRegistry_Duplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewWithRegistry(reg)
	require.NoError(t, err)

	_, err = NewWithRegistry(reg)
	var are prometheus.AlreadyRegisteredError
	assert.True(t, errors.As(err, &are))
}

func TestCategory(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&mapping.CallArgumentError{Reason: mapping.MissingParameter}, "argument"},
		{&mapping.SchemaError{Op: "unmarshal"}, "schema"},
		{fmt.Errorf("wrapped: %w", &mapping.UnsupportedResponseError{Type: "string"}), "unsupported_response"},
		{&mapping.SpecValidationError{}, "spec"},
		{errors.New("boom"), "transport"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Category(tt.err), "%v", tt.err)
	}
}
