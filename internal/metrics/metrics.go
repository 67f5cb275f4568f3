// Package metrics records operation invocations as Prometheus metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mark3labs/swaggerclient/internal/mapping"
)

// Collector holds the invocation metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	failures    *prometheus.CounterVec
}

// New creates a Collector registered on a fresh registry.
func New() *Collector {
	c, err := NewWithRegistry(prometheus.NewRegistry())
	if err != nil {
		// A fresh registry cannot already hold these collectors.
		panic(err)
	}
	return c
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) (*Collector, error) {
	c := &Collector{
		registry: reg,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swaggerclient",
			Name:      "invocations_total",
			Help:      "Completed operation invocations by operation and HTTP status.",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swaggerclient",
			Name:      "invocation_duration_seconds",
			Help:      "Time from invocation to a mapped result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swaggerclient",
			Name:      "invocation_failures_total",
			Help:      "Failed operation invocations by error category.",
		}, []string{"operation", "category"}),
	}
	for _, col := range []prometheus.Collector{c.invocations, c.latency, c.failures} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Registry returns the registry the collectors are registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe records one finished invocation. status is ignored when err is set
// before any response arrived.
func (c *Collector) Observe(operationID string, status int, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	c.latency.WithLabelValues(operationID).Observe(elapsed.Seconds())
	if status > 0 {
		c.invocations.WithLabelValues(operationID, strconv.Itoa(status)).Inc()
	}
	if err != nil {
		c.failures.WithLabelValues(operationID, Category(err)).Inc()
	}
}

// Category names the class of an invocation error for labelling.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, mapping.ErrCallArgument):
		return "argument"
	case errors.Is(err, mapping.ErrResponseMapping):
		return "response_mapping"
	case errors.Is(err, mapping.ErrSchema):
		return "schema"
	case errors.Is(err, mapping.ErrUnsupportedResponse):
		return "unsupported_response"
	case errors.Is(err, mapping.ErrSpecValidation):
		return "spec"
	}
	return "transport"
}
