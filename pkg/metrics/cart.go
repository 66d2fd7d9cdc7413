package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	unknownLabel   = "unknown"
)

// CartMetrics records per-operation outcomes for the cart service.
type CartMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart operations by outcome (success or error code).",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(operations, duration)
	return &CartMetrics{
		operations: operations,
		duration:   duration,
	}
}

// Observe records one finished operation. outcome is OutcomeSuccess or a
// lower-cased error code.
func (c *CartMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if c == nil || c.operations == nil || c.duration == nil {
		return
	}
	op := normalizeLabel(operation)
	c.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return unknownLabel
	}
	return value
}
