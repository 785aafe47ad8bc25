// Package metrics wires the session's dotted counter/histogram names onto
// OpenTelemetry instruments, backed by the Prometheus exporter so the
// values are reachable from the session's line-oriented /metrics endpoint.
// This keeps the metrics stack inside the same OTel family already used
// for tracing and logging rather than introducing an unrelated client.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/corvid-labs/callbrain/metrics"

// Registry is a small write-through wrapper over an otel Meter that lazily
// creates one instrument per dotted metric name, the way the source
// system's in-memory Metrics dict does, but backed by real OTel
// instruments instead of a hand-rolled counters map.
type Registry struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

func New(meter metric.Meter) *Registry {
	return &Registry{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// Inc increments the named counter by delta. Per-value counters take their
// label as part of name; see LabeledCounterName (e.g. ws_close_reason_total
// with label "IDLE_TIMEOUT" records under "ws_close_reason_total.IDLE_TIMEOUT").
func (r *Registry) Inc(name string, delta int64) {
	r.counter(name).Add(context.Background(), delta)
}

// Observe records a value in the named histogram (e.g. a latency in
// milliseconds).
func (r *Registry) Observe(name string, value float64) {
	r.histogram(name).Record(context.Background(), value)
}

func (r *Registry) counter(name string) metric.Int64Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c, _ := r.meter.Int64Counter(name)
	r.counters[name] = c
	return c
}

func (r *Registry) histogram(name string) metric.Float64Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h, _ := r.meter.Float64Histogram(name)
	r.histograms[name] = h
	return h
}

// LabeledCounterName builds the "<name>.<label>" convention used for
// dotted, per-value counters such as ws_close_reason_total.<reason>.
func LabeledCounterName(name, label string) string {
	return name + "." + label
}
