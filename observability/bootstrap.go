// Package observability wires the process-wide OpenTelemetry providers:
// this repo is the host process, unlike the teacher's packages which only
// consume the otel API surface against a provider some other host wired.
package observability

import (
	"context"
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Providers holds the process-wide tracer and meter providers along with a
// Shutdown that flushes and releases both. Registry is the concrete
// Prometheus registry the OTel exporter feeds; the caller wires it into an
// HTTP handler (promhttp.HandlerFor) for /metrics.
type Providers struct {
	Tracer   *sdktrace.TracerProvider
	Meter    *sdkmetric.MeterProvider
	Registry *promclient.Registry
}

// Bootstrap installs a global TracerProvider and a Prometheus-backed
// MeterProvider, and returns a Shutdown to call during process teardown.
// The metrics registry lives for the process lifetime; there is no
// per-session teardown for it, only for per-session spans/counters values.
func Bootstrap(serviceName string) (*Providers, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("observability: failed to build prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	tracerProvider := sdktrace.NewTracerProvider()

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	return &Providers{Tracer: tracerProvider, Meter: meterProvider, Registry: registry}, nil
}

// Shutdown flushes and shuts down both providers, joining any errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := p.Meter.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("observability: shutdown errors: %v", errs)
}
