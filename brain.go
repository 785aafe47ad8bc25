// Package brain is the module's public entry point: it re-exports the
// session supervisor behind a small functional-options constructor, the
// same shape the teacher's root orchestration package exposes over its
// own Orchestrator.
package brain

import (
	"context"

	"github.com/corvid-labs/callbrain/config"
	"github.com/corvid-labs/callbrain/memory"
	"github.com/corvid-labs/callbrain/metrics"
	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/session"
	"github.com/corvid-labs/callbrain/transport"
	"github.com/corvid-labs/callbrain/turn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/corvid-labs/callbrain"

func otelMeter() metric.Meter {
	return otel.GetMeterProvider().Meter(scopeName)
}

// Brain wraps one connection's session supervisor.
type Brain struct {
	sess *session.Session
}

// Option configures a Brain before it starts running.
type Option func(*options)

type options struct {
	cfg      config.Config
	producer turn.Producer
	registry *metrics.Registry
}

// WithConfig overrides the default configuration.
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithProducer supplies the dialogue-policy/LLM collaborator that turns a
// transcript snapshot into response content. Required: a Brain with no
// producer never produces non-empty responses.
func WithProducer(producer turn.Producer) Option {
	return func(o *options) { o.producer = producer }
}

// WithMetrics overrides the metrics registry counters and histograms report
// into. Defaults to a registry backed by the global OTel meter provider.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New builds a Brain around an already-upgraded connection.
func New(conn transport.Conn, opts ...Option) *Brain {
	o := options{cfg: config.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = metrics.New(otelMeter())
	}

	return &Brain{sess: session.New(conn, o.cfg, o.producer, o.registry)}
}

// Run blocks for the connection's full lifetime and returns the reason it
// closed. ctx cancellation ends the session with protocol.CloseShutdown.
func (b *Brain) Run(ctx context.Context) protocol.CloseReason {
	return b.sess.Run(ctx)
}

// OnClose registers a callback invoked exactly once as the session tears
// down, with the reason it closed.
func (b *Brain) OnClose(fn func(reason protocol.CloseReason)) {
	b.sess.OnClose = fn
}

// SetRoute records which URL path the connection was upgraded on, for the
// session's own logging.
func (b *Brain) SetRoute(route string) {
	b.sess.Route = route
}

// TranscriptSnapshot is re-exported so callers embedding a Brain don't need
// to import the memory package directly for read-only inspection.
type TranscriptSnapshot = memory.Utterance
