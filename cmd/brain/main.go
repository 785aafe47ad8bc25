// Command brain runs the voice-agent WebSocket brain: it upgrades incoming
// connections on the Retell-compatible Custom LLM route, wires one session
// supervisor per connection, and exposes /healthz and /metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	brain "github.com/corvid-labs/callbrain"
	"github.com/corvid-labs/callbrain/config"
	"github.com/corvid-labs/callbrain/memory"
	"github.com/corvid-labs/callbrain/metrics"
	"github.com/corvid-labs/callbrain/observability"
	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/turn"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/corvid-labs/callbrain/cmd/brain"

var logger = otelslog.NewLogger(scopeName)

const canonicalRoutePrefix = "/llm-websocket/"
const legacyRoutePrefix = "/llm_websocket/"

func main() {
	configPath := flag.String("config", "brain.toml", "path to an optional TOML config file")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, falling back to defaults", "error", err, "path", *configPath)
		cfg = config.Default()
	}
	cfg = config.FromEnv(cfg)

	providers, err := observability.Bootstrap("callbrain")
	if err != nil {
		logger.Error("failed to bootstrap observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("observability shutdown reported errors", "error", err)
		}
	}()

	reg := metrics.New(otel.GetMeterProvider().Meter(scopeName))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(providers.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /schema", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(protocol.InboundSchema())
	})

	wsHandler := newWSHandler(upgrader, cfg, reg)
	mux.HandleFunc("GET "+canonicalRoutePrefix+"{call_id}", wsHandler)
	if !cfg.WSEnforceCanonicalRoute {
		mux.HandleFunc("GET "+legacyRoutePrefix+"{call_id}", wsHandler)
	}

	handler := otelhttp.NewHandler(mux, "brain.http")

	server := &http.Server{
		Addr:    *addr,
		Handler: handler,
	}

	go func() {
		logger.Info("brain listening", "addr", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func newWSHandler(upgrader websocket.Upgrader, cfg config.Config, reg *metrics.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("call_id")
		route := canonicalOrLegacy(r.URL.Path)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err, "call_id", callID)
			return
		}

		logger.Info("session connected", "call_id", callID, "route", route)

		b := brain.New(conn, brain.WithConfig(cfg), brain.WithProducer(defaultProducer), brain.WithMetrics(reg))
		b.SetRoute(route)
		b.OnClose(func(reason protocol.CloseReason) {
			logger.Info("session ended", "call_id", callID, "reason", string(reason))
		})

		reason := b.Run(r.Context())
		logger.Info("session closed", "call_id", callID, "reason", string(reason))
	}
}

func canonicalOrLegacy(path string) string {
	if strings.HasPrefix(path, canonicalRoutePrefix) {
		return "canonical"
	}
	return "legacy"
}

// defaultProducer is a placeholder dialogue-policy collaborator: it emits a
// fixed acknowledgement whenever the transcript is non-empty. The real
// LLM/dialogue-policy integration is an external collaborator wired here by
// deployment, not implemented by this binary.
func defaultProducer(ctx context.Context, transcript []memory.Utterance, emit func(string)) error {
	if len(transcript) == 0 {
		return nil
	}
	emit("I heard you.")
	return nil
}

var _ turn.Producer = defaultProducer
