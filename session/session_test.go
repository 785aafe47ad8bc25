package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/corvid-labs/callbrain/config"
	"github.com/corvid-labs/callbrain/memory"
	"github.com/corvid-labs/callbrain/metrics"
	"go.opentelemetry.io/otel/sdk/metric"
)

func echoOnceProducer(content string) func(ctx context.Context, transcript []memory.Utterance, emit func(string)) error {
	return func(ctx context.Context, transcript []memory.Utterance, emit func(string)) error {
		emit(content)
		return nil
	}
}

// fakeConn is a minimal transport.Conn: reads come from a preloaded queue,
// writes accumulate in a channel a test can drain in order.
type fakeConn struct {
	mu      sync.Mutex
	toRead  [][]byte
	readIdx int
	readGap chan struct{}

	written chan []byte
	closed  bool
}

func newFakeConn(toRead ...[]byte) *fakeConn {
	return &fakeConn{toRead: toRead, written: make(chan []byte, 64), readGap: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if c.readIdx < len(c.toRead) {
		msg := c.toRead[c.readIdx]
		c.readIdx++
		c.mu.Unlock()
		return 1, msg, nil
	}
	c.mu.Unlock()
	<-c.readGap // block forever once the scripted messages are exhausted
	return 0, nil, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	cp := append([]byte(nil), data...)
	c.written <- cp
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.readGap)
	}
	return nil
}

func newTestRegistry() *metrics.Registry {
	return metrics.New(metric.NewMeterProvider().Meter("test"))
}

func recvResponseType(t *testing.T, conn *fakeConn, timeout time.Duration) map[string]any {
	t.Helper()
	select {
	case data := <-conn.written:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("failed to unmarshal outbound frame: %v", err)
		}
		return m
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for outbound frame")
		return nil
	}
}

func TestSessionSendsConfigThenEmptyTerminalWhenNotSpeakFirst(t *testing.T) {
	conn := newFakeConn()
	defer conn.Close()

	cfg := config.Default()
	cfg.BrainIdleTimeoutMS = 0 // disable watchdog for this test
	s := New(conn, cfg, nil, newTestRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	m1 := recvResponseType(t, conn, time.Second)
	if m1["response_type"] != "config" {
		t.Fatalf("expected config frame first, got %v", m1)
	}

	m2 := recvResponseType(t, conn, time.Second)
	if m2["response_type"] != "response" || m2["response_id"] != float64(0) || m2["content_complete"] != true {
		t.Fatalf("expected empty terminal response_id=0, got %v", m2)
	}
}

func TestSessionEchoesClientPingPong(t *testing.T) {
	conn := newFakeConn([]byte(`{"interaction_type":"ping_pong","timestamp":777}`))
	defer conn.Close()

	cfg := config.Default()
	cfg.BrainIdleTimeoutMS = 0
	cfg.BrainPingIntervalMS = 0 // disable the server's own ping loop for this test
	s := New(conn, cfg, nil, newTestRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	recvResponseType(t, conn, time.Second) // config
	recvResponseType(t, conn, time.Second) // BEGIN response_id=0

	echo := recvResponseType(t, conn, time.Second)
	if echo["response_type"] != "ping_pong" || echo["timestamp"] != float64(777) {
		t.Fatalf("expected ping_pong echo with timestamp 777, got %v", echo)
	}
}

func TestSessionIdleTimeoutClosesWithIdleReason(t *testing.T) {
	conn := newFakeConn()
	defer conn.Close()

	cfg := config.Default()
	cfg.BrainIdleTimeoutMS = 20
	cfg.BrainPingIntervalMS = 0
	s := New(conn, cfg, nil, newTestRegistry())

	done := make(chan struct{})
	var result string
	go func() {
		result = string(s.Run(context.Background()))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for session to end")
	}
	if result != "IDLE_TIMEOUT" {
		t.Fatalf("expected IDLE_TIMEOUT close reason, got %s", result)
	}
}

func TestSessionResponseRequiredProducesTerminal(t *testing.T) {
	conn := newFakeConn([]byte(`{"interaction_type":"response_required","response_id":1,"transcript":[{"role":"user","content":"hi"}]}`))
	defer conn.Close()

	cfg := config.Default()
	cfg.BrainIdleTimeoutMS = 0
	cfg.BrainPingIntervalMS = 0

	s := New(conn, cfg, echoOnceProducer("hello"), newTestRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	recvResponseType(t, conn, time.Second) // config
	recvResponseType(t, conn, time.Second) // BEGIN response_id=0

	ack := recvResponseType(t, conn, time.Second)
	if ack["response_id"] != float64(1) {
		t.Fatalf("expected ack for response_id=1, got %v", ack)
	}
	content := recvResponseType(t, conn, time.Second)
	if content["content"] != "hello" {
		t.Fatalf("expected content chunk 'hello', got %v", content)
	}
	terminal := recvResponseType(t, conn, time.Second)
	if terminal["content_complete"] != true {
		t.Fatalf("expected a terminal frame, got %v", terminal)
	}
}

func TestSessionFeedsProducerFromTranscriptRingNotRawFrame(t *testing.T) {
	conn := newFakeConn([]byte(`{"interaction_type":"response_required","response_id":1,"transcript":[{"role":"user","content":"call me at 555-123-4567"}]}`))
	defer conn.Close()

	cfg := config.Default()
	cfg.BrainIdleTimeoutMS = 0
	cfg.BrainPingIntervalMS = 0

	seen := make(chan []memory.Utterance, 1)
	producer := func(ctx context.Context, transcript []memory.Utterance, emit func(string)) error {
		seen <- transcript
		emit("hello")
		return nil
	}

	s := New(conn, cfg, producer, newTestRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var got []memory.Utterance
	select {
	case got = <-seen:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for producer to be invoked")
	}

	if len(got) != 1 {
		t.Fatalf("expected the ring's single utterance, got %+v", got)
	}
	if got[0].Text != "call me at ***-4567" {
		t.Fatalf("expected the ring's PII-scrubbed text, got %q (raw frame content would bypass scrubbing)", got[0].Text)
	}
}

func TestSessionRendersDashPauseMarkupOnOutboundContent(t *testing.T) {
	conn := newFakeConn([]byte(`{"interaction_type":"response_required","response_id":1,"transcript":[{"role":"user","content":"hi"}]}`))
	defer conn.Close()

	cfg := config.Default()
	cfg.BrainIdleTimeoutMS = 0
	cfg.BrainPingIntervalMS = 0

	s := New(conn, cfg, echoOnceProducer("order 42 is ready"), newTestRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	recvResponseType(t, conn, time.Second) // config
	recvResponseType(t, conn, time.Second) // BEGIN response_id=0
	recvResponseType(t, conn, time.Second) // ack

	content := recvResponseType(t, conn, time.Second)
	if content["content"] != "order 4 - 2 is ready" {
		t.Fatalf("expected dash-paused digits, got %v", content)
	}
}
