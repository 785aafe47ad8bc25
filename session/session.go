package session

import (
	"context"
	"sync"
	"time"

	"github.com/corvid-labs/callbrain/config"
	"github.com/corvid-labs/callbrain/keepalive"
	"github.com/corvid-labs/callbrain/markup"
	"github.com/corvid-labs/callbrain/memory"
	"github.com/corvid-labs/callbrain/metrics"
	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/queue"
	"github.com/corvid-labs/callbrain/transport"
	"github.com/corvid-labs/callbrain/turn"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/corvid-labs/callbrain/session"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

// Session is one WebSocket connection's full lifetime: reader, writer,
// inbound dispatch, turn machine, and keepalive engine, torn down together
// when any of them ends.
type Session struct {
	id  string
	cfg config.Config
	reg *metrics.Registry

	conn     transport.Conn
	producer turn.Producer
	inbound  *queue.Queue[protocol.Inbound]
	outbound *queue.Queue[queue.Segment]

	machine   *turn.Machine
	reader    *transport.Reader
	writer    *transport.Writer
	keepalive *keepalive.Engine

	transcript        *memory.TranscriptRing
	lastTranscriptLen int

	closeOnce   sync.Once
	closeReason protocol.CloseReason
	cancelRun   context.CancelFunc

	// Route records which URL path the connection was upgraded on, for
	// logging; canonical-vs-legacy resolution happens before New is called.
	Route string

	// OnClose, if set, is invoked exactly once with the session's close
	// reason as the session tears down.
	OnClose func(reason protocol.CloseReason)
}

// New builds a session around an already-upgraded connection. producer is
// the external dialogue-policy/LLM collaborator that turns a transcript
// snapshot into response content; it is never implemented by this package.
// Wiring that needs the session's run-lifetime context (the turn machine's
// persistent consumer, in particular) happens in Run, not here.
func New(conn transport.Conn, cfg config.Config, producer turn.Producer, reg *metrics.Registry) *Session {
	return &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		reg:        reg,
		conn:       conn,
		producer:   producer,
		inbound:    queue.NewInbound(cfg.BrainInboundQueueMax),
		outbound:   queue.NewOutbound(cfg.BrainOutboundQueueMax),
		transcript: memory.New(cfg.TranscriptMaxUtterances, cfg.TranscriptMaxChars),
	}
}

func (s *Session) wire(runCtx context.Context, producer turn.Producer) *Session {
	onRollback := func(turn.SlotSnapshot) {
		logger.Info("slot state rolled back for abandoned epoch", "session_id", s.id)
	}
	s.machine = turn.New(runCtx, s.outbound, producer, onRollback)
	s.machine.SetRenderer(func(content string) string {
		return markup.Render(content, s.cfg.SpeechMarkupMode, s.cfg.DashPauseScope)
	})
	s.machine.OnHandlerEnd(func(epoch int, err error) {
		if err != nil {
			logger.Warn("turn producer exited with error", "session_id", s.id, "epoch", epoch, "error", err)
		}
	})

	s.reader = transport.NewReader(s.conn, s.cfg.WSMaxFrameBytes, s.inbound)
	s.reader.OnBadSchema = func(interactionType string) {
		s.reg.Inc(metrics.InboundBadSchemaTotal, 1)
	}
	s.reader.OnEviction = func(class queue.Class) {
		s.reg.Inc(metrics.InboundQueueEvictionsTotal, 1)
	}
	s.reader.OnFatalClose = func(reason protocol.CloseReason, err error) {
		s.close(reason)
	}

	s.writer = transport.NewWriter(s.conn, s.outbound, transport.WriterConfig{
		WriteTimeout:           time.Duration(s.cfg.WSWriteTimeoutMS) * time.Millisecond,
		MaxConsecutiveTimeouts: s.cfg.WSMaxConsecutiveWriteTimeouts,
		CloseOnTimeout:         s.cfg.WSCloseOnWriteTimeout,
		EpochFn:                s.machine.Epoch,
		SpeakGenFn:             s.machine.SpeakGen,
	})
	s.writer.OnStaleDropped = func(seg queue.Segment) {
		s.reg.Inc(metrics.StaleSegmentDroppedTotal, 1)
	}
	s.writer.OnWriteAttempt = func(frame protocol.Outbound) {
		keepalive.ObserveWriteAttempt(s.reg, frame)
	}
	s.writer.OnWriteTimeout = func(frame protocol.Outbound) {
		s.reg.Inc(metrics.WSWriteTimeoutTotal, 1)
		keepalive.ObserveWriteTimeout(s.reg, frame)
	}
	s.writer.OnSegmentDequeued = func(seg queue.Segment) {
		keepalive.ObserveDequeue(s.reg, seg, time.Now().UnixMilli())
	}
	s.writer.OnFatalClose = func(reason protocol.CloseReason, err error) {
		s.close(reason)
	}

	s.keepalive = keepalive.New(s.outbound, keepalive.Config{
		Interval:        time.Duration(s.cfg.BrainPingIntervalMS) * time.Millisecond,
		WriteDeadlineMS: int64(s.cfg.KeepalivePingWriteDeadlineMS),
		EpochFn:         s.machine.Epoch,
		SpeakGenFn:      s.machine.SpeakGen,
	})

	return s
}

// Run blocks for the session's full lifetime: it starts the read/write
// loops, the keepalive engine, the inbound dispatcher, and the idle
// watchdog, and returns once any of them ends the session. ctx cancellation
// ends the session with CloseShutdown.
func (s *Session) Run(ctx context.Context) protocol.CloseReason {
	ctx, span := tracer.Start(ctx, "session.run")
	defer span.End()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelRun = cancel

	s.wire(runCtx, s.producer)
	s.sendInitialFrames()

	idle := newIdleWatchdog(time.Duration(s.cfg.BrainIdleTimeoutMS)*time.Millisecond, func() {
		s.close(protocol.CloseIdleTimeout)
	})
	defer idle.stop()

	s.reader.OnFrame = func(frame protocol.Inbound) {
		idle.reset()
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); s.reader.Run(runCtx) }()
	go func() { defer wg.Done(); s.writer.Run(runCtx) }()
	go func() { defer wg.Done(); s.keepalive.Run(runCtx) }()
	go func() { defer wg.Done(); s.dispatchLoop(runCtx) }()

	<-runCtx.Done()
	// A fatal reader/writer close or idle timeout calls s.close directly;
	// if it's the parent ctx that ended first, record that explicitly.
	s.closeOnce.Do(func() {
		if ctx.Err() != nil {
			s.closeReason = protocol.CloseShutdown
			s.reg.Inc(metrics.LabeledCounterName(metrics.WSCloseReasonTotal, protocol.SanitizeMetricLabel(string(protocol.CloseShutdown))), 1)
		}
	})

	cancel()
	s.inbound.Close()
	s.outbound.Close()
	// The reader's blocking ReadMessage does not observe ctx cancellation on
	// a real websocket connection either; closing the socket is what
	// actually unblocks it.
	_ = s.conn.Close()
	wg.Wait()

	if s.OnClose != nil {
		s.OnClose(s.closeReason)
	}
	return s.closeReason
}

func (s *Session) close(reason protocol.CloseReason) {
	s.closeOnce.Do(func() {
		s.closeReason = reason
		s.reg.Inc(metrics.LabeledCounterName(metrics.WSCloseReasonTotal, protocol.SanitizeMetricLabel(string(reason))), 1)
		if s.cancelRun != nil {
			s.cancelRun()
		}
	})
}

func (s *Session) sendInitialFrames() {
	s.outbound.Push(queue.Segment{Frame: protocol.NewConfig(), Seq: -1})

	if s.cfg.BrainSpeakFirst {
		s.machine.OnResponseRequired(0, nil)
		return
	}
	s.outbound.Push(queue.Segment{Frame: protocol.NewResponse(0, "", true), Seq: -1})
}

func (s *Session) dispatchLoop(ctx context.Context) {
	for {
		frame, ok := s.inbound.Pop(ctx)
		if !ok {
			return
		}
		s.dispatch(ctx, frame)
	}
}

func (s *Session) dispatch(ctx context.Context, frame protocol.Inbound) {
	switch f := frame.(type) {
	case protocol.ResponseRequired:
		s.ingestTranscript(f.Transcript)
		s.machine.OnResponseRequired(f.ResponseID, s.transcript.PromptView())
	case protocol.ReminderRequired:
		s.ingestTranscript(f.Transcript)
		s.machine.OnResponseRequired(f.ResponseID, s.transcript.PromptView())
	case protocol.UpdateOnly:
		s.ingestTranscript(f.Transcript)
		s.machine.OnUpdateOnly(f)
	case protocol.Clear:
		s.machine.OnClear()
	case protocol.PingPongIn:
		now := time.Now().UnixMilli()
		s.machine.OnPingPong(f.Timestamp, now, int64(s.cfg.KeepalivePingWriteDeadlineMS))
	case protocol.CallDetails:
		if f.CallID != "" {
			s.machine.SetCallID(f.CallID)
		}
	case protocol.UnknownInbound:
		// already counted by the reader's OnBadSchema; nothing to dispatch.
	}
}

// ingestTranscript feeds every utterance beyond what has already been
// recorded into the long-lived transcript ring. The platform resends the
// full transcript-so-far on every frame, so only the delta is new.
func (s *Session) ingestTranscript(utterances []protocol.Utterance) {
	if len(utterances) <= s.lastTranscriptLen {
		return
	}
	before := s.transcript.Compactions()
	for _, u := range utterances[s.lastTranscriptLen:] {
		s.transcript.Append(u.Role, u.Content)
	}
	s.lastTranscriptLen = len(utterances)

	if after := s.transcript.Compactions(); after > before {
		s.reg.Inc(metrics.MemoryTranscriptCompactionsTotal, int64(after-before))
	}
}
