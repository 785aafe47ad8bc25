package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/queue"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

// Writer runs the socket write loop: dequeue in priority order, re-check
// staleness against the session's live epoch/speak-generation, then write
// under a hard per-frame deadline.
type Writer struct {
	conn     Conn
	outbound *queue.Queue[queue.Segment]

	writeTimeout           time.Duration
	maxConsecutiveTimeouts int
	closeOnTimeout         bool

	epochFn    func() int
	speakGenFn func() int

	OnWriteAttempt func(frame protocol.Outbound)
	OnWriteTimeout func(frame protocol.Outbound)
	OnStaleDropped func(seg queue.Segment)
	OnWritten      func(frame protocol.Outbound)
	OnFatalClose   func(reason protocol.CloseReason, err error)

	// OnSegmentDequeued fires for every segment that survives the staleness
	// check, just before encoding. The keepalive engine uses it to report
	// queue delay and missed-deadline metrics off Segment.EnqueuedAtMS/
	// DeadlineMS; nothing else needs it, so it is left nil by default.
	OnSegmentDequeued func(seg queue.Segment)
}

type WriterConfig struct {
	WriteTimeout           time.Duration
	MaxConsecutiveTimeouts int
	CloseOnTimeout         bool
	EpochFn                func() int
	SpeakGenFn             func() int
}

func NewWriter(conn Conn, outbound *queue.Queue[queue.Segment], cfg WriterConfig) *Writer {
	return &Writer{
		conn:                   conn,
		outbound:               outbound,
		writeTimeout:           cfg.WriteTimeout,
		maxConsecutiveTimeouts: cfg.MaxConsecutiveTimeouts,
		closeOnTimeout:         cfg.CloseOnTimeout,
		epochFn:                cfg.EpochFn,
		speakGenFn:             cfg.SpeakGenFn,
	}
}

// Run blocks until the outbound queue closes, ctx is done, or a fatal
// backpressure/hard-error condition fires.
func (w *Writer) Run(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "transport write loop")
	defer span.End()

	consecutiveTimeouts := 0

	for {
		seg, ok := w.outbound.Pop(ctx)
		if !ok {
			return
		}

		if w.epochFn != nil && w.speakGenFn != nil {
			if seg.Epoch != w.epochFn() || seg.SpeakGen != w.speakGenFn() {
				if w.OnStaleDropped != nil {
					w.OnStaleDropped(seg)
				}
				continue
			}
		}

		if w.OnSegmentDequeued != nil {
			w.OnSegmentDequeued(seg)
		}

		data, err := protocol.Encode(seg.Frame)
		if err != nil {
			logger.Error("failed to encode outbound frame", "error", err)
			continue
		}

		if w.OnWriteAttempt != nil {
			w.OnWriteAttempt(seg.Frame)
		}

		if w.writeTimeout > 0 {
			_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
		}

		writeErr := w.conn.WriteMessage(websocket.TextMessage, data)
		if writeErr == nil {
			consecutiveTimeouts = 0
			if w.OnWritten != nil {
				w.OnWritten(seg.Frame)
			}
			continue
		}

		if isTimeout(writeErr) {
			consecutiveTimeouts++
			if w.OnWriteTimeout != nil {
				w.OnWriteTimeout(seg.Frame)
			}
			if w.maxConsecutiveTimeouts > 0 && consecutiveTimeouts >= w.maxConsecutiveTimeouts && w.closeOnTimeout {
				span.RecordError(writeErr)
				span.SetAttributes(attribute.String("error", writeErr.Error()))
				w.fatal(protocol.CloseWriteTimeoutBackpressure, writeErr)
				return
			}
			continue
		}

		span.RecordError(writeErr)
		span.SetAttributes(attribute.String("error", writeErr.Error()))
		w.fatal(protocol.ClosePeerClose, writeErr)
		return
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (w *Writer) fatal(reason protocol.CloseReason, err error) {
	logger.Warn("framed transport write loop closing", "reason", string(reason), "error", err)
	if w.OnFatalClose != nil {
		w.OnFatalClose(reason, err)
	}
}
