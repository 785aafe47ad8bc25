package transport

import (
	"context"

	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/queue"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const scopeName = "github.com/corvid-labs/callbrain/transport"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

// Reader runs the socket read loop: decode, classify, enqueue. Only the two
// structural classifications (frame too large, malformed JSON) are fatal;
// schema drift on a recognized-but-unknown interaction_type is counted and
// tolerated.
type Reader struct {
	conn         Conn
	maxFrameBytes int
	inbound      *queue.Queue[protocol.Inbound]

	OnFrame      func(protocol.Inbound) // called for every successfully decoded frame, known or unknown
	OnBadSchema  func(interactionType string)
	OnEviction   func(class queue.Class)
	OnFatalClose func(reason protocol.CloseReason, err error)
}

func NewReader(conn Conn, maxFrameBytes int, inbound *queue.Queue[protocol.Inbound]) *Reader {
	return &Reader{conn: conn, maxFrameBytes: maxFrameBytes, inbound: inbound}
}

// Run blocks until the connection errors or ctx is done. It always reports
// exactly one outcome via OnFatalClose unless ctx cancellation raced the
// read (in which case the caller is already tearing the session down).
func (r *Reader) Run(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "transport read loop")
	defer span.End()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := r.conn.ReadMessage()
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error", err.Error()))
			r.fatal(protocol.ClosePeerClose, err)
			return
		}

		frame, class, err := protocol.Decode(data, r.maxFrameBytes)
		switch class {
		case protocol.ClassFrameTooLarge:
			span.RecordError(err)
			span.SetAttributes(attribute.String("error", err.Error()))
			r.fatal(protocol.CloseFrameTooLarge, err)
			return
		case protocol.ClassBadJSON:
			span.RecordError(err)
			span.SetAttributes(attribute.String("error", err.Error()))
			r.fatal(protocol.CloseBadJSON, err)
			return
		}

		if r.OnFrame != nil {
			r.OnFrame(frame)
		}
		if unknown, ok := frame.(protocol.UnknownInbound); ok {
			if r.OnBadSchema != nil {
				r.OnBadSchema(unknown.Type)
			}
			logger.DebugContext(ctx, "unrecognized inbound interaction_type", "interaction_type", unknown.Type)
		}

		if evicted, class := r.inbound.Push(frame); evicted && r.OnEviction != nil {
			r.OnEviction(class)
		}
	}
}

func (r *Reader) fatal(reason protocol.CloseReason, err error) {
	logger.Warn("framed transport read loop closing", "reason", string(reason), "error", err)
	if r.OnFatalClose != nil {
		r.OnFatalClose(reason, err)
	}
}
