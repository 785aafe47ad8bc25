package keepalive

import (
	"context"
	"time"

	"github.com/corvid-labs/callbrain/metrics"
	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/queue"
)

// Engine ticks at Interval, pushing a server-initiated ping_pong echo onto
// the outbound queue. It never touches the read side; a client's own
// ping_pong frames are answered separately by the turn machine.
type Engine struct {
	outbound *queue.Queue[queue.Segment]

	interval        time.Duration
	writeDeadlineMS int64

	epochFn    func() int
	speakGenFn func() int
}

// Config carries the tunables the engine needs at construction.
type Config struct {
	Interval        time.Duration
	WriteDeadlineMS int64
	EpochFn         func() int
	SpeakGenFn      func() int
}

func New(outbound *queue.Queue[queue.Segment], cfg Config) *Engine {
	return &Engine{
		outbound:        outbound,
		interval:        cfg.Interval,
		writeDeadlineMS: cfg.WriteDeadlineMS,
		epochFn:         cfg.EpochFn,
		speakGenFn:      cfg.SpeakGenFn,
	}
}

// Run ticks until ctx is done. Each tick enqueues one ping_pong frame tagged
// with the machine's current epoch/speak-gen so a barge-in mid-flight drops
// it exactly like any other stale segment.
func (e *Engine) Run(ctx context.Context) {
	if e.interval <= 0 {
		return
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	now := time.Now().UnixMilli()
	epoch, speakGen := 0, 0
	if e.epochFn != nil {
		epoch = e.epochFn()
	}
	if e.speakGenFn != nil {
		speakGen = e.speakGenFn()
	}

	e.outbound.Push(queue.Segment{
		Epoch:        epoch,
		SpeakGen:     speakGen,
		Seq:          -1,
		Frame:        protocol.NewPingPongOut(now),
		EnqueuedAtMS: now,
		DeadlineMS:   e.writeDeadlineMS,
	})
}

// ObserveDequeue reports queue delay and missed-deadline metrics for a
// ping_pong segment popped off the outbound queue, at nowMS. Non-ping_pong
// segments, or ping_pong segments with no EnqueuedAtMS stamp, are no-ops.
// The missed-deadline counter is only considered when DeadlineMS is set.
func ObserveDequeue(reg *metrics.Registry, seg queue.Segment, nowMS int64) {
	if _, ok := seg.Frame.(protocol.PingPongOut); !ok {
		return
	}
	if seg.EnqueuedAtMS == 0 {
		return
	}
	delay := nowMS - seg.EnqueuedAtMS
	if delay < 0 {
		delay = 0
	}
	reg.Observe(metrics.KeepalivePingPongQueueDelayMS, float64(delay))
	if seg.DeadlineMS > 0 && delay > seg.DeadlineMS {
		reg.Inc(metrics.KeepalivePingPongMissedDeadlineTotal, 1)
	}
}

// ObserveWriteAttempt increments the ping_pong write-attempt counter when
// frame is a ping_pong frame.
func ObserveWriteAttempt(reg *metrics.Registry, frame protocol.Outbound) {
	if _, ok := frame.(protocol.PingPongOut); ok {
		reg.Inc(metrics.KeepalivePingPongWriteAttemptTotal, 1)
	}
}

// ObserveWriteTimeout increments the ping_pong write-timeout counter when
// frame is a ping_pong frame.
func ObserveWriteTimeout(reg *metrics.Registry, frame protocol.Outbound) {
	if _, ok := frame.(protocol.PingPongOut); ok {
		reg.Inc(metrics.KeepalivePingPongWriteTimeoutTotal, 1)
	}
}
