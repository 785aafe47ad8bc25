package turn

import (
	"context"
	"fmt"

	"github.com/corvid-labs/callbrain/memory"
	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/queue"
)

// Producer streams content for one turn. emit must be called for every
// non-terminal chunk the producer wants spoken; it is safe to call after
// ctx is done (the handler simply drops it). Producer must return promptly
// once ctx is done — no shielded regions are allowed to outlive the token.
type Producer func(ctx context.Context, transcript []memory.Utterance, emit func(content string)) error

// handler is a TurnHandler: the per-epoch task that produces segments via
// a Producer, tagging each with the handler's speak-generation at emission
// time. speakGenFn always reflects the machine's live value, so a change
// observed mid-stream signals that cancellation has fired for this turn.
type handler struct {
	epoch  int
	callID string
	turnID string

	transcript *transcriptHolder
	outQ       *queue.Queue[queue.Segment]

	speakGenFn  func() int
	onFirstEmit func(epoch int)
	render      func(string) string

	seq int
}

func newHandler(epoch int, callID, turnID string, transcript *transcriptHolder, outQ *queue.Queue[queue.Segment], speakGenFn func() int, onFirstEmit func(int), render func(string) string) *handler {
	return &handler{
		epoch:       epoch,
		callID:      callID,
		turnID:      turnID,
		transcript:  transcript,
		outQ:        outQ,
		speakGenFn:  speakGenFn,
		onFirstEmit: onFirstEmit,
		render:      render,
	}
}

// run drives the handler to completion. onExit is always called exactly
// once, with the error the producer returned (nil on clean completion or
// on cancellation).
func (h *handler) run(ctx context.Context, produce Producer, onExit func(epoch int, err error)) {
	defer func() {
		if r := recover(); r != nil {
			onExit(h.epoch, fmt.Errorf("turn handler panicked: %v", r))
		}
	}()

	ack := deterministicACK(h.callID, h.turnID, "ack", h.seq)
	h.emit(ack, false)

	err := produce(ctx, h.transcript.snapshot(), func(content string) {
		if ctx.Err() != nil {
			return
		}
		h.emit(content, false)
	})

	if ctx.Err() != nil {
		// Cancelled: the machine owns emitting the empty terminal frame for
		// this epoch. No shielded finalization here.
		onExit(h.epoch, nil)
		return
	}

	// Normal completion or contained producer failure: the handler still
	// finalizes so the remote state machine is left in a defined state.
	h.emit("", true)
	onExit(h.epoch, err)
}

func (h *handler) emit(content string, complete bool) {
	if h.render != nil {
		content = h.render(content)
	}

	first := h.seq == 0
	h.seq++
	h.outQ.Push(queue.Segment{
		Epoch:    h.epoch,
		SpeakGen: h.speakGenFn(),
		Seq:      h.seq,
		Frame:    protocol.NewResponse(h.epoch, content, complete),
	})
	if first && h.onFirstEmit != nil {
		h.onFirstEmit(h.epoch)
	}
}
