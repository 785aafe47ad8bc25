package turn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/corvid-labs/callbrain/memory"
	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/queue"
	"github.com/google/uuid"
)

// Machine is the turn-epoch state machine: it owns epoch, speak-generation,
// the current turn's private output queue, and the persistent forwarding
// goroutine that relays that queue into the session's outbound queue.
type Machine struct {
	mu sync.Mutex

	epoch    int
	speakGen int

	activeQ       *queue.Queue[queue.Segment]
	activeQCtx    context.Context
	activeQCancel context.CancelFunc

	handlerCancel context.CancelFunc
	handlerEpoch  int
	transcript    *transcriptHolder

	outbound     *queue.Queue[queue.Segment]
	producer     Producer
	render       func(string) string
	slot         *slotBackup
	onRollback   func(SlotSnapshot)
	onHandlerEnd func(epoch int, err error)

	baseCtx context.Context
	callID  string

	staleDropped atomic.Int64
}

// New builds a Machine bound to outbound for its lifetime (baseCtx). It
// immediately starts the persistent turn-output consumer goroutine, which
// runs until baseCtx is done. onRollback, if non-nil, is invoked with the
// slot snapshot the dialogue-policy collaborator armed for an epoch that
// was abandoned before it emitted any segment.
func New(baseCtx context.Context, outbound *queue.Queue[queue.Segment], producer Producer, onRollback func(SlotSnapshot)) *Machine {
	m := &Machine{
		outbound:   outbound,
		producer:   producer,
		slot:       newSlotBackup(),
		onRollback: onRollback,
		baseCtx:    baseCtx,
	}
	m.activeQ = queue.NewOutbound(64)
	m.activeQCtx, m.activeQCancel = context.WithCancel(baseCtx)

	go m.runPersistentConsumer()
	return m
}

// Epoch returns the machine's current epoch.
func (m *Machine) Epoch() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// SpeakGen returns the machine's current speak-generation.
func (m *Machine) SpeakGen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakGen
}

// StaleDropped returns how many segments were dropped by the machine's own
// staleness gate (duplicated intentionally on top of the writer's check).
func (m *Machine) StaleDropped() int64 {
	return m.staleDropped.Load()
}

// SetCallID tags subsequent handlers' ACK derivation with the call id.
func (m *Machine) SetCallID(callID string) {
	m.mu.Lock()
	m.callID = callID
	m.mu.Unlock()
}

// SetRenderer installs the speech-pacing markup renderer every subsequently
// created handler's emitted content is passed through. A nil renderer (the
// default) leaves content unmodified.
func (m *Machine) SetRenderer(render func(string) string) {
	m.mu.Lock()
	m.render = render
	m.mu.Unlock()
}

// ArmSlotBackup records a tentative slot snapshot for the given epoch. Call
// this from the dialogue-policy collaborator before tentatively mutating
// slot state for a turn.
func (m *Machine) ArmSlotBackup(epoch int, snapshot SlotSnapshot) {
	m.slot.arm(epoch, snapshot)
}

// runPersistentConsumer is the one long-lived waiter that owns forwarding
// from whichever queue is currently active into the outbound queue. It
// rebinds to a new queue whenever the machine swaps activeQ in rather than
// being replaced itself, which is what the REQUIRED swap rule guards.
func (m *Machine) runPersistentConsumer() {
	for {
		m.mu.Lock()
		q := m.activeQ
		qCtx := m.activeQCtx
		m.mu.Unlock()

		for {
			seg, ok := q.Pop(qCtx)
			if !ok {
				break
			}
			m.forwardIfLive(seg)
		}

		if m.baseCtx.Err() != nil {
			return
		}
		// qCtx was cancelled because activeQ was swapped; loop rebinds to
		// the new one on the next iteration.
	}
}

func (m *Machine) forwardIfLive(seg queue.Segment) {
	m.mu.Lock()
	live := seg.Epoch == m.epoch && seg.SpeakGen == m.speakGen
	m.mu.Unlock()

	if !live {
		m.staleDropped.Add(1)
		return
	}
	m.outbound.Push(seg)
}

// OnResponseRequired implements the response_required/reminder_required
// dispatch rule: stale ids are dropped, a matching in-flight epoch gets an
// idempotent transcript refresh, and anything else triggers a full epoch
// transition.
func (m *Machine) OnResponseRequired(responseID int, utterances []memory.Utterance) {
	m.mu.Lock()
	if responseID < m.epoch {
		m.mu.Unlock()
		return
	}
	if responseID == m.epoch && m.handlerEpoch == responseID && m.transcript != nil {
		m.transcript.update(utterances)
		m.mu.Unlock()
		return
	}

	oldCancel := m.handlerCancel
	oldEpoch := m.epoch

	m.epoch = responseID
	m.speakGen = 0

	m.activeQCancel()
	newQ := queue.NewOutbound(64)
	newQCtx, newQCancel := context.WithCancel(m.baseCtx)
	m.activeQ = newQ
	m.activeQCtx = newQCtx
	m.activeQCancel = newQCancel

	handlerCtx, handlerCancel := context.WithCancel(m.baseCtx)
	m.handlerCancel = handlerCancel
	m.handlerEpoch = responseID

	holder := newTranscriptHolder(utterances)
	m.transcript = holder
	callID := m.callID
	render := m.render
	m.mu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}
	if snapshot, ok := m.slot.rollbackIfNeeded(oldEpoch); ok && m.onRollback != nil {
		m.onRollback(snapshot)
	}

	turnID := uuid.NewString()
	speakGenFn := func() int { return m.SpeakGen() }
	onFirstEmit := func(epoch int) { m.slot.commit(epoch) }

	h := newHandler(responseID, callID, turnID, holder, newQ, speakGenFn, onFirstEmit, render)
	if m.producer != nil {
		onEnd := m.onHandlerEnd
		if onEnd == nil {
			onEnd = func(int, error) {}
		}
		go h.run(handlerCtx, m.producer, onEnd)
	}
}

// OnHandlerEnd registers a callback invoked exactly once per handler when
// it exits, with the error its producer returned (nil on clean completion
// or cancellation). Intended for logging/metrics wiring by the session
// supervisor.
func (m *Machine) OnHandlerEnd(fn func(epoch int, err error)) {
	m.mu.Lock()
	m.onHandlerEnd = fn
	m.mu.Unlock()
}

// OnUpdateOnly implements barge-in: an update_only frame carrying
// turntaking=user_turn cancels the active handler and terminates its epoch
// cleanly.
func (m *Machine) OnUpdateOnly(u protocol.UpdateOnly) {
	if u.IsUserTurn() {
		m.bargeIn()
	}
}

// OnClear implements the clear frame: identical routing to barge-in, but
// applies unconditionally.
func (m *Machine) OnClear() {
	m.bargeIn()
}

func (m *Machine) bargeIn() {
	m.mu.Lock()
	epoch := m.epoch
	m.speakGen++
	speakGen := m.speakGen
	cancel := m.handlerCancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	m.outbound.Push(queue.Segment{
		Epoch:    epoch,
		SpeakGen: speakGen,
		Seq:      -1,
		Frame:    protocol.NewResponse(epoch, "", true),
	})
}

// OnPingPong enqueues an immediate echo at CONTROL priority. nowMS/deadlineMS
// tag the segment for the writer's keepalive queue-delay and missed-deadline
// metrics; a caller with no deadline policy may pass 0 for deadlineMS.
func (m *Machine) OnPingPong(timestamp, nowMS, deadlineMS int64) {
	m.mu.Lock()
	epoch := m.epoch
	speakGen := m.speakGen
	m.mu.Unlock()

	m.outbound.Push(queue.Segment{
		Epoch:        epoch,
		SpeakGen:     speakGen,
		Seq:          -1,
		Frame:        protocol.NewPingPongOut(timestamp),
		EnqueuedAtMS: nowMS,
		DeadlineMS:   deadlineMS,
	})
}

