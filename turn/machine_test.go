package turn

import (
	"context"
	"testing"
	"time"

	"github.com/corvid-labs/callbrain/memory"
	"github.com/corvid-labs/callbrain/protocol"
	"github.com/corvid-labs/callbrain/queue"
)

func waitForResponse(t *testing.T, out *queue.Queue[queue.Segment], predicate func(protocol.Response) bool) protocol.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		seg, ok := out.Pop(ctx)
		if !ok {
			t.Fatalf("timed out waiting for expected response")
		}
		if r, ok := seg.Frame.(protocol.Response); ok && predicate(r) {
			return r
		}
	}
}

func echoProducer(chunks ...string) Producer {
	return func(ctx context.Context, transcript []memory.Utterance, emit func(string)) error {
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			emit(c)
		}
		return nil
	}
}

func blockingProducer() Producer {
	return func(ctx context.Context, transcript []memory.Utterance, emit func(string)) error {
		<-ctx.Done()
		return nil
	}
}

func TestResponseRequiredEmitsTerminalOnCompletion(t *testing.T) {
	out := queue.NewOutbound(32)
	m := New(context.Background(), out, echoProducer("hello", "there"), nil)

	m.OnResponseRequired(1, nil)

	terminal := waitForResponse(t, out, func(r protocol.Response) bool {
		return r.ResponseID == 1 && r.ContentComplete
	})
	if terminal.Content != "" {
		t.Fatalf("expected empty terminal content, got %q", terminal.Content)
	}
}

func TestEpochPreemptionCancelsOldHandler(t *testing.T) {
	out := queue.NewOutbound(32)
	m := New(context.Background(), out, blockingProducer(), nil)

	m.OnResponseRequired(3, nil)
	time.Sleep(20 * time.Millisecond)
	m.OnResponseRequired(4, nil)

	if got := m.Epoch(); got != 4 {
		t.Fatalf("expected epoch 4, got %d", got)
	}

	// The epoch-3 handler may have already emitted its ACK before
	// preemption fired, but no epoch-3 frame may appear after the first
	// epoch-4 frame: the epoch-3 handler task must have exited by then.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	seenEpoch4 := false
	for {
		seg, ok := out.Pop(ctx)
		if !ok {
			return
		}
		r, ok := seg.Frame.(protocol.Response)
		if !ok {
			continue
		}
		if r.ResponseID == 4 {
			seenEpoch4 = true
		}
		if r.ResponseID == 3 && seenEpoch4 {
			t.Fatalf("did not expect an epoch 3 frame after epoch 4 started, got %+v", r)
		}
	}
}

func TestBargeInCancelsAndEmitsEmptyTerminal(t *testing.T) {
	out := queue.NewOutbound(32)
	m := New(context.Background(), out, blockingProducer(), nil)

	m.OnResponseRequired(7, nil)
	time.Sleep(20 * time.Millisecond)

	m.OnUpdateOnly(protocol.UpdateOnly{Turntaking: "user_turn"})

	terminal := waitForResponse(t, out, func(r protocol.Response) bool {
		return r.ResponseID == 7 && r.ContentComplete
	})
	if terminal.Content != "" {
		t.Fatalf("expected empty terminal content on barge-in, got %q", terminal.Content)
	}
}

func TestClearAppliesWithoutTurntakingField(t *testing.T) {
	out := queue.NewOutbound(32)
	m := New(context.Background(), out, blockingProducer(), nil)

	m.OnResponseRequired(2, nil)
	time.Sleep(20 * time.Millisecond)

	m.OnClear()

	terminal := waitForResponse(t, out, func(r protocol.Response) bool {
		return r.ResponseID == 2 && r.ContentComplete
	})
	if terminal.Content != "" {
		t.Fatalf("expected empty terminal content on clear, got %q", terminal.Content)
	}
}

func TestPingPongEnqueuesEcho(t *testing.T) {
	out := queue.NewOutbound(32)
	m := New(context.Background(), out, nil, nil)

	m.OnPingPong(12345, 1000, 100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	seg, ok := out.Pop(ctx)
	if !ok {
		t.Fatalf("expected a queued ping echo")
	}
	p, ok := seg.Frame.(protocol.PingPongOut)
	if !ok || p.Timestamp != 12345 {
		t.Fatalf("expected ping echo with timestamp 12345, got %+v", seg.Frame)
	}
}

func TestSlotBackupRollsBackOnlyIfUncommitted(t *testing.T) {
	s := newSlotBackup()
	s.arm(1, "tentative")

	if _, ok := s.rollbackIfNeeded(1); !ok {
		t.Fatalf("expected rollback for an armed, uncommitted epoch")
	}

	s.arm(2, "tentative-2")
	s.commit(2)
	if _, ok := s.rollbackIfNeeded(2); ok {
		t.Fatalf("did not expect rollback for a committed epoch")
	}
}

func TestSlotBackupCommitAfterFirstSegmentPreventsRollback(t *testing.T) {
	out := queue.NewOutbound(32)
	rolledBack := make(chan SlotSnapshot, 1)
	m := New(context.Background(), out, echoProducer("hi"), func(s SlotSnapshot) {
		rolledBack <- s
	})

	m.ArmSlotBackup(1, "tentative-slot-value")
	m.OnResponseRequired(1, nil)

	waitForResponse(t, out, func(r protocol.Response) bool { return r.ResponseID == 1 && r.ContentComplete })

	m.OnResponseRequired(2, nil)

	select {
	case s := <-rolledBack:
		t.Fatalf("did not expect a rollback once epoch 1 had emitted a segment, got %v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIdempotentResponseRequiredUpdatesTranscript(t *testing.T) {
	out := queue.NewOutbound(32)
	seen := make(chan []memory.Utterance, 4)
	producer := func(ctx context.Context, transcript []memory.Utterance, emit func(string)) error {
		seen <- transcript
		<-ctx.Done()
		return nil
	}
	m := New(context.Background(), out, producer, nil)

	m.OnResponseRequired(1, []memory.Utterance{{Role: "user", Text: "first"}})
	<-seen

	m.OnResponseRequired(1, []memory.Utterance{{Role: "user", Text: "second"}})

	m.mu.Lock()
	snap := m.transcript.snapshot()
	m.mu.Unlock()
	if len(snap) != 1 || snap[0].Text != "second" {
		t.Fatalf("expected idempotent transcript update to 'second', got %+v", snap)
	}
}

func TestSetRendererAppliesToEmittedContent(t *testing.T) {
	out := queue.NewOutbound(32)
	m := New(context.Background(), out, echoProducer("hello"), nil)
	m.SetRenderer(func(s string) string {
		if s == "" {
			return s
		}
		return "[" + s + "]"
	})

	m.OnResponseRequired(1, nil)

	got := waitForResponse(t, out, func(r protocol.Response) bool {
		return r.ResponseID == 1 && r.Content == "[hello]"
	})
	if got.Content != "[hello]" {
		t.Fatalf("expected rendered content, got %q", got.Content)
	}
}
