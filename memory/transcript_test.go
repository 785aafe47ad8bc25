package memory

import "testing"

func TestAppendKeepsUnderBoundsVerbatim(t *testing.T) {
	r := New(10, 0)
	r.Append("user", "hello")
	r.Append("agent", "hi there")

	summary, utterances := r.Snapshot()
	if summary != nil {
		t.Fatalf("expected no summary yet, got %+v", summary)
	}
	if len(utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(utterances))
	}
}

func TestAppendCompactsOldestWhenOverMaxUtterances(t *testing.T) {
	r := New(3, 0)
	r.keepVerbatim = 2

	for i := 0; i < 5; i++ {
		r.Append("user", "msg")
	}

	summary, utterances := r.Snapshot()
	if summary == nil {
		t.Fatalf("expected compaction to have produced a summary")
	}
	if len(utterances) != 2 {
		t.Fatalf("expected 2 verbatim utterances retained, got %d", len(utterances))
	}
	if r.Compactions() == 0 {
		t.Fatalf("expected at least one compaction to be recorded")
	}
}

func TestCompactionIsDeterministic(t *testing.T) {
	build := func() *Summary {
		r := New(2, 0)
		r.keepVerbatim = 1
		r.Append("user", "one")
		r.Append("agent", "two")
		r.Append("user", "three")
		summary, _ := r.Snapshot()
		return summary
	}

	a := build()
	b := build()
	if a == nil || b == nil {
		t.Fatalf("expected both runs to compact")
	}
	if a.Digest != b.Digest {
		t.Fatalf("expected deterministic digest, got %q vs %q", a.Digest, b.Digest)
	}
}

func TestPromptViewReturnsVerbatimWhenNoCompaction(t *testing.T) {
	r := New(10, 0)
	r.Append("user", "hello")

	view := r.PromptView()
	if len(view) != 1 || view[0].Text != "hello" {
		t.Fatalf("expected a single verbatim utterance, got %+v", view)
	}
}

func TestPromptViewLeadsWithSummaryThenVerbatimTail(t *testing.T) {
	r := New(3, 0)
	r.keepVerbatim = 2

	for i := 0; i < 5; i++ {
		r.Append("user", "msg")
	}

	view := r.PromptView()
	if len(view) != 3 {
		t.Fatalf("expected summary + 2 verbatim utterances, got %d: %+v", len(view), view)
	}
	if view[0].Role != "system" {
		t.Fatalf("expected the summary to lead as a system utterance, got %+v", view[0])
	}
	if view[1].Text != "msg" || view[2].Text != "msg" {
		t.Fatalf("expected the verbatim tail to follow the summary, got %+v", view[1:])
	}
}

func TestMinimizePIIReducesPhoneNumberToLast4(t *testing.T) {
	got := minimizePII("call me at 555-123-4567 tomorrow")
	want := "call me at ***-4567 tomorrow"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
