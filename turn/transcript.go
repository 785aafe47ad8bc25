package turn

import (
	"sync"

	"github.com/corvid-labs/callbrain/memory"
)

// transcriptHolder lets a live handler receive an idempotent transcript
// update for its own epoch (the same response_id delivered twice with a
// fresher snapshot) without restarting the turn.
type transcriptHolder struct {
	mu         sync.RWMutex
	utterances []memory.Utterance
}

func newTranscriptHolder(utterances []memory.Utterance) *transcriptHolder {
	return &transcriptHolder{utterances: utterances}
}

func (h *transcriptHolder) update(utterances []memory.Utterance) {
	h.mu.Lock()
	h.utterances = utterances
	h.mu.Unlock()
}

func (h *transcriptHolder) snapshot() []memory.Utterance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]memory.Utterance(nil), h.utterances...)
}
