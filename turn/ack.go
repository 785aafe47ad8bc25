package turn

import (
	"fmt"
	"hash/fnv"
)

// ackPhrases are the stock deterministic acknowledgements a handler may
// choose from for its first segment. The empty string is included so a
// tool-first turn (whose producer has no text to say yet) can legitimately
// ACK with silence.
var ackPhrases = []string{"", "Mm-hmm.", "Okay.", "Got it.", "One moment."}

// deterministicACK picks the ACK segment content as a pure function of
// (callID, turnID, segmentKind, segmentIndex), so replays are reproducible.
func deterministicACK(callID, turnID, segmentKind string, segmentIndex int) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%s|%d", callID, turnID, segmentKind, segmentIndex)
	return ackPhrases[int(h.Sum32())%len(ackPhrases)]
}
