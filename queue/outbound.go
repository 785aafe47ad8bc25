package queue

import "github.com/corvid-labs/callbrain/protocol"

// Outbound priority classes, highest first.
const (
	OutboundControl Class = iota
	OutboundTerminal
	OutboundSpeech
	OutboundLow
)

// Segment is the internal envelope around an outbound frame, tagged with
// the epoch/speak-generation/sequence triple used for staleness checks.
// EnqueuedAtMS/DeadlineMS are only set on ping_pong segments (by the
// keepalive engine and by the turn machine's ping_pong echo), to let the
// writer report ping/pong queue delay and missed-deadline metrics; every
// other producer leaves them zero.
type Segment struct {
	Epoch    int
	SpeakGen int
	Seq      int
	Frame    protocol.Outbound

	EnqueuedAtMS int64
	DeadlineMS   int64
}

// NewOutbound builds the bounded outbound queue. On overflow it drops from
// the tail of the lowest-priority class present; CONTROL and TERMINAL are
// never dropped.
func NewOutbound(capacity int) *Queue[Segment] {
	return New(Config[Segment]{
		Capacity: capacity,
		Order:    []Class{OutboundControl, OutboundTerminal, OutboundSpeech, OutboundLow},
		Classify: classifyOutbound,
		Protected: func(c Class) bool {
			return c == OutboundControl || c == OutboundTerminal
		},
	})
}

func classifyOutbound(s Segment) Class {
	switch f := s.Frame.(type) {
	case protocol.Config:
		// The session-open config frame must precede everything else.
		return OutboundControl
	case protocol.PingPongOut:
		return OutboundControl
	case protocol.Response:
		if f.ContentComplete {
			if f.Content == "" {
				return OutboundControl
			}
			return OutboundTerminal
		}
		return OutboundSpeech
	default:
		return OutboundLow
	}
}
