package queue

import "github.com/corvid-labs/callbrain/protocol"

// Inbound priority classes, highest first. Control frames are delivered to
// the turn-epoch machine before any backlog of update_only frames that
// arrived earlier but had not yet been processed.
const (
	InboundControl Class = iota
	InboundTurn
	InboundUpdate
)

// NewInbound builds the bounded inbound queue with the eviction policy from
// the framed-transport spec: on overflow, the oldest UPDATE frame is
// dropped first, then the oldest TURN frame, but the most recent
// response_required/reminder_required is never evicted. CONTROL is never
// evicted.
func NewInbound(capacity int) *Queue[protocol.Inbound] {
	return New(Config[protocol.Inbound]{
		Capacity: capacity,
		Order:    []Class{InboundControl, InboundTurn, InboundUpdate},
		Classify: classifyInbound,
		Protected: func(c Class) bool {
			return c == InboundControl
		},
		EvictFromHead: func(Class) bool { return true },
		MinRetain: func(c Class) int {
			if c == InboundTurn {
				return 1
			}
			return 0
		},
	})
}

func classifyInbound(f protocol.Inbound) Class {
	switch f.(type) {
	case protocol.PingPongIn, protocol.Clear:
		return InboundControl
	case protocol.ResponseRequired, protocol.ReminderRequired:
		return InboundTurn
	case protocol.UpdateOnly:
		return InboundUpdate
	default:
		// call_details and UnknownInbound are one-shot/uncommon; treat as
		// control so they are never starved or evicted.
		return InboundControl
	}
}
