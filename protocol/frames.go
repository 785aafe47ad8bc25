package protocol

import "encoding/json"

// Utterance is one entry in a transcript snapshot.
type Utterance struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Inbound is implemented by every decoded inbound frame variant, including
// UnknownInbound. Callers discriminate via a type switch, never reflection.
type Inbound interface {
	InteractionType() string
}

// ResponseRequired asks the brain to produce a new response for the given
// epoch (ResponseID).
type ResponseRequired struct {
	ResponseID int         `json:"response_id"`
	Transcript []Utterance `json:"transcript"`
}

func (ResponseRequired) InteractionType() string { return "response_required" }

// ReminderRequired carries the same semantics as ResponseRequired, sent by
// the platform after a period of silence.
type ReminderRequired struct {
	ResponseID int         `json:"response_id"`
	Transcript []Utterance `json:"transcript"`
}

func (ReminderRequired) InteractionType() string { return "reminder_required" }

// UpdateOnly carries a transcript snapshot outside of a response turn. A
// Turntaking value of "user_turn" signals barge-in.
type UpdateOnly struct {
	Transcript []Utterance `json:"transcript"`
	Turntaking string      `json:"turntaking,omitempty"`
}

func (UpdateOnly) InteractionType() string { return "update_only" }

// IsUserTurn reports whether this update signals the user has taken the
// turn (barge-in).
func (u UpdateOnly) IsUserTurn() bool { return u.Turntaking == "user_turn" }

// PingPongIn is an inbound keepalive frame.
type PingPongIn struct {
	Timestamp int64 `json:"timestamp"`
}

func (PingPongIn) InteractionType() string { return "ping_pong" }

// Clear is an explicit interruption signal; it applies unconditionally,
// unlike UpdateOnly's turntaking-gated barge-in.
type Clear struct{}

func (Clear) InteractionType() string { return "clear" }

// CallDetails is one-shot session metadata delivered once per call.
type CallDetails struct {
	Raw json.RawMessage `json:"-"`
	// CallID is a best-effort extraction from the nested call object, used
	// only for logging/metric labels. Absence is never fatal.
	CallID string `json:"-"`
}

func (CallDetails) InteractionType() string { return "call_details" }

// UnknownInbound is the catch-all for any interaction_type this version of
// the brain does not recognize. It must decode successfully and be counted,
// never treated as a fatal condition.
type UnknownInbound struct {
	Type string
	Raw  json.RawMessage
}

func (u UnknownInbound) InteractionType() string { return u.Type }

// Outbound is implemented by every encodable outbound frame variant.
type Outbound interface {
	ResponseType() string
}

// Config is sent once at session open.
type Config struct {
	Type            string `json:"response_type"`
	CallDetails             bool   `json:"call_details"`
	TranscriptWithToolCalls bool   `json:"transcript_with_tool_calls"`
}

func NewConfig() Config {
	return Config{Type: "config", CallDetails: true, TranscriptWithToolCalls: true}
}

func (Config) ResponseType() string { return "config" }

// Response is a speech chunk. ContentComplete=true is terminal for its
// ResponseID: at most one such frame may be written per epoch.
type Response struct {
	Type    string `json:"response_type"`
	ResponseID      int    `json:"response_id"`
	Content         string `json:"content"`
	ContentComplete bool   `json:"content_complete"`
}

func NewResponse(responseID int, content string, complete bool) Response {
	return Response{Type: "response", ResponseID: responseID, Content: content, ContentComplete: complete}
}

func (Response) ResponseType() string { return "response" }

// PingPongOut is a keepalive echo or heartbeat.
type PingPongOut struct {
	Type string `json:"response_type"`
	Timestamp    int64  `json:"timestamp"`
}

func NewPingPongOut(timestamp int64) PingPongOut {
	return PingPongOut{Type: "ping_pong", Timestamp: timestamp}
}

func (PingPongOut) ResponseType() string { return "ping_pong" }

// AgentInterrupt is reserved and disabled by default; it is defined here so
// the codec round-trips it, not because the core emits it.
type AgentInterrupt struct {
	Type string `json:"response_type"`
}

func (AgentInterrupt) ResponseType() string { return "agent_interrupt" }

// UpdateAgent carries agent-state metadata the platform may display.
// Supplements spec.md's outbound set per original_source's protocol.py.
type UpdateAgent struct {
	Type string          `json:"response_type"`
	Agent        json.RawMessage `json:"agent,omitempty"`
}

func (UpdateAgent) ResponseType() string { return "update_agent" }

// ToolCallInvocation asks the platform to execute a tool on the brain's
// behalf. The core never executes tools itself (out of scope); it only
// relays an opaque invocation produced by its producer collaborator.
type ToolCallInvocation struct {
	Type string          `json:"response_type"`
	ToolCallID   string          `json:"tool_call_id"`
	Name         string          `json:"name"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
}

func (ToolCallInvocation) ResponseType() string { return "tool_call_invocation" }

// ToolCallResult reports back the result of a tool call the brain already
// ran on the producer's behalf.
type ToolCallResult struct {
	Type string `json:"response_type"`
	ToolCallID   string `json:"tool_call_id"`
	Content      string `json:"content"`
}

func (ToolCallResult) ResponseType() string { return "tool_call_result" }

// Metadata is free-form, non-speech sideband metadata.
type Metadata struct {
	Type string          `json:"response_type"`
	Data         json.RawMessage `json:"data,omitempty"`
}

func (Metadata) ResponseType() string { return "metadata" }
