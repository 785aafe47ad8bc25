// Package protocol defines the Custom-LLM-over-WebSocket wire contract
// between the platform and the brain.
//
// Frames are JSON text frames. Inbound frames are discriminated by
// interaction_type; outbound frames are discriminated by response_type.
// Unknown interaction_type values decode into UnknownInbound rather than
// failing the session: schema drift at the remote end must never close a
// call, only hard structural failures (oversized frame, malformed JSON) do.
//
// Inbound variants
//
//   - ResponseRequired (response_required): platform asks for a new response;
//     ResponseID is the epoch identifier for that response.
//   - ReminderRequired (reminder_required): same semantics as ResponseRequired,
//     sent after a period of silence.
//   - UpdateOnly (update_only): a transcript snapshot, optionally carrying a
//     turntaking signal ("user_turn" means barge-in).
//   - PingPongIn (ping_pong): keepalive echo request.
//   - Clear (clear): explicit interruption signal, no response_id required.
//   - CallDetails (call_details): one-shot session metadata delivered once
//     per call.
//   - UnknownInbound: catch-all for any interaction_type not recognized above.
//
// Outbound variants
//
//   - Config (config): sent once at session open.
//   - Response (response): a speech chunk; ContentComplete=true is terminal
//     for that response_id.
//   - PingPongOut (ping_pong): keepalive echo or heartbeat.
//   - AgentInterrupt (agent_interrupt): reserved, disabled by default.
//   - UpdateAgent (update_agent): agent-state metadata, emitted opportunistically.
//   - ToolCallInvocation (tool_call_invocation): a tool invocation the brain
//     is requesting the platform perform on its behalf.
//   - ToolCallResult (tool_call_result): the brain reporting back the result
//     of a tool call it already ran.
//   - Metadata (metadata): free-form, non-speech sideband metadata.
package protocol
