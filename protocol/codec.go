package protocol

import (
	"encoding/json"
	"fmt"
)

// Classification is the outcome of attempting to decode one inbound frame.
type Classification string

const (
	// ClassOK means the frame decoded into a known or unknown-but-tolerated
	// variant; the session stays open either way.
	ClassOK Classification = "ok"
	// ClassFrameTooLarge means the frame exceeded the configured size cap.
	// This is structural and fatal.
	ClassFrameTooLarge Classification = "frame_too_large"
	// ClassBadJSON means the frame bytes were not valid JSON. Structural
	// and fatal.
	ClassBadJSON Classification = "bad_json"
)

type inboundEnvelope struct {
	InteractionType string `json:"interaction_type"`
}

// Decode parses one inbound WebSocket text frame. maxBytes enforces
// WS_MAX_FRAME_BYTES; a frame exactly at the limit is accepted, one byte
// over is rejected. Unknown interaction_type values never produce an error:
// they decode into UnknownInbound so schema drift never closes the session.
func Decode(data []byte, maxBytes int) (Inbound, Classification, error) {
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, ClassFrameTooLarge, fmt.Errorf("protocol: frame of %d bytes exceeds max %d", len(data), maxBytes)
	}

	var envelope inboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, ClassBadJSON, fmt.Errorf("protocol: malformed inbound frame: %w", err)
	}

	switch envelope.InteractionType {
	case "response_required":
		var f ResponseRequired
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ClassBadJSON, fmt.Errorf("protocol: malformed response_required: %w", err)
		}
		return f, ClassOK, nil
	case "reminder_required":
		var f ReminderRequired
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ClassBadJSON, fmt.Errorf("protocol: malformed reminder_required: %w", err)
		}
		return f, ClassOK, nil
	case "update_only":
		var f UpdateOnly
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ClassBadJSON, fmt.Errorf("protocol: malformed update_only: %w", err)
		}
		return f, ClassOK, nil
	case "ping_pong":
		var f PingPongIn
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ClassBadJSON, fmt.Errorf("protocol: malformed ping_pong: %w", err)
		}
		return f, ClassOK, nil
	case "clear":
		return Clear{}, ClassOK, nil
	case "call_details":
		return decodeCallDetails(data), ClassOK, nil
	default:
		return UnknownInbound{Type: envelope.InteractionType, Raw: append(json.RawMessage(nil), data...)}, ClassOK, nil
	}
}

func decodeCallDetails(data []byte) CallDetails {
	cd := CallDetails{Raw: append(json.RawMessage(nil), data...)}

	var wrapper struct {
		Call struct {
			CallID string `json:"call_id"`
		} `json:"call"`
	}
	// call_details payload shape varies by platform version; extraction is
	// best-effort and never fatal.
	if err := json.Unmarshal(data, &wrapper); err == nil {
		cd.CallID = wrapper.Call.CallID
	}
	return cd
}

// Encode produces the minimal JSON encoding of an outbound frame.
func Encode(frame Outbound) ([]byte, error) {
	return json.Marshal(frame)
}
