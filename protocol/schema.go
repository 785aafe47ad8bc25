package protocol

import "github.com/invopop/jsonschema"

// InboundSchema reflects the JSON schema for every known inbound frame
// variant, keyed by its interaction_type. Deployments use it to validate a
// platform's outgoing frames against this brain's expectations, or to
// publish a debug endpoint describing the wire contract.
func InboundSchema() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return map[string]*jsonschema.Schema{
		"response_required": reflector.Reflect(&ResponseRequired{}),
		"reminder_required": reflector.Reflect(&ReminderRequired{}),
		"update_only":       reflector.Reflect(&UpdateOnly{}),
		"ping_pong":         reflector.Reflect(&PingPongIn{}),
		"clear":             reflector.Reflect(&Clear{}),
		"call_details":      reflector.Reflect(&CallDetails{}),
	}
}
