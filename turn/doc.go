// Package turn implements the turn-epoch machine and the per-turn handler
// runtime: the hardest part of the brain, because it must reconcile three
// independently-evolving clocks — the platform's turn clock, the local
// producer clock, and the writer's deadline clock — while preserving
// ordering and at-most-once speech per turn.
//
// Machine owns the session's epoch and speak-generation counters, the
// current turn's private output queue, and a persistent forwarding
// goroutine that relays segments from that queue into the session's
// outbound queue. The forwarding goroutine is long-lived: it runs until the
// machine's base context is done and is rebound to a new queue on every
// turn rather than replaced, which
// is what avoids the hazard of a per-turn waiter parked on a queue that has
// since been discarded.
//
// Handler is the per-turn producer runtime: it emits a deterministic ACK
// segment, streams whatever its producer collaborator yields, and emits
// exactly one terminal segment unless cancelled — in which case the
// Machine, not the Handler, emits the terminal frame that closes out the
// epoch.
package turn
