// Package session is the per-connection supervisor: it wires the protocol
// codec, the bounded queues, the turn-epoch machine, the keepalive engine,
// and the framed transport read/write loops into one WebSocket connection's
// lifetime, and reports its close reason exactly once.
package session
