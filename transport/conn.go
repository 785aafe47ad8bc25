// Package transport implements the framed I/O layer: a read loop that
// classifies and enqueues inbound frames, and a write loop that dequeues
// outbound frames in priority order under a hard per-frame deadline.
package transport

import "time"

// Conn is the subset of *websocket.Conn the reader and writer depend on.
// Narrowing to an interface lets tests drive the loops with a fake
// transport instead of a real socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}
