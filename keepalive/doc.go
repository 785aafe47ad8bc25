// Package keepalive runs the server-initiated ping loop and reports the
// queue-delay/missed-deadline/write-attempt/write-timeout metrics for both
// server-initiated pings and client-echoed ping_pong frames.
package keepalive
