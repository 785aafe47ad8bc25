package metrics

// Dotted metric names named directly by the wire/transport contract. The
// Prometheus exporter translates dots to underscores on export.
const (
	InboundBadSchemaTotal      = "inbound.bad_schema_total"
	InboundQueueEvictionsTotal = "inbound.queue_evictions_total"

	WSWriteTimeoutTotal = "ws.write_timeout_total"
	WSCloseReasonTotal  = "ws_close_reason_total"

	StaleSegmentDroppedTotal = "stale_segment_dropped_total"

	KeepalivePingPongQueueDelayMS         = "keepalive.ping_pong_queue_delay_ms"
	KeepalivePingPongMissedDeadlineTotal  = "keepalive.ping_pong_missed_deadline_total"
	KeepalivePingPongWriteAttemptTotal    = "keepalive.ping_pong_write_attempt_total"
	KeepalivePingPongWriteTimeoutTotal    = "keepalive.ping_pong_write_timeout_total"

	MemoryTranscriptCompactionsTotal = "memory.transcript_compactions_total"
)
