// Package metrics exposes Prometheus instrumentation for the RTP-MIDI
// transport: datagrams per channel and packet type, engine responses,
// disconnects by reason, detected packet loss, active sessions and measured
// clock synchronization latency.
package metrics
