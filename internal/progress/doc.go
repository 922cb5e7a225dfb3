// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the collection loop uses to report session progress. Events are
// batched on a background goroutine and fanned out to pluggable sinks such as
// Prometheus metrics, structured logs, or the in-memory status view served by
// the ops API.
package progress
