// Package metrics provides opt-in aggregation of circuit breaker events.
//
// The breaker itself never emits metrics; it only exposes observer hooks.
// This package turns those hooks into events on a buffered channel and
// aggregates them in a dedicated goroutine, so a slow consumer can never
// stall a protected call path. Events are dropped rather than queued when
// the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	cb := registry.GetBreaker("model-loader", collector.Observers("model-loader")...)
//
//	// Get an aggregate snapshot
//	snapshot := collector.Snapshot()
package metrics
