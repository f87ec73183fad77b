// Package metrics provides real-time metrics collection for the guarded
// dependencies.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Call outcomes per dependency (successes, failures, fast-fail rejections)
//   - Breaker state transition counts and the last observed state
//   - Probe latencies with percentile calculations (P50, P95, P99)
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the call path. Events are sent via buffered channels with
// non-blocking semantics, so a full buffer drops events rather than stalling
// a guarded call.
//
// Example usage:
//
//	collector := metrics.NewCollector(1024, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.Event{
//		Type:       metrics.EventCallRejected,
//		Timestamp:  time.Now(),
//		Dependency: "datastore",
//	})
//
//	snapshot := collector.Snapshot()
//
// The package provides thread-safe metrics storage using sync.RWMutex and
// supports graceful shutdown with event draining to prevent data loss.
package metrics
