// Package circuitbreaker implements the circuit breaker pattern for guarding
// calls to unreliable external dependencies.
//
// A circuit breaker fails fast instead of piling up latency against a
// known-bad dependency. It has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Dependency failing, calls rejected immediately
//   - HALF-OPEN: Testing recovery with a single probe call
//
// Recovery is driven lazily by wall-clock comparison at call time; there are
// no background timers. The Registry hands out one shared breaker per
// dependency name.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(logger, nil)
//	cb := registry.GetOrCreate("datastore", 5, 60*time.Second)
//	result, err := cb.Execute(func() (any, error) {
//	    return store.Read(ctx, key)
//	})
//	if circuitbreaker.IsCircuitOpen(err) {
//	    // Degraded mode: the dependency is known to be down.
//	}
package circuitbreaker
