// Package upstream models the guarded external dependencies. Each upstream
// tracks its own health status and probe latency; the corresponding circuit
// breaker is looked up by the upstream's name.
package upstream
