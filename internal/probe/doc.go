// Package probe implements periodic health probing for guarded upstreams.
// Every probe is routed through the upstream's circuit breaker, so a tripped
// breaker suppresses probing traffic for the length of its open window and
// the first probe after the window doubles as the recovery trial.
package probe
