// Package handler implements the HTTP status surface over the breaker
// registry and probed upstreams, plus the operator-triggered reset endpoint.
package handler
