package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-guard/internal/metrics"
	"github.com/angeloszaimis/circuit-guard/internal/upstream"
)

// Run periodically probes an upstream's /health endpoint, routing every
// probe through the upstream's circuit breaker. The upstream's health status
// is updated from the probe outcome. While the circuit is open the probe is
// rejected without touching the network, which is reported as a rejection
// rather than a new failure.
func Run(
	ctx context.Context,
	up *upstream.Upstream,
	cb *circuitbreaker.CircuitBreaker,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Probe stopped",
				slog.String("upstream", up.Name()))
			return

		case <-ticker.C:
			probeOnce(ctx, up, cb, client, logger, collector)
		}
	}
}

func probeOnce(
	ctx context.Context,
	up *upstream.Upstream,
	cb *circuitbreaker.CircuitBreaker,
	client *http.Client,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	start := time.Now()

	_, err := cb.Execute(func() (any, error) {
		healthURL := up.URL().ResolveReference(&url.URL{Path: "/health"})

		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, healthURL.String(), nil)
		if err != nil {
			return nil, err
		}

		res, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("health endpoint returned status %d", res.StatusCode)
		}

		return nil, nil
	})

	switch {
	case circuitbreaker.IsCircuitOpen(err):
		emit(collector, metrics.Event{
			Type:       metrics.EventCallRejected,
			Timestamp:  time.Now(),
			Dependency: up.Name(),
		})

	case err != nil:
		emit(collector, metrics.Event{
			Type:       metrics.EventCallFailed,
			Timestamp:  time.Now(),
			Dependency: up.Name(),
		})

		if up.SetHealthy(false) {
			logger.Warn("Upstream is down",
				slog.String("upstream", up.Name()),
				slog.String("error", err.Error()))
		}

	default:
		duration := time.Since(start)
		up.RecordProbe(duration)

		emit(collector, metrics.Event{
			Type:       metrics.EventCallSucceeded,
			Timestamp:  time.Now(),
			Dependency: up.Name(),
			Duration:   duration,
		})

		if up.SetHealthy(true) {
			logger.Info("Upstream is back up",
				slog.String("upstream", up.Name()))
		}
	}
}

func emit(collector *metrics.Collector, event metrics.Event) {
	if collector == nil {
		return
	}

	collector.Emit(event)
}
