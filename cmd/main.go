package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/circuit-guard/config"
	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-guard/internal/handler"
	"github.com/angeloszaimis/circuit-guard/internal/httpserver"
	"github.com/angeloszaimis/circuit-guard/internal/metrics"
	"github.com/angeloszaimis/circuit-guard/internal/probe"
	"github.com/angeloszaimis/circuit-guard/internal/upstream"
	"github.com/angeloszaimis/circuit-guard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(1024, log)
	collector.Start(ctx)

	registry := circuitbreaker.NewRegistry(log, func(name string, from, to circuitbreaker.State) {
		collector.Emit(metrics.Event{
			Type:       metrics.EventStateChanged,
			Timestamp:  time.Now(),
			Dependency: name,
			State:      to.String(),
		})
	})

	upstreams, err := initializeUpstreams(ctx, cfg, registry, collector, log)
	if err != nil {
		log.Error("Failed to initialize upstreams", slog.Any("err", err))
		os.Exit(1)
	}

	statusHandler := handler.NewStatusHandler(log, registry, upstreams)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(statusHandler, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Circuit guard started",
		slog.String("address", cfg.Server.Address),
		slog.Int("upstreams", len(upstreams)))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting circuit guard", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func initializeUpstreams(
	ctx context.Context,
	cfg *config.Config,
	registry *circuitbreaker.Registry,
	collector *metrics.Collector,
	log *slog.Logger,
) ([]*upstream.Upstream, error) {
	probeInterval, err := time.ParseDuration(cfg.Probe.Interval)
	if err != nil {
		return nil, err
	}

	defaultTimeout, err := time.ParseDuration(cfg.Breaker.ResetTimeout)
	if err != nil {
		return nil, err
	}

	var upstreams []*upstream.Upstream

	for _, uc := range cfg.Upstreams {
		u, err := url.Parse(uc.URL)

		if err != nil {
			log.Error("Failed to parse URL",
				slog.String("url", uc.URL),
				slog.String("error", err.Error()))
			continue
		}

		threshold := cfg.Breaker.FailureThreshold
		if uc.FailureThreshold > 0 {
			threshold = uc.FailureThreshold
		}

		timeout := defaultTimeout
		if uc.ResetTimeout != "" {
			timeout, err = time.ParseDuration(uc.ResetTimeout)
			if err != nil {
				return nil, err
			}
		}

		up := upstream.New(uc.Name, u)
		cb := registry.GetOrCreate(uc.Name, threshold, timeout)

		upstreams = append(upstreams, up)
		go probe.Run(ctx, up, cb, probeInterval, log, collector)
	}

	if len(upstreams) == 0 {
		return nil, errors.New("no valid upstreams configured")
	}

	return upstreams, nil
}
