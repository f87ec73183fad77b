package main

import (
	"net/http"

	"github.com/angeloszaimis/circuit-guard/internal/handler"
	"github.com/angeloszaimis/circuit-guard/internal/metrics"
)

func setupRouter(statusHandler *handler.StatusHandler, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/breakers", statusHandler.Status)
	mux.HandleFunc("/breakers/reset", statusHandler.Reset)
	mux.HandleFunc("/metrics", collector.Handler())

	return mux
}
