package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-guard/internal/upstream"
)

type StatusHandler struct {
	logger    *slog.Logger
	registry  *circuitbreaker.Registry
	upstreams []*upstream.Upstream
}

type statusResponse struct {
	Breakers  map[string]circuitbreaker.BreakerStats `json:"breakers"`
	Upstreams []upstreamStatus                       `json:"upstreams"`
}

type upstreamStatus struct {
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	LastProbe time.Time     `json:"last_probe,omitzero"`
}

func NewStatusHandler(logger *slog.Logger, registry *circuitbreaker.Registry, upstreams []*upstream.Upstream) *StatusHandler {
	return &StatusHandler{
		logger:    logger,
		registry:  registry,
		upstreams: upstreams,
	}
}

// Status reports every breaker's state alongside the probed upstream health.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := statusResponse{
		Breakers:  h.registry.Stats(),
		Upstreams: make([]upstreamStatus, 0, len(h.upstreams)),
	}

	for _, up := range h.upstreams {
		response.Upstreams = append(response.Upstreams, upstreamStatus{
			Name:      up.Name(),
			URL:       up.URL().String(),
			Healthy:   up.IsHealthy(),
			Latency:   up.Latency(),
			LastProbe: up.LastProbe(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Reset manually resets every breaker. Used for operator recovery drills.
func (h *StatusHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.registry.ResetAll()
	h.logger.Info("Manual reset requested",
		slog.String("from", r.RemoteAddr))

	w.WriteHeader(http.StatusNoContent)
}
