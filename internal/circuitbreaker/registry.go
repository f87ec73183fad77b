package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"
)

// Well-known dependency names with their preset configurations.
const (
	DatastoreBreakerName = "datastore"
	NotifierBreakerName  = "notifier"
	TaskQueueBreakerName = "taskqueue"
)

// Registry hands out one breaker per dependency name so every call site
// shares a single view of that dependency's state. Construct one in the
// composition root and inject it; there is no package-level instance.
type Registry struct {
	mutex         sync.RWMutex
	breakers      map[string]*CircuitBreaker
	logger        *slog.Logger
	onStateChange StateChangeFunc
}

// BreakerStats is a point-in-time view of one breaker, for status endpoints
// and monitoring.
type BreakerStats struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenUntil           time.Time `json:"open_until,omitzero"`
}

// NewRegistry creates an empty registry. onStateChange, if non-nil, is
// attached to every breaker the registry creates.
func NewRegistry(logger *slog.Logger, onStateChange StateChangeFunc) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		breakers:      make(map[string]*CircuitBreaker),
		logger:        logger,
		onStateChange: onStateChange,
	}
}

// GetOrCreate returns the breaker stored under name, creating it with the
// supplied configuration on first use.
//
// First writer wins: when the breaker already exists, the supplied
// configuration is ignored so a late caller cannot silently loosen another
// caller's threshold. A differing configuration is logged as drift.
func (r *Registry) GetOrCreate(name string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		r.warnOnDrift(cb, failureThreshold, resetTimeout)
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		r.warnOnDrift(cb, failureThreshold, resetTimeout)
		return cb
	}

	cb = New(Settings{
		Name:             name,
		FailureThreshold: failureThreshold,
		ResetTimeout:     resetTimeout,
		Logger:           r.logger,
		OnStateChange:    r.onStateChange,
	})
	r.breakers[name] = cb

	r.logger.Info("Created circuit breaker",
		slog.String("breaker", name),
		slog.Int("failure_threshold", cb.FailureThreshold()),
		slog.Duration("reset_timeout", cb.ResetTimeout()))

	return cb
}

func (r *Registry) warnOnDrift(cb *CircuitBreaker, failureThreshold int, resetTimeout time.Duration) {
	if failureThreshold == cb.FailureThreshold() && resetTimeout == cb.ResetTimeout() {
		return
	}

	r.logger.Warn("Circuit breaker configuration drift, keeping existing configuration",
		slog.String("breaker", cb.Name()),
		slog.Int("existing_threshold", cb.FailureThreshold()),
		slog.Duration("existing_timeout", cb.ResetTimeout()),
		slog.Int("requested_threshold", failureThreshold),
		slog.Duration("requested_timeout", resetTimeout))
}

// Datastore returns the shared breaker for the persistence backend.
func (r *Registry) Datastore() *CircuitBreaker {
	return r.GetOrCreate(DatastoreBreakerName, 5, 60*time.Second)
}

// Notifier returns the shared breaker for the push-notification backend.
func (r *Registry) Notifier() *CircuitBreaker {
	return r.GetOrCreate(NotifierBreakerName, 3, 30*time.Second)
}

// TaskQueue returns the shared breaker for the task-queue backend.
func (r *Registry) TaskQueue() *CircuitBreaker {
	return r.GetOrCreate(TaskQueueBreakerName, 5, 45*time.Second)
}

// ResetAll manually resets every stored breaker to closed. Breakers stay
// registered; the registry never evicts.
func (r *Registry) ResetAll() {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}

	r.logger.Info("Reset all circuit breakers", slog.Int("count", len(r.breakers)))
}

// Stats returns a snapshot of every breaker keyed by dependency name.
func (r *Registry) Stats() map[string]BreakerStats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]BreakerStats, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = BreakerStats{
			State:               cb.State().String(),
			ConsecutiveFailures: cb.ConsecutiveFailures(),
			OpenUntil:           cb.OpenUntil(),
		}
	}

	return stats
}
