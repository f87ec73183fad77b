package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Rejecting calls
	StateHalfOpen              // Testing recovery with one probe
)

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
)

// StateChangeFunc is invoked whenever a breaker changes state. It runs on its
// own goroutine, so it may safely call back into the breaker.
type StateChangeFunc func(name string, from, to State)

// Settings configures a CircuitBreaker. The zero value is usable: defaults
// are applied for the threshold and reset timeout, and Logger falls back to
// slog.Default.
type Settings struct {
	Name             string
	FailureThreshold int
	ResetTimeout     time.Duration
	Logger           *slog.Logger
	OnStateChange    StateChangeFunc
}

// CircuitBreaker guards calls to one unreliable dependency. It trips open
// after a run of consecutive failures and probes recovery with a single
// trial call once the reset timeout has elapsed.
type CircuitBreaker struct {
	mutex            sync.Mutex
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	logger           *slog.Logger
	onStateChange    StateChangeFunc

	state         State
	generation    uint64
	failures      int
	openUntil     time.Time
	probeInFlight bool
}

// New creates a circuit breaker from the given settings.
func New(settings Settings) *CircuitBreaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = DefaultFailureThreshold
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = DefaultResetTimeout
	}
	if settings.Logger == nil {
		settings.Logger = slog.Default()
	}

	return &CircuitBreaker{
		name:             settings.Name,
		failureThreshold: settings.FailureThreshold,
		resetTimeout:     settings.ResetTimeout,
		logger:           settings.Logger,
		onStateChange:    settings.OnStateChange,
		state:            StateClosed,
	}
}

// NewCircuitBreaker creates a breaker with just a threshold and reset
// timeout, for callers that do not need a name or transition diagnostics.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return New(Settings{FailureThreshold: threshold, ResetTimeout: timeout})
}

// Execute routes one call to the guarded dependency through the breaker.
//
// While the circuit is open the operation is never invoked and the call
// fails immediately with *CircuitOpenError. Otherwise the operation runs
// exactly once and its result and error are returned unchanged; the breaker
// only records the outcome. In half-open state a single in-flight call acts
// as the recovery probe and concurrent calls are rejected as if the circuit
// were still open.
//
// An outcome only counts toward the state the call was admitted under: if the
// breaker changes state while the operation is in flight (another caller
// trips it open, or an operator resets it), the stale outcome is discarded
// rather than applied to the new state.
func (cb *CircuitBreaker) Execute(op func() (any, error)) (any, error) {
	generation, err := cb.admit()
	if err != nil {
		return nil, err
	}

	result, err := op()
	if err != nil {
		cb.recordFailure(generation)
		return result, err
	}

	cb.recordSuccess(generation)
	return result, nil
}

// ExecuteOrDefault behaves like Execute, except an open circuit yields a nil
// result and a nil error instead of *CircuitOpenError. Intended for
// non-critical operations where a missing result is acceptable degradation.
// Every other error still propagates unchanged.
func (cb *CircuitBreaker) ExecuteOrDefault(op func() (any, error)) (any, error) {
	result, err := cb.Execute(op)
	if IsCircuitOpen(err) {
		return nil, nil
	}

	return result, err
}

// admit runs the lazy open-to-half-open transition and decides whether the
// call may proceed. A non-nil error is always a *CircuitOpenError; on
// admission the returned generation tags the call so its outcome can be
// matched against the state it was admitted under.
func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen && time.Now().After(cb.openUntil) {
		cb.transition(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		return 0, &CircuitOpenError{Name: cb.name, OpenUntil: cb.openUntil}
	case StateHalfOpen:
		if cb.probeInFlight {
			// One probe per half-open window; everyone else waits out the circuit.
			return 0, &CircuitOpenError{Name: cb.name, OpenUntil: cb.openUntil}
		}
		cb.probeInFlight = true
	}

	return cb.generation, nil
}

func (cb *CircuitBreaker) recordSuccess(generation uint64) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if generation != cb.generation {
		// The call settled after a state change; its outcome no longer applies.
		return
	}

	cb.failures = 0
	cb.openUntil = time.Time{}
	cb.probeInFlight = false

	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) recordFailure(generation uint64) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if generation != cb.generation {
		// The call settled after a state change; its outcome no longer applies.
		return
	}

	cb.failures++
	cb.probeInFlight = false

	switch cb.state {
	case StateHalfOpen:
		// The probe failed; re-arm the open window. The failure streak keeps
		// accumulating across reopenings.
		cb.openUntil = time.Now().Add(cb.resetTimeout)
		cb.transition(StateOpen)
	case StateClosed:
		if cb.failures >= cb.failureThreshold {
			cb.openUntil = time.Now().Add(cb.resetTimeout)
			cb.transition(StateOpen)
		}
	}
}

// Reset unconditionally returns the breaker to its initial closed state.
// Meant for operator recovery drills and test setup, not the automatic
// failure-handling path.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
	cb.openUntil = time.Time{}
	cb.probeInFlight = false

	if cb.state != StateClosed {
		cb.transition(StateClosed)
		return
	}

	// Already closed: still start a new generation so in-flight outcomes
	// from before the reset are discarded.
	cb.generation++
}

// transition must be called with the mutex held. Each transition starts a
// new generation, invalidating outcomes of calls admitted before it.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.generation++

	cb.logger.Info("Circuit breaker state changed",
		slog.String("breaker", cb.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()))

	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, from, to)
	}
}

// Name returns the dependency name this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// FailureThreshold returns the configured consecutive-failure threshold.
func (cb *CircuitBreaker) FailureThreshold() int {
	return cb.failureThreshold
}

// ResetTimeout returns the configured open-state duration.
func (cb *CircuitBreaker) ResetTimeout() time.Duration {
	return cb.resetTimeout
}

// State returns the current state as last recorded. The open-to-half-open
// transition happens lazily on the next call, so an idle breaker reports
// open even after its reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current failure streak.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failures
}

// OpenUntil returns the instant after which a probe is permitted, or the
// zero time when the circuit is not open.
func (cb *CircuitBreaker) OpenUntil() time.Time {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.openUntil
}

// IsAllowingCalls reports whether calls are currently admitted. It is false
// only while the circuit is open.
func (cb *CircuitBreaker) IsAllowingCalls() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state != StateOpen
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}
