package upstream

import (
	"net/url"
	"sync"
	"time"
)

// Upstream represents one guarded external dependency with health status
// and probe latency monitoring.
type Upstream struct {
	name        string
	url         *url.URL
	mutex       sync.Mutex
	isHealthy   bool
	lastProbe   time.Time
	ewmaLatency time.Duration
	hasEWMA     bool
}

const ewmaAlpha = 0.2

// New creates a new Upstream with the given dependency name and base URL.
// The upstream starts in a healthy state.
func New(name string, url *url.URL) *Upstream {
	return &Upstream{
		name:      name,
		url:       url,
		isHealthy: true,
	}
}

// Name returns the dependency name, which doubles as the breaker name.
func (u *Upstream) Name() string {
	return u.name
}

// URL returns the upstream's base URL.
func (u *Upstream) URL() *url.URL {
	return u.url
}

// IsHealthy returns true if the upstream is currently healthy.
func (u *Upstream) IsHealthy() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.isHealthy
}

// SetHealthy updates the upstream's health status.
// Returns true if the status changed, false if it was already in that state.
func (u *Upstream) SetHealthy(healthy bool) (changed bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.isHealthy == healthy {
		return false
	}

	u.isHealthy = healthy
	return true
}

// RecordProbe updates the exponentially weighted moving average (EWMA)
// probe latency and the last-probe timestamp.
func (u *Upstream) RecordProbe(duration time.Duration) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.lastProbe = time.Now()

	if !u.hasEWMA {
		u.ewmaLatency = duration
		u.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	u.ewmaLatency = time.Duration((1-ewmaAlpha)*float64(u.ewmaLatency) + ewmaAlpha*float64(duration))
}

// Latency returns the EWMA probe latency.
// Returns 0 if no probes have completed yet.
func (u *Upstream) Latency() time.Duration {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		return 0
	}

	return u.ewmaLatency
}

// LastProbe returns the time of the last completed probe, or the zero time
// if none has completed.
func (u *Upstream) LastProbe() time.Time {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.lastProbe
}
