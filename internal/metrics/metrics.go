package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex       sync.RWMutex
	successes   map[string]int64
	failures    map[string]int64
	rejections  map[string]int64
	transitions map[string]int64
	lastState   map[string]string
	probeTimes  map[string][]time.Duration
	startTime   time.Time
}

type Snapshot struct {
	TotalCalls      int64                        `json:"total_calls"`
	TotalRejections int64                        `json:"total_rejections"`
	Uptime          time.Duration                `json:"uptime"`
	Dependencies    map[string]DependencyMetrics `json:"dependencies"`
}

type DependencyMetrics struct {
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	Rejections  int64         `json:"rejections"`
	Transitions int64         `json:"transitions"`
	State       string        `json:"state,omitempty"`
	AvgProbe    time.Duration `json:"avg_probe"`
	P50Probe    time.Duration `json:"p50_probe"`
	P95Probe    time.Duration `json:"p95_probe"`
	P99Probe    time.Duration `json:"p99_probe"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		successes:   make(map[string]int64),
		failures:    make(map[string]int64),
		rejections:  make(map[string]int64),
		transitions: make(map[string]int64),
		lastState:   make(map[string]string),
		probeTimes:  make(map[string][]time.Duration),
		startTime:   time.Now(),
	}
}

func (m *Metrics) RecordSuccess(dependency string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.successes[dependency]++
	m.probeTimes[dependency] = append(m.probeTimes[dependency], duration)

	if len(m.probeTimes[dependency]) > 1000 {
		m.probeTimes[dependency] = m.probeTimes[dependency][1:]
	}
}

func (m *Metrics) RecordFailure(dependency string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures[dependency]++
}

func (m *Metrics) RecordRejection(dependency string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[dependency]++
}

func (m *Metrics) RecordTransition(dependency string, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.transitions[dependency]++
	m.lastState[dependency] = state
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:       time.Since(m.startTime),
		Dependencies: make(map[string]DependencyMetrics),
	}

	// Collect all dependency names seen on any counter
	allDependencies := make(map[string]bool)
	for dependency := range m.successes {
		allDependencies[dependency] = true
	}
	for dependency := range m.failures {
		allDependencies[dependency] = true
	}
	for dependency := range m.rejections {
		allDependencies[dependency] = true
	}
	for dependency := range m.transitions {
		allDependencies[dependency] = true
	}

	for dependency := range allDependencies {
		snap.TotalCalls += m.successes[dependency] + m.failures[dependency] + m.rejections[dependency]
		snap.TotalRejections += m.rejections[dependency]

		dm := DependencyMetrics{
			Successes:   m.successes[dependency],
			Failures:    m.failures[dependency],
			Rejections:  m.rejections[dependency],
			Transitions: m.transitions[dependency],
			State:       m.lastState[dependency],
		}

		durations := m.probeTimes[dependency]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			dm.AvgProbe = average(sorted)
			dm.P50Probe = percentile(sorted, 0.50)
			dm.P95Probe = percentile(sorted, 0.95)
			dm.P99Probe = percentile(sorted, 0.99)
		}

		snap.Dependencies[dependency] = dm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
