package evm

import (
	"sync"
	"time"
)

// ProviderStatus represents the health state of a provider.
type ProviderStatus int

const (
	StatusHealthy   ProviderStatus = iota // Provider is working normally
	StatusDegraded                        // Provider is slow or failing often
	StatusThrottled                       // Provider is rate limiting
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	default:
		return "healthy"
	}
}

// MonitorStats holds monitoring statistics for a provider.
type MonitorStats struct {
	Status           ProviderStatus
	AverageLatency   time.Duration
	Requests         int
	CapacityFailures int
	Throttles        int
	OtherErrors      int
}

// Monitor tracks latency and failure counts of one RPC endpoint.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	requests         int
	capacityFailures int
	throttles        int
	otherErrors      int
	lastThrottleTime time.Time
	throttleCooldown time.Duration

	slowResponseThreshold time.Duration
	degradedThreshold     float64
	now                   func() time.Time
}

// NewMonitor creates a new monitor with default settings.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		throttleCooldown:      time.Minute,
		slowResponseThreshold: 3 * time.Second,
		degradedThreshold:     0.3, // 30% error rate
		now:                   time.Now,
	}
}

// RecordRequest records a successful request with its latency.
func (m *Monitor) RecordRequest(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
}

// RecordCapacity records a request rejected for its size.
func (m *Monitor) RecordCapacity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.capacityFailures++
}

// RecordThrottle records a rate limiting response.
func (m *Monitor) RecordThrottle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.throttles++
	m.lastThrottleTime = m.now()
}

// RecordError records any other failure.
func (m *Monitor) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.otherErrors++
}

// Status returns the current status of the provider.
func (m *Monitor) Status() ProviderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() ProviderStatus {
	if m.throttles > 0 && m.now().Sub(m.lastThrottleTime) < m.throttleCooldown {
		return StatusThrottled
	}

	if m.requests >= 10 {
		failRate := float64(m.otherErrors) / float64(m.requests)
		if failRate > m.degradedThreshold {
			return StatusDegraded
		}
	}

	if len(m.recentLatencies) > 10 && m.averageLatencyLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}

	return StatusHealthy
}

func (m *Monitor) averageLatencyLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// Stats returns current monitoring statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MonitorStats{
		Status:           m.statusLocked(),
		AverageLatency:   m.averageLatencyLocked(),
		Requests:         m.requests,
		CapacityFailures: m.capacityFailures,
		Throttles:        m.throttles,
		OtherErrors:      m.otherErrors,
	}
}
