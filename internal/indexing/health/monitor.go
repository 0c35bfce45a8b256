package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/chain/evm"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// ProviderStats exposes the RPC monitor of a network's reader.
type ProviderStats interface {
	Stats() evm.MonitorStats
}

type target struct {
	provider  ProviderStats
	ranges    storage.RangeQueue
	runStatus domain.SyncRunStatus
}

// Monitor aggregates health status from the networks being synced.
type Monitor struct {
	networks   map[string]*target
	order      []string
	lastCheck  time.Time
	lastReport map[string]NetworkHealth
	cacheFor   time.Duration
	now        func() time.Time
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		networks:   make(map[string]*target),
		lastReport: make(map[string]NetworkHealth),
		cacheFor:   10 * time.Second,
		now:        time.Now,
	}
}

// Register adds a network. provider and ranges may be nil.
func (m *Monitor) Register(network string, provider ProviderStats, ranges storage.RangeQueue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.networks[network]; !ok {
		m.order = append(m.order, network)
	}
	m.networks[network] = &target{provider: provider, ranges: ranges}
	m.lastCheck = time.Time{}
}

// SetRunStatus records the state of the network's current sync run.
func (m *Monitor) SetRunStatus(network string, status domain.SyncRunStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.networks[network]; ok {
		t.runStatus = status
		m.lastCheck = time.Time{}
	}
}

// CheckHealth performs a health check for all networks.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]NetworkHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastCheck) < m.cacheFor && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]NetworkHealth, len(m.networks))
	for _, network := range m.order {
		t := m.networks[network]
		health := NetworkHealth{
			Network:   network,
			Status:    StatusHealthy,
			RunStatus: string(t.runStatus),
		}

		degradedProvider := false
		if t.provider != nil {
			stats := t.provider.Stats()
			health.ProviderStatus = stats.Status.String()
			health.AverageLatency = stats.AverageLatency.String()
			if stats.Requests > 0 {
				failures := stats.CapacityFailures + stats.Throttles + stats.OtherErrors
				health.RPCErrorRate = float64(failures) / float64(stats.Requests+failures)
			}
			degradedProvider = stats.Status != evm.StatusHealthy
		}

		if t.ranges != nil {
			if queued, err := t.ranges.List(ctx, network); err == nil {
				health.QueuedRanges = len(queued)
			} else {
				degradedProvider = true
			}
		}

		switch {
		case t.runStatus == domain.SyncRunFailed || health.QueuedRanges > 50:
			health.Status = StatusCritical
		case degradedProvider || health.QueuedRanges > 0:
			health.Status = StatusDegraded
		}

		report[network] = health
	}

	m.lastCheck = m.now()
	m.lastReport = report
	return report
}

// Overall returns the worst status in report.
func Overall(report map[string]NetworkHealth) SystemStatus {
	status := StatusHealthy
	for _, n := range report {
		if n.Status == StatusCritical {
			return StatusCritical
		}
		if n.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
