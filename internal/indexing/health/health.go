// Package health provides sync health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// NetworkHealth contains health data for one network's sync.
type NetworkHealth struct {
	Network        string       `json:"network"`
	Status         SystemStatus `json:"status"`
	RunStatus      string       `json:"run_status,omitempty"`
	ProviderStatus string       `json:"provider_status,omitempty"`
	AverageLatency string       `json:"average_latency,omitempty"`
	QueuedRanges   int          `json:"queued_ranges"`
	RPCErrorRate   float64      `json:"rpc_error_rate"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus             `json:"system_status"`
	Networks     map[string]NetworkHealth `json:"networks"`
}
