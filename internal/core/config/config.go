package config

import (
	"time"

	redisclient "github.com/vietddude/tradesync/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	DataDir   string             `yaml:"data_dir"`
	Logging   LoggingConfig      `yaml:"logging"`
	Metrics   MetricsConfig      `yaml:"metrics"`
	Redis     redisclient.Config `yaml:"redis"`
	Backfill  BackfillConfig     `yaml:"backfill"`
	Orderbook OrderbookConfig    `yaml:"orderbook"`
	Networks  []NetworkConfig    `yaml:"networks"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MetricsConfig controls the /health and /metrics HTTP endpoint.
type MetricsConfig struct {
	Port int `yaml:"port"` // 0 = disabled
}

// BackfillConfig tunes the backward walk and the batch controller.
type BackfillConfig struct {
	Months           int           `yaml:"months"`
	InitialBatchSize int           `yaml:"initial_batch_size"`
	MinBatchSize     int           `yaml:"min_batch_size"`
	MaxBatchSize     int           `yaml:"max_batch_size"`
	BatchDelay       time.Duration `yaml:"batch_delay"`
	MaxRetriesAtMin  int           `yaml:"max_retries_at_min"`
	ETAWindow        int           `yaml:"eta_window"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// OrderbookConfig holds settings for the protocol order API.
type OrderbookConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	// RetryAttempts is how many times a throttled or failed lookup is
	// repeated. 0 calls the API once and counts the failure.
	RetryAttempts int `yaml:"retry_attempts"`
}

// NetworkConfig holds settings for one chain.
type NetworkConfig struct {
	Name              string        `yaml:"name"`
	RPCURL            string        `yaml:"rpc_url"`
	SettlementAddress string        `yaml:"settlement_address"`
	Months            int           `yaml:"months"` // overrides backfill.months
	RPCTimeout        time.Duration `yaml:"rpc_timeout"`
}

// MonthsFor returns the retention window for a network.
func (c *AppConfig) MonthsFor(n NetworkConfig) int {
	if n.Months > 0 {
		return n.Months
	}
	return c.Backfill.Months
}

// Network returns the configuration of the named network.
func (c *AppConfig) Network(name string) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}
