package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/tradesync/internal/core/domain"
)

// DefaultSettlementAddress is the settlement contract shared by all supported networks.
const DefaultSettlementAddress = "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	b := &cfg.Backfill
	if b.Months == 0 {
		b.Months = 4
	}
	if b.MinBatchSize == 0 {
		b.MinBatchSize = 10
	}
	if b.MaxBatchSize == 0 {
		b.MaxBatchSize = 10000
	}
	if b.InitialBatchSize == 0 {
		b.InitialBatchSize = 1000
	}
	if b.BatchDelay == 0 {
		b.BatchDelay = 200 * time.Millisecond
	}
	if b.MaxRetriesAtMin == 0 {
		b.MaxRetriesAtMin = 3
	}
	if b.ETAWindow == 0 {
		b.ETAWindow = 10
	}
	if b.CacheTTL == 0 {
		b.CacheTTL = 24 * time.Hour
	}

	o := &cfg.Orderbook
	if o.BaseURL == "" {
		o.BaseURL = "https://api.cow.fi"
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.RequestsPerSecond == 0 {
		o.RequestsPerSecond = 5
	}
	if o.Burst == 0 {
		o.Burst = 1
	}

	for i := range cfg.Networks {
		if cfg.Networks[i].SettlementAddress == "" {
			cfg.Networks[i].SettlementAddress = DefaultSettlementAddress
		}
		if cfg.Networks[i].RPCTimeout == 0 {
			cfg.Networks[i].RPCTimeout = 60 * time.Second
		}
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *AppConfig) Validate() error {
	b := c.Backfill
	if b.MinBatchSize < 1 {
		return fmt.Errorf("invalid backfill config: min_batch_size must be at least 1")
	}
	if b.MinBatchSize > b.MaxBatchSize {
		return fmt.Errorf("invalid backfill config: min_batch_size %d > max_batch_size %d",
			b.MinBatchSize, b.MaxBatchSize)
	}
	if b.Months < 0 {
		return fmt.Errorf("invalid backfill config: months must be positive")
	}
	if c.Orderbook.RetryAttempts < 0 {
		return fmt.Errorf("invalid orderbook config: retry_attempts must not be negative")
	}

	seen := make(map[string]bool, len(c.Networks))
	for _, n := range c.Networks {
		if _, err := domain.LookupNetwork(n.Name); err != nil {
			return fmt.Errorf("invalid network config: %w", err)
		}
		if seen[n.Name] {
			return fmt.Errorf("invalid network config: %q listed twice", n.Name)
		}
		seen[n.Name] = true
	}
	return nil
}
