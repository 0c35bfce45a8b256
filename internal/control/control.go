// Package control wires configuration into per-network components and runs
// the sync, rescan and cleanup jobs on them. Networks are processed one at a
// time.
package control

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vietddude/tradesync/internal/core/config"
	"github.com/vietddude/tradesync/internal/indexing/health"
	redisclient "github.com/vietddude/tradesync/internal/infra/redis"
)

// ErrNetworkLocked is returned when another process holds a network's sync lock.
var ErrNetworkLocked = errors.New("network is locked by another process")

// Runner owns the resources shared across networks.
type Runner struct {
	cfg    *config.AppConfig
	health *health.Monitor
	owner  string
	log    *slog.Logger

	redisOnce sync.Once
	redis     *redisclient.Client
	redisErr  error
}

// NewRunner creates a Runner for cfg.
func NewRunner(cfg *config.AppConfig) *Runner {
	return &Runner{
		cfg:    cfg,
		health: health.NewMonitor(),
		owner:  uuid.NewString(),
		log:    slog.Default().With("component", "runner"),
	}
}

// Health returns the monitor every opened network registers with.
func (r *Runner) Health() *health.Monitor {
	return r.health
}

// Config returns the application configuration.
func (r *Runner) Config() *config.AppConfig {
	return r.cfg
}

// Close releases shared connections.
func (r *Runner) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

// redisClient connects on first use. It returns nil when Redis is not configured.
func (r *Runner) redisClient() (*redisclient.Client, error) {
	if !r.cfg.Redis.Enabled() {
		return nil, nil
	}
	r.redisOnce.Do(func() {
		r.redis, r.redisErr = redisclient.NewClient(r.cfg.Redis)
		if r.redisErr == nil {
			r.log.Info("Using Redis for skipped ranges and sync locks")
		}
	})
	return r.redis, r.redisErr
}

// Networks resolves names to network configs. No names selects every
// configured network.
func (r *Runner) Networks(names []string) ([]config.NetworkConfig, error) {
	if len(names) == 0 {
		if len(r.cfg.Networks) == 0 {
			return nil, fmt.Errorf("no networks configured")
		}
		return r.cfg.Networks, nil
	}

	out := make([]config.NetworkConfig, 0, len(names))
	for _, name := range names {
		n, ok := r.cfg.Network(name)
		if !ok {
			return nil, fmt.Errorf("network %q is not configured", name)
		}
		out = append(out, n)
	}
	return out, nil
}
