package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations shared by sync and rescan.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration. An empty URL disables Redis.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func lockKey(network string) string {
	return fmt.Sprintf("tradesync:lock:%s", network)
}

// AcquireLock takes the per-network sync lock so two processes never
// backfill the same network at once.
func (c *Client) AcquireLock(
	ctx context.Context,
	network, owner string,
	ttl time.Duration,
) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey(network), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ErrLockLost is returned when the lock expired and another owner took it.
var ErrLockLost = errors.New("lock held by another owner")

var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RefreshLock extends the TTL of the lock if owner still holds it.
func (c *Client) RefreshLock(ctx context.Context, network, owner string, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, c.rdb, []string{lockKey(network)}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// ReleaseLock releases the lock if it is still held by owner.
func (c *Client) ReleaseLock(ctx context.Context, network, owner string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{lockKey(network)}, owner).Err(); err != nil {
		return fmt.Errorf("release failed: %w", err)
	}
	return nil
}
