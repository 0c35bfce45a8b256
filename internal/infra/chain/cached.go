package chain

import (
	"context"
	"log/slog"

	"github.com/vietddude/tradesync/internal/infra/storage"
)

// CachedReader serves BlockTimestamp through a TTL cache. Cache failures
// are logged and fall through to the underlying reader.
type CachedReader struct {
	Reader
	cache   storage.BlockTimestampCache
	network string
	log     *slog.Logger
}

// NewCachedReader wraps r with a read-through timestamp cache.
func NewCachedReader(r Reader, cache storage.BlockTimestampCache, network string) *CachedReader {
	return &CachedReader{
		Reader:  r,
		cache:   cache,
		network: network,
		log:     slog.Default().With("component", "timestamp-cache", "network", network),
	}
}

func (c *CachedReader) BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	ts, ok, err := c.cache.Get(ctx, blockNumber, c.network)
	if err != nil {
		c.log.Warn("timestamp cache read failed", "block", blockNumber, "error", err)
	} else if ok {
		return ts, nil
	}

	ts, err = c.Reader.BlockTimestamp(ctx, blockNumber)
	if err != nil {
		return 0, err
	}

	if err := c.cache.Put(ctx, blockNumber, c.network, ts); err != nil {
		c.log.Warn("timestamp cache write failed", "block", blockNumber, "error", err)
	}
	return ts, nil
}
