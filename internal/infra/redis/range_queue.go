package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// RangeQueue implements storage.RangeQueue on a sorted set per network,
// scored by the range start so Pop always returns the lowest range.
type RangeQueue struct {
	rdb *redis.Client
}

// NewRangeQueue creates a Redis-backed skipped range queue.
func NewRangeQueue(client *Client) *RangeQueue {
	return &RangeQueue{rdb: client.rdb}
}

func queueKey(network string) string {
	return fmt.Sprintf("skipped_ranges:%s", network)
}

// Push adds a range to the queue. Re-adding a queued range is a no-op.
func (q *RangeQueue) Push(ctx context.Context, network string, r domain.BlockRange) error {
	member := FormatRange(r)
	if err := q.rdb.ZAdd(ctx, queueKey(network), redis.Z{
		Score:  float64(r.From),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Pop removes and returns the lowest queued range.
func (q *RangeQueue) Pop(ctx context.Context, network string) (domain.BlockRange, error) {
	key := queueKey(network)

	results, err := q.rdb.ZPopMin(ctx, key, 1).Result()
	if err != nil {
		return domain.BlockRange{}, fmt.Errorf("zpopmin failed: %w", err)
	}
	if len(results) == 0 {
		return domain.BlockRange{}, storage.ErrEmptyQueue
	}

	member, _ := results[0].Member.(string)
	r, err := ParseRange(member)
	if err != nil {
		return domain.BlockRange{}, fmt.Errorf("invalid range format: %w", err)
	}
	return r, nil
}

// List returns every queued range in ascending order.
func (q *RangeQueue) List(ctx context.Context, network string) ([]domain.BlockRange, error) {
	members, err := q.rdb.ZRange(ctx, queueKey(network), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	ranges := make([]domain.BlockRange, 0, len(members))
	for _, m := range members {
		r, err := ParseRange(m)
		if err != nil {
			return nil, fmt.Errorf("invalid range format: %w", err)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// FormatRange renders a range as "from-to".
func FormatRange(r domain.BlockRange) string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// ParseRange parses "12000-12500" format.
func ParseRange(s string) (domain.BlockRange, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return domain.BlockRange{}, fmt.Errorf("invalid range format: %s", s)
	}

	from, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return domain.BlockRange{}, fmt.Errorf("invalid start: %w", err)
	}

	to, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return domain.BlockRange{}, fmt.Errorf("invalid end: %w", err)
	}

	if from > to {
		return domain.BlockRange{}, fmt.Errorf("start > end: %d > %d", from, to)
	}

	return domain.BlockRange{From: from, To: to}, nil
}

var _ storage.RangeQueue = (*RangeQueue)(nil)
