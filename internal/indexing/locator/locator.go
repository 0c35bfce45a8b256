// Package locator maps a wall-clock cutoff to a block number by binary
// search over block timestamps.
package locator

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"
	"time"
)

// DefaultTolerance is the interval width at which the search stops.
const DefaultTolerance = 10

// TimestampReader looks up block timestamps in unix seconds.
type TimestampReader interface {
	BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)
}

// BlockReader also knows the chain head.
type BlockReader interface {
	TimestampReader
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Result is the outcome of a search.
type Result struct {
	Block uint64
	// Probes is the number of timestamp lookups made
	Probes int
	// Approximate is set when a lookup failed and Block is the midpoint at
	// which the search gave up
	Approximate bool
}

// Locator searches for the last block at or before a timestamp.
type Locator struct {
	reader    TimestampReader
	tolerance uint64
	log       *slog.Logger
}

// New creates a Locator with DefaultTolerance.
func New(reader TimestampReader) *Locator {
	return &Locator{
		reader:    reader,
		tolerance: DefaultTolerance,
		log:       slog.Default().With("component", "locator"),
	}
}

// WithLogger returns a copy of l logging to log.
func (l *Locator) WithLogger(log *slog.Logger) *Locator {
	cp := *l
	cp.log = log
	return &cp
}

// Locate searches [low, high] for the block whose timestamp is the tightest
// lower bound of target, to within the tolerance. Block timestamps are
// assumed non-decreasing. A failed lookup ends the search at the probed
// midpoint, flagged Approximate. Only context cancellation is returned as
// an error.
func (l *Locator) Locate(ctx context.Context, low, high uint64, target int64) (Result, error) {
	if low > high {
		return Result{}, fmt.Errorf("invalid search range [%d, %d]", low, high)
	}

	maxProbes := bits.Len64(high-low) + 1
	res := Result{}

	for high-low > l.tolerance && res.Probes < maxProbes {
		mid := low + (high-low)/2

		ts, err := l.reader.BlockTimestamp(ctx, mid)
		res.Probes++
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			l.log.Warn("timestamp lookup failed, using midpoint as approximate cutoff",
				"block", mid, "low", low, "high", high, "error", err)
			res.Block = mid
			res.Approximate = true
			return res, nil
		}

		if ts > target {
			high = mid
		} else {
			low = mid
		}
	}

	res.Block = low
	return res, nil
}

// CutoffBlock returns the chain head and the block at which a sync keeping
// the last months of history should stop.
func CutoffBlock(
	ctx context.Context,
	reader BlockReader,
	months int,
	now time.Time,
) (uint64, Result, error) {
	head, err := reader.LatestBlockNumber(ctx)
	if err != nil {
		return 0, Result{}, fmt.Errorf("failed to get latest block: %w", err)
	}

	target := CutoffTime(now, months).Unix()
	res, err := New(reader).Locate(ctx, 0, head, target)
	if err != nil {
		return head, res, err
	}
	return head, res, nil
}

// CutoffTime is now minus the given number of calendar months.
func CutoffTime(now time.Time, months int) time.Time {
	return now.AddDate(0, -months, 0)
}
