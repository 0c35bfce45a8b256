// Package backfill walks a chain backward from its head to a retention
// cutoff and stores every settlement trade on the way.
//
// # Batch sizing
//
// One eth_getLogs range is in flight at a time. Its size comes from
// throttle.BatchState: capacity rejections shrink the batch and the same
// range is retried, successes grow it again. Any other provider error skips
// the range; skipped ranges are queued for `rescan`.
//
// # Persistence
//
// Transactions already in the store are counted as duplicates and never
// resolved again. A batch's records are written with one UpsertBatch after
// every transaction in it has been resolved, so a killed process only
// re-fetches the batch in flight.
//
// # Usage
//
//	engine := backfill.NewEngine(cfg, reader, resolver.New(orders), trades,
//		backfill.WithRangeQueue(queue),
//		backfill.WithRunRepository(runs),
//	)
//	report, err := engine.Run(ctx)
package backfill

import (
	"context"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/recovery"
	"github.com/vietddude/tradesync/internal/indexing/resolver"
	"github.com/vietddude/tradesync/internal/indexing/throttle"
	"github.com/vietddude/tradesync/internal/infra/chain"
)

// Config configures an Engine.
type Config struct {
	Network string
	// Months of history to keep, used by Run to locate the cutoff block
	Months   int
	Throttle throttle.Config
	// BatchDelay is the pause between batches
	BatchDelay time.Duration
	// MaxRetriesAtMin is how many capacity failures at the minimum batch
	// size are retried before the range is skipped
	MaxRetriesAtMin int
	// ETAWindow is the number of recent batches the ETA is averaged over
	ETAWindow int
	// IsCapacityError classifies provider errors, chain.DefaultCapacityClassifier if nil
	IsCapacityError chain.CapacityClassifier
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig(network string) Config {
	return Config{
		Network:         network,
		Months:          4,
		Throttle:        throttle.DefaultConfig(),
		BatchDelay:      200 * time.Millisecond,
		MaxRetriesAtMin: 3,
		ETAWindow:       10,
		IsCapacityError: chain.DefaultCapacityClassifier,
	}
}

// TradeResolver turns a settlement transaction into trade records.
type TradeResolver interface {
	Resolve(ctx context.Context, tx resolver.Transaction) ([]*domain.TradeRecord, error)
}

// Clock abstracts time so tests can run without delays.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock is the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	return recovery.Sleep(ctx, d)
}
