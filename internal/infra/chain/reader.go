// Package chain defines the read-only view of a blockchain that the backfill
// engine walks, and the error shapes it reports.
package chain

import (
	"context"

	"github.com/vietddude/tradesync/internal/core/domain"
)

// Reader is a synchronous view over an RPC endpoint.
// Every error it returns should unwrap to a *ProviderError.
type Reader interface {
	// LatestBlockNumber returns the current head
	LatestBlockNumber(ctx context.Context) (uint64, error)

	// BlockTimestamp returns the block's timestamp in unix seconds
	BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)

	// EventsInRange returns the settlement Trade events in [from, to]
	EventsInRange(ctx context.Context, from, to uint64) ([]domain.RawEvent, error)
}
