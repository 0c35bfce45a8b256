package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/tradesync/internal/core/domain"
)

var (
	// ErrInvalidSort is returned when a page request sorts on an unknown column.
	ErrInvalidSort = errors.New("invalid sort")

	// ErrEmptyQueue is returned by RangeQueue.Pop when nothing is queued.
	ErrEmptyQueue = errors.New("range queue is empty")
)

// TradeFilter narrows trade queries. Zero fields are ignored.
type TradeFilter struct {
	SellToken string
	BuyToken  string
	Receiver  string
	Owner     string
	Kind      domain.OrderKind
	FromBlock uint64
	ToBlock   uint64
}

// SortField is a whitelisted trade column.
type SortField string

const (
	SortByBlockNumber  SortField = "block_number"
	SortByCreationDate SortField = "creation_date"
	SortByUpdatedAt    SortField = "updated_at"
)

// Sort describes the order of a page request.
type Sort struct {
	Field      SortField
	Descending bool
}

// DefaultSort lists the newest blocks first.
var DefaultSort = Sort{Field: SortByBlockNumber, Descending: true}

// Validate rejects sort fields outside the whitelist.
func (s Sort) Validate() error {
	switch s.Field {
	case SortByBlockNumber, SortByCreationDate, SortByUpdatedAt:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSort, s.Field)
}

// TradeRepository handles trade record storage.
type TradeRepository interface {
	// Upsert inserts a record or fully overwrites the one with the same hash
	Upsert(ctx context.Context, record *domain.TradeRecord) error

	// UpsertBatch upserts all records atomically
	UpsertBatch(ctx context.Context, records []*domain.TradeRecord) error

	// ExistsByHash reports whether a record with this transaction hash is stored
	ExistsByHash(ctx context.Context, hash string) (bool, error)

	// GetByHash returns the stored record or nil
	GetByHash(ctx context.Context, hash string) (*domain.TradeRecord, error)

	// GetLatest returns the n records with the highest block number
	GetLatest(ctx context.Context, n int) ([]*domain.TradeRecord, error)

	// GetPage returns a filtered, sorted page
	GetPage(
		ctx context.Context,
		filter TradeFilter,
		sort Sort,
		limit, offset int,
	) ([]*domain.TradeRecord, error)

	// Count returns the number of records matching the filter
	Count(ctx context.Context, filter TradeFilter) (int, error)

	// CountOutside counts records with block number outside [fromBlock, toBlock]
	CountOutside(ctx context.Context, fromBlock, toBlock uint64) (int, error)

	// DeleteOutside deletes records with block number outside [fromBlock, toBlock]
	DeleteOutside(ctx context.Context, fromBlock, toBlock uint64) (int, error)

	// BlockSpan returns the lowest and highest stored block numbers
	BlockSpan(ctx context.Context) (low, high uint64, err error)
}

// TokenCache is a TTL cache of token metadata keyed by (address, network).
type TokenCache interface {
	// Get returns nil when the entry is missing or expired
	Get(ctx context.Context, address, networkID string) (*domain.TokenMetadata, error)
	Put(ctx context.Context, meta *domain.TokenMetadata) error
}

// BlockTimestampCache is a TTL cache of block timestamps keyed by (block, network).
type BlockTimestampCache interface {
	// Get returns ok=false when the entry is missing or expired
	Get(ctx context.Context, blockNumber uint64, networkID string) (ts int64, ok bool, err error)
	Put(ctx context.Context, blockNumber uint64, networkID string, ts int64) error
}

// RangeQueue keeps block ranges that were skipped after non-capacity errors.
type RangeQueue interface {
	Push(ctx context.Context, network string, r domain.BlockRange) error
	// Pop removes and returns the lowest queued range, or ErrEmptyQueue
	Pop(ctx context.Context, network string) (domain.BlockRange, error)
	List(ctx context.Context, network string) ([]domain.BlockRange, error)
}

// RunRepository stores sync run summaries.
type RunRepository interface {
	Start(ctx context.Context, run *domain.SyncRun) error
	Finish(ctx context.Context, run *domain.SyncRun) error
	Recent(ctx context.Context, network string, n int) ([]*domain.SyncRun, error)
}
