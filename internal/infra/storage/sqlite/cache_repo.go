package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// DefaultCacheTTL is how long cached token metadata and block timestamps stay valid.
const DefaultCacheTTL = 24 * time.Hour

// TokenCacheRepo implements storage.TokenCache on the token_metadata table.
type TokenCacheRepo struct {
	db  *DB
	ttl time.Duration
}

// NewTokenCacheRepo creates a token metadata cache. ttl <= 0 uses DefaultCacheTTL.
func NewTokenCacheRepo(db *DB, ttl time.Duration) *TokenCacheRepo {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &TokenCacheRepo{db: db, ttl: ttl}
}

type tokenRow struct {
	Address   string `db:"address"`
	NetworkID string `db:"network_id"`
	Symbol    string `db:"symbol"`
	Decimals  int    `db:"decimals"`
	CachedAt  int64  `db:"cached_at"`
}

// Get returns cached metadata, or nil when missing or expired.
func (r *TokenCacheRepo) Get(
	ctx context.Context,
	address, networkID string,
) (*domain.TokenMetadata, error) {
	var row tokenRow
	err := r.db.GetContext(ctx, &row, `
		SELECT address, network_id, symbol, decimals, cached_at
		FROM token_metadata
		WHERE address = ? AND network_id = ?`,
		strings.ToLower(address), networkID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token metadata: %w", err)
	}

	cachedAt := time.Unix(row.CachedAt, 0)
	if r.db.now().Sub(cachedAt) >= r.ttl {
		return nil, nil
	}

	return &domain.TokenMetadata{
		Address:   row.Address,
		NetworkID: row.NetworkID,
		Symbol:    row.Symbol,
		Decimals:  uint8(row.Decimals),
		CachedAt:  cachedAt,
	}, nil
}

// Put inserts or replaces the metadata entry.
func (r *TokenCacheRepo) Put(ctx context.Context, meta *domain.TokenMetadata) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO token_metadata (address, network_id, symbol, decimals, cached_at)
		VALUES (?, ?, ?, ?, ?)`,
		strings.ToLower(meta.Address), meta.NetworkID, meta.Symbol, int(meta.Decimals),
		r.db.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to cache token metadata: %w", err)
	}
	return nil
}

// BlockTimestampRepo implements storage.BlockTimestampCache on the block_timestamps table.
type BlockTimestampRepo struct {
	db  *DB
	ttl time.Duration
}

// NewBlockTimestampRepo creates a block timestamp cache. ttl <= 0 uses DefaultCacheTTL.
func NewBlockTimestampRepo(db *DB, ttl time.Duration) *BlockTimestampRepo {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &BlockTimestampRepo{db: db, ttl: ttl}
}

// Get returns the cached timestamp if present and younger than the TTL.
func (r *BlockTimestampRepo) Get(
	ctx context.Context,
	blockNumber uint64,
	networkID string,
) (int64, bool, error) {
	var row struct {
		Timestamp int64 `db:"timestamp"`
		CachedAt  int64 `db:"cached_at"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT timestamp, cached_at FROM block_timestamps
		WHERE block_number = ? AND network_id = ?`,
		int64(blockNumber), networkID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get block timestamp: %w", err)
	}

	if r.db.now().Sub(time.Unix(row.CachedAt, 0)) >= r.ttl {
		return 0, false, nil
	}
	return row.Timestamp, true, nil
}

// Put inserts or replaces the timestamp entry.
func (r *BlockTimestampRepo) Put(
	ctx context.Context,
	blockNumber uint64,
	networkID string,
	ts int64,
) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO block_timestamps (block_number, network_id, timestamp, cached_at)
		VALUES (?, ?, ?, ?)`,
		int64(blockNumber), networkID, ts, r.db.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to cache block timestamp: %w", err)
	}
	return nil
}

var (
	_ storage.TokenCache          = (*TokenCacheRepo)(nil)
	_ storage.BlockTimestampCache = (*BlockTimestampRepo)(nil)
)
