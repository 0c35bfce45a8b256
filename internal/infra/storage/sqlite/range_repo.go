package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// RangeRepo implements storage.RangeQueue on the skipped_ranges table.
type RangeRepo struct {
	db *DB
}

// NewRangeRepo creates a new skipped range queue.
func NewRangeRepo(db *DB) *RangeRepo {
	return &RangeRepo{db: db}
}

type rangeRow struct {
	FromBlock int64 `db:"from_block"`
	ToBlock   int64 `db:"to_block"`
}

// Push queues a range. Pushing the same range twice is a no-op.
func (r *RangeRepo) Push(ctx context.Context, network string, br domain.BlockRange) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO skipped_ranges (network, from_block, to_block, created_at)
		VALUES (?, ?, ?, ?)`,
		network, int64(br.From), int64(br.To), r.db.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to queue range: %w", err)
	}
	return nil
}

// Pop removes and returns the lowest queued range.
func (r *RangeRepo) Pop(ctx context.Context, network string) (domain.BlockRange, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.BlockRange{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var row rangeRow
	err = tx.GetContext(ctx, &row, `
		SELECT from_block, to_block FROM skipped_ranges
		WHERE network = ? ORDER BY from_block, to_block LIMIT 1`, network)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BlockRange{}, storage.ErrEmptyQueue
	}
	if err != nil {
		return domain.BlockRange{}, fmt.Errorf("failed to read range: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM skipped_ranges WHERE network = ? AND from_block = ? AND to_block = ?`,
		network, row.FromBlock, row.ToBlock)
	if err != nil {
		return domain.BlockRange{}, fmt.Errorf("failed to remove range: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.BlockRange{}, fmt.Errorf("failed to commit range pop: %w", err)
	}

	return domain.BlockRange{From: uint64(row.FromBlock), To: uint64(row.ToBlock)}, nil
}

// List returns all queued ranges in ascending order.
func (r *RangeRepo) List(ctx context.Context, network string) ([]domain.BlockRange, error) {
	var rows []rangeRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT from_block, to_block FROM skipped_ranges
		WHERE network = ? ORDER BY from_block, to_block`, network)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranges: %w", err)
	}

	ranges := make([]domain.BlockRange, len(rows))
	for i, row := range rows {
		ranges[i] = domain.BlockRange{From: uint64(row.FromBlock), To: uint64(row.ToBlock)}
	}
	return ranges, nil
}

var _ storage.RangeQueue = (*RangeRepo)(nil)
