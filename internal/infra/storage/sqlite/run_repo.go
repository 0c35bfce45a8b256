package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// RunRepo implements storage.RunRepository on the sync_runs table.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new sync run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

type runRow struct {
	ID          string        `db:"id"`
	Network     string        `db:"network"`
	StartedAt   int64         `db:"started_at"`
	FinishedAt  sql.NullInt64 `db:"finished_at"`
	StartBlock  int64         `db:"start_block"`
	TargetBlock int64         `db:"target_block"`
	Saved       int           `db:"saved"`
	Duplicates  int           `db:"duplicates"`
	Errors      int           `db:"errors"`
	Status      string        `db:"status"`
}

func (r *runRow) toDomain() *domain.SyncRun {
	run := &domain.SyncRun{
		ID:          r.ID,
		Network:     r.Network,
		StartedAt:   time.Unix(r.StartedAt, 0).UTC(),
		StartBlock:  uint64(r.StartBlock),
		TargetBlock: uint64(r.TargetBlock),
		Saved:       r.Saved,
		Duplicates:  r.Duplicates,
		Errors:      r.Errors,
		Status:      domain.SyncRunStatus(r.Status),
	}
	if r.FinishedAt.Valid {
		t := time.Unix(r.FinishedAt.Int64, 0).UTC()
		run.FinishedAt = &t
	}
	return run
}

// Start records a new run.
func (r *RunRepo) Start(ctx context.Context, run *domain.SyncRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, network, started_at, start_block, target_block, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Network, run.StartedAt.Unix(), int64(run.StartBlock),
		int64(run.TargetBlock), string(run.Status))
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// Finish stores the final totals of a run.
func (r *RunRepo) Finish(ctx context.Context, run *domain.SyncRun) error {
	finished := r.db.now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET finished_at = ?, target_block = ?, saved = ?, duplicates = ?, errors = ?, status = ?
		WHERE id = ?`,
		finished.Unix(), int64(run.TargetBlock), run.Saved, run.Duplicates, run.Errors,
		string(run.Status), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	return nil
}

// Recent returns the latest n runs of a network, newest first.
func (r *RunRepo) Recent(ctx context.Context, network string, n int) ([]*domain.SyncRun, error) {
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, network, started_at, finished_at, start_block, target_block,
		       saved, duplicates, errors, status
		FROM sync_runs WHERE network = ?
		ORDER BY started_at DESC, rowid DESC LIMIT ?`, network, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	runs := make([]*domain.SyncRun, len(rows))
	for i := range rows {
		runs[i] = rows[i].toDomain()
	}
	return runs, nil
}

var _ storage.RunRepository = (*RunRepo)(nil)
