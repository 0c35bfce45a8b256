package backfill

import (
	"log/slog"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
)

// Report summarises one walk.
type Report struct {
	RunID    string
	Network  string
	Status   domain.SyncRunStatus
	Progress domain.SyncProgress
	// Skipped lists the ranges lost to non-capacity errors
	Skipped []domain.BlockRange
	// FinalBatchSize is the batch size the controller settled on
	FinalBatchSize int
	// CutoffApproximate is set when the locator fell back to a midpoint
	CutoffApproximate bool
	StartedAt         time.Time
	Duration          time.Duration
}

// Log writes the report as one structured line.
func (r *Report) Log(log *slog.Logger) {
	p := r.Progress
	log.Info("sync finished",
		"run", r.RunID,
		"status", r.Status,
		"from", p.StartBlock,
		"to", p.TargetBlock,
		"batches", p.Batches,
		"transactions", p.TransactionsSeen,
		"saved", p.Saved,
		"duplicates", p.Duplicates,
		"errors", p.Errors,
		"skipped_ranges", p.SkippedRanges,
		"capacity_retries", p.CapacityRetries,
		"batch_size", r.FinalBatchSize,
		"approximate_cutoff", r.CutoffApproximate,
		"duration", r.Duration.Round(time.Millisecond),
	)
}

func (r *Report) toRun() *domain.SyncRun {
	finished := r.StartedAt.Add(r.Duration)
	return &domain.SyncRun{
		ID:          r.RunID,
		Network:     r.Network,
		StartedAt:   r.StartedAt,
		FinishedAt:  &finished,
		StartBlock:  r.Progress.StartBlock,
		TargetBlock: r.Progress.TargetBlock,
		Saved:       r.Progress.Saved,
		Duplicates:  r.Progress.Duplicates,
		Errors:      r.Progress.Errors,
		Status:      r.Status,
	}
}
