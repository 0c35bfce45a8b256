package domain

import "time"

// SyncProgress holds the counters of a single backfill walk.
// Only the engine mutates it.
type SyncProgress struct {
	StartBlock   uint64
	CurrentBlock uint64
	TargetBlock  uint64

	TransactionsSeen int
	Saved            int
	Duplicates       int
	Errors           int
	SkippedRanges    int
	CapacityRetries  int
	Batches          int
}

// Remaining returns the number of blocks left before the cursor reaches the target.
func (p SyncProgress) Remaining() uint64 {
	if p.CurrentBlock <= p.TargetBlock {
		return 0
	}
	return p.CurrentBlock - p.TargetBlock
}

type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunCancelled SyncRunStatus = "cancelled"
	SyncRunFailed    SyncRunStatus = "failed"
)

// SyncRun is the persisted summary of one backfill invocation.
type SyncRun struct {
	ID          string
	Network     string
	StartedAt   time.Time
	FinishedAt  *time.Time
	StartBlock  uint64
	TargetBlock uint64
	Saved       int
	Duplicates  int
	Errors      int
	Status      SyncRunStatus
}

// BlockRange is an inclusive range of blocks.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}
