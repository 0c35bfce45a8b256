package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/locator"
	"github.com/vietddude/tradesync/internal/indexing/metrics"
	"github.com/vietddude/tradesync/internal/indexing/resolver"
	"github.com/vietddude/tradesync/internal/indexing/throttle"
	"github.com/vietddude/tradesync/internal/infra/chain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// Engine runs the backward walk for one network.
type Engine struct {
	cfg      Config
	reader   chain.Reader
	resolver TradeResolver
	trades   storage.TradeRepository
	ranges   storage.RangeQueue
	runs     storage.RunRepository
	clock    Clock
	log      *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithRangeQueue records skipped ranges for a later rescan.
func WithRangeQueue(q storage.RangeQueue) Option {
	return func(e *Engine) { e.ranges = q }
}

// WithRunRepository records a summary of every run.
func WithRunRepository(r storage.RunRepository) Option {
	return func(e *Engine) { e.runs = r }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine for cfg.Network.
func NewEngine(
	cfg Config,
	reader chain.Reader,
	res TradeResolver,
	trades storage.TradeRepository,
	opts ...Option,
) *Engine {
	if cfg.IsCapacityError == nil {
		cfg.IsCapacityError = chain.DefaultCapacityClassifier
	}
	if cfg.MaxRetriesAtMin < 1 {
		cfg.MaxRetriesAtMin = 1
	}

	e := &Engine{
		cfg:      cfg,
		reader:   reader,
		resolver: res,
		trades:   trades,
		clock:    SystemClock(),
		log:      slog.Default().With("component", "backfill", "network", cfg.Network),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run locates the cutoff block for the configured retention and walks from
// the head down to it.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	head, cutoff, err := locator.CutoffBlock(ctx, e.reader, e.cfg.Months, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to locate cutoff block: %w", err)
	}
	metrics.ChainLatestBlock.WithLabelValues(e.cfg.Network).Set(float64(head))

	e.log.Info("cutoff located",
		"head", head,
		"cutoff", cutoff.Block,
		"months", e.cfg.Months,
		"probes", cutoff.Probes,
		"approximate", cutoff.Approximate,
	)

	report, err := e.RunRange(ctx, cutoff.Block, head)
	if report != nil {
		report.CutoffApproximate = cutoff.Approximate
	}
	return report, err
}

// RunRange walks [from, to] from the top down. It returns a report even
// when the walk is cancelled or fails, together with the error.
func (e *Engine) RunRange(ctx context.Context, from, to uint64) (*Report, error) {
	if from > to {
		return nil, fmt.Errorf("invalid range: from %d > to %d", from, to)
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Network:   e.cfg.Network,
		Status:    domain.SyncRunRunning,
		StartedAt: e.clock.Now(),
		Progress: domain.SyncProgress{
			StartBlock:   to,
			CurrentBlock: to,
			TargetBlock:  from,
		},
	}
	e.startRun(ctx, report)

	metrics.BackfillTargetBlock.WithLabelValues(e.cfg.Network).Set(float64(from))

	err := e.walk(ctx, report)
	switch {
	case err == nil:
		report.Status = domain.SyncRunCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		report.Status = domain.SyncRunCancelled
	default:
		report.Status = domain.SyncRunFailed
	}
	report.Duration = e.clock.Now().Sub(report.StartedAt)

	e.finishRun(report)
	report.Log(e.log)
	return report, err
}

func (e *Engine) walk(ctx context.Context, report *Report) error {
	p := &report.Progress
	state := throttle.NewBatchState(e.cfg.Throttle)
	eta := newETAEstimator(e.cfg.ETAWindow)
	failuresAtMin := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r := nextRange(p.CurrentBlock, p.TargetBlock, state.Size)
		metrics.BatchSize.WithLabelValues(e.cfg.Network).Set(float64(state.Size))

		started := e.clock.Now()
		events, err := e.reader.EventsInRange(ctx, r.From, r.To)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if e.cfg.IsCapacityError(err) {
				if !state.AtMin() {
					failuresAtMin = 0
				} else {
					failuresAtMin++
				}
				if failuresAtMin <= e.cfg.MaxRetriesAtMin {
					p.CapacityRetries++
					metrics.CapacityFailuresTotal.WithLabelValues(e.cfg.Network).Inc()
					prev := state.Size
					state = state.OnFailure()
					e.log.Debug("batch too large, shrinking",
						"from", r.From, "to", r.To,
						"size", prev, "next_size", state.Size,
						"error", err,
					)
					continue
				}
				e.log.Warn("capacity errors persist at minimum batch size",
					"size", state.Size, "attempts", failuresAtMin)
			}

			e.skip(ctx, report, r, err)
		} else {
			if err := e.processBatch(ctx, p, events); err != nil {
				return err
			}
			state = state.OnSuccess()
		}
		failuresAtMin = 0
		p.Batches++

		done := r.From == p.TargetBlock
		if done {
			p.CurrentBlock = p.TargetBlock
		} else {
			p.CurrentBlock = r.From - 1
		}
		metrics.BackfillCurrentBlock.WithLabelValues(e.cfg.Network).Set(float64(p.CurrentBlock))

		eta.Record(r.Len(), e.clock.Now().Sub(started))
		e.log.Info("batch done",
			"from", r.From,
			"to", r.To,
			"events", len(events),
			"next_size", state.Size,
			"remaining", p.Remaining(),
			"saved", p.Saved,
			"duplicates", p.Duplicates,
			"errors", p.Errors,
			"eta", eta.Estimate(p.Remaining()),
		)

		if done {
			report.FinalBatchSize = state.Size
			return nil
		}

		if err := e.clock.Sleep(ctx, e.cfg.BatchDelay); err != nil {
			return err
		}
	}
}

// nextRange is the batch ending at current, clipped at target.
func nextRange(current, target uint64, size int) domain.BlockRange {
	from := target
	if span := uint64(size) - 1; current-target > span {
		from = current - span
	}
	return domain.BlockRange{From: from, To: current}
}

func (e *Engine) skip(ctx context.Context, report *Report, r domain.BlockRange, cause error) {
	p := &report.Progress
	p.Errors++
	p.SkippedRanges++
	report.Skipped = append(report.Skipped, r)
	metrics.SkippedRangesTotal.WithLabelValues(e.cfg.Network).Inc()

	e.log.Error("skipping range after provider error",
		"from", r.From, "to", r.To, "error", cause)

	if e.ranges == nil {
		return
	}
	if err := e.ranges.Push(ctx, e.cfg.Network, r); err != nil {
		e.log.Warn("failed to queue skipped range", "from", r.From, "to", r.To, "error", err)
	}
}

// processBatch deduplicates, resolves and stores the transactions of one batch.
func (e *Engine) processBatch(ctx context.Context, p *domain.SyncProgress, events []domain.RawEvent) error {
	txs := resolver.GroupByTransaction(events)
	p.TransactionsSeen += len(txs)

	var (
		records []*domain.TradeRecord
		stored  int
	)
	for _, tx := range txs {
		exists, err := e.trades.ExistsByHash(ctx, tx.Hash)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", tx.Hash, err)
		}
		if exists {
			p.Duplicates++
			metrics.DuplicatesTotal.WithLabelValues(e.cfg.Network).Inc()
			continue
		}

		resolved, err := e.resolver.Resolve(ctx, tx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Errors++
			metrics.ResolveErrorsTotal.WithLabelValues(e.cfg.Network).Inc()
			e.log.Warn("failed to resolve transaction", "tx", tx.Hash, "block", tx.BlockNumber, "error", err)
			continue
		}
		if len(resolved) > 0 {
			stored++
		}
		records = append(records, resolved...)
	}

	if len(records) == 0 {
		return nil
	}
	if err := e.trades.UpsertBatch(ctx, records); err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	// Records share their transaction's key, so Saved counts transactions.
	p.Saved += stored
	metrics.TradesSavedTotal.WithLabelValues(e.cfg.Network).Add(float64(stored))
	return nil
}

func (e *Engine) startRun(ctx context.Context, report *Report) {
	if e.runs == nil {
		return
	}
	run := report.toRun()
	run.FinishedAt = nil
	if err := e.runs.Start(ctx, run); err != nil {
		e.log.Warn("failed to record sync run", "error", err)
	}
}

func (e *Engine) finishRun(report *Report) {
	if e.runs == nil {
		return
	}
	// The walk's context may already be cancelled.
	if err := e.runs.Finish(context.Background(), report.toRun()); err != nil {
		e.log.Warn("failed to finish sync run", "error", err)
	}
}
