// Package rescan re-walks the block ranges a sync skipped after provider
// errors.
package rescan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/backfill"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// RangeRunner walks one inclusive block range.
type RangeRunner interface {
	RunRange(ctx context.Context, from, to uint64) (*backfill.Report, error)
}

// Worker drains a network's skipped range queue.
type Worker struct {
	network string
	queue   storage.RangeQueue
	sources []storage.RangeQueue
	runner  RangeRunner
	log     *slog.Logger
}

// NewWorker creates a new rescan worker.
func NewWorker(network string, queue storage.RangeQueue, runner RangeRunner) *Worker {
	return &Worker{
		network: network,
		queue:   queue,
		runner:  runner,
		log:     slog.Default().With("component", "rescan", "network", network),
	}
}

// WithSources returns a copy of w that also drains the given queues. Ranges
// taken from them are put back on the worker's own queue.
func (w *Worker) WithSources(queues ...storage.RangeQueue) *Worker {
	cp := *w
	cp.sources = append(append([]storage.RangeQueue(nil), w.sources...), queues...)
	return &cp
}

// Run takes every queued range, merges overlapping and adjacent ones and
// walks them in order. Ranges that fail again are queued again by the
// runner. If a walk stops early, the ranges not yet walked are put back.
func (w *Worker) Run(ctx context.Context) ([]*backfill.Report, error) {
	queued, err := w.drain(ctx)
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		w.log.Info("No skipped ranges queued")
		return nil, nil
	}

	ranges := MergeRanges(queued)
	w.log.Info("Rescanning skipped ranges", "queued", len(queued), "merged", len(ranges))

	var reports []*backfill.Report
	for i, r := range ranges {
		report, err := w.runner.RunRange(ctx, r.From, r.To)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			w.requeue(ctx, ranges[i:])
			return reports, fmt.Errorf("failed to rescan %d-%d: %w", r.From, r.To, err)
		}
		w.log.Info("Range completed", "from", r.From, "to", r.To, "saved", report.Progress.Saved)
	}
	return reports, nil
}

func (w *Worker) drain(ctx context.Context) ([]domain.BlockRange, error) {
	var out []domain.BlockRange
	for _, q := range append([]storage.RangeQueue{w.queue}, w.sources...) {
		for {
			r, err := q.Pop(ctx, w.network)
			if errors.Is(err, storage.ErrEmptyQueue) {
				break
			}
			if err != nil {
				w.requeue(ctx, out)
				return nil, fmt.Errorf("failed to pop range: %w", err)
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (w *Worker) requeue(ctx context.Context, ranges []domain.BlockRange) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range ranges {
		if err := w.queue.Push(ctx, w.network, r); err != nil {
			w.log.Error("Failed to re-queue range", "from", r.From, "to", r.To, "error", err)
		}
	}
}
