// Package worker holds maintenance jobs that run outside the sync walk.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/tradesync/internal/indexing/locator"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// PruneResult describes one retention pass.
type PruneResult struct {
	Network string
	Head    uint64
	Cutoff  uint64
	// Approximate is set when the cutoff block is a fallback midpoint
	Approximate bool
	// Matching is the number of records outside [Cutoff, Head]
	Matching int
	Deleted  int
	Live     bool
}

// Pruner deletes trades that fall outside the retention window.
type Pruner struct {
	network string
	months  int
	reader  locator.BlockReader
	trades  storage.TradeRepository
	now     func() time.Time
	log     *slog.Logger
}

// NewPruner creates a Pruner keeping the last months of history.
func NewPruner(
	network string,
	months int,
	reader locator.BlockReader,
	trades storage.TradeRepository,
) *Pruner {
	return &Pruner{
		network: network,
		months:  months,
		reader:  reader,
		trades:  trades,
		now:     time.Now,
		log:     slog.Default().With("component", "pruner", "network", network),
	}
}

// Prune counts the records outside the window and, when live is set,
// deletes them.
func (p *Pruner) Prune(ctx context.Context, live bool) (*PruneResult, error) {
	if p.months <= 0 {
		return nil, fmt.Errorf("invalid retention: %d months", p.months)
	}

	head, cutoff, err := locator.CutoffBlock(ctx, p.reader, p.months, p.now())
	if err != nil {
		return nil, fmt.Errorf("failed to locate cutoff block: %w", err)
	}

	res := &PruneResult{
		Network:     p.network,
		Head:        head,
		Cutoff:      cutoff.Block,
		Approximate: cutoff.Approximate,
		Live:        live,
	}

	res.Matching, err = p.trades.CountOutside(ctx, res.Cutoff, res.Head)
	if err != nil {
		return nil, fmt.Errorf("failed to count stale trades: %w", err)
	}

	if !live {
		p.log.Info("dry run, nothing deleted",
			"cutoff", res.Cutoff, "head", res.Head, "would_delete", res.Matching)
		return res, nil
	}

	res.Deleted, err = p.trades.DeleteOutside(ctx, res.Cutoff, res.Head)
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale trades: %w", err)
	}
	p.log.Info("pruned trades", "cutoff", res.Cutoff, "head", res.Head, "deleted", res.Deleted)
	return res, nil
}
