package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/tradesync/internal/core/config"
	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/core/worker"
	"github.com/vietddude/tradesync/internal/indexing/backfill"
	"github.com/vietddude/tradesync/internal/indexing/rescan"
	redisclient "github.com/vietddude/tradesync/internal/infra/redis"
)

const lockTTL = time.Minute

// Sync backfills each network in turn. A failing network does not stop the
// ones after it; the returned error joins every failure.
func (r *Runner) Sync(ctx context.Context, names []string, dryRun bool) ([]*backfill.Report, error) {
	networks, err := r.Networks(names)
	if err != nil {
		return nil, err
	}

	var (
		reports []*backfill.Report
		errs    []error
	)
	for _, n := range networks {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		report, err := r.syncNetwork(ctx, n, dryRun)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			r.log.Error("Sync failed", "network", n.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
		}
	}
	return reports, errors.Join(errs...)
}

func (r *Runner) syncNetwork(ctx context.Context, n config.NetworkConfig, dryRun bool) (*backfill.Report, error) {
	net, err := r.Open(ctx, n, dryRun)
	if err != nil {
		return nil, err
	}
	defer net.Close()

	if dryRun {
		r.log.Info("Dry run, trades are kept in memory", "network", n.Name)
	}

	var report *backfill.Report
	err = r.withLock(ctx, n.Name, dryRun, func(ctx context.Context) error {
		r.health.SetRunStatus(n.Name, domain.SyncRunRunning)

		var runErr error
		report, runErr = r.Engine(net).Run(ctx)
		if report != nil {
			r.health.SetRunStatus(n.Name, report.Status)
		} else {
			r.health.SetRunStatus(n.Name, domain.SyncRunFailed)
		}
		return runErr
	})
	return report, err
}

// Rescan re-walks the ranges queued for a network, merged where they touch.
// Ranges that fail again are queued again by the engine and left for the
// next rescan.
func (r *Runner) Rescan(ctx context.Context, name string) ([]*backfill.Report, error) {
	networks, err := r.Networks([]string{name})
	if err != nil {
		return nil, err
	}
	n := networks[0]

	net, err := r.Open(ctx, n, false)
	if err != nil {
		return nil, err
	}
	defer net.Close()

	var reports []*backfill.Report
	err = r.withLock(ctx, n.Name, false, func(ctx context.Context) error {
		var err error
		w := rescan.NewWorker(n.Name, net.Ranges, r.Engine(net))
		if net.Fallback != nil {
			w = w.WithSources(net.Fallback)
		}
		reports, err = w.Run(ctx)
		return err
	})
	return reports, err
}

// Cleanup applies the retention window to each network's store. Without
// live it only counts what would be deleted.
func (r *Runner) Cleanup(ctx context.Context, names []string, months int, live bool) ([]*worker.PruneResult, error) {
	networks, err := r.Networks(names)
	if err != nil {
		return nil, err
	}

	var (
		results []*worker.PruneResult
		errs    []error
	)
	for _, n := range networks {
		res, err := r.cleanupNetwork(ctx, n, months, live)
		if err != nil {
			r.log.Error("Cleanup failed", "network", n.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (r *Runner) cleanupNetwork(ctx context.Context, n config.NetworkConfig, months int, live bool) (*worker.PruneResult, error) {
	net, err := r.Open(ctx, n, false)
	if err != nil {
		return nil, err
	}
	defer net.Close()

	if months <= 0 {
		months = r.cfg.MonthsFor(n)
	}
	return worker.NewPruner(n.Name, months, net.Chain, net.Trades).Prune(ctx, live)
}

// withLock runs fn while holding the network's Redis lock. Without Redis,
// or on a dry run, fn runs unlocked.
func (r *Runner) withLock(ctx context.Context, network string, dryRun bool, fn func(context.Context) error) error {
	rc, err := r.redisClient()
	if err != nil {
		r.log.Warn("Redis unavailable, running without sync lock", "network", network, "error", err)
		rc = nil
	}
	if rc == nil || dryRun {
		return fn(ctx)
	}

	ok, err := rc.AcquireLock(ctx, network, r.owner, lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrNetworkLocked
	}
	defer func() {
		if err := rc.ReleaseLock(context.Background(), network, r.owner); err != nil {
			r.log.Warn("Failed to release lock", "network", network, "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return fn(runCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return nil
			case <-ticker.C:
				err := rc.RefreshLock(runCtx, network, r.owner, lockTTL)
				if errors.Is(err, redisclient.ErrLockLost) {
					return err
				}
				if err != nil {
					r.log.Warn("Failed to refresh lock", "network", network, "error", err)
				}
			}
		}
	})
	return g.Wait()
}
