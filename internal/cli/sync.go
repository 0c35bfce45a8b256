package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/tradesync/internal/indexing/backfill"
	"github.com/vietddude/tradesync/internal/indexing/health"
)

var dryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync [network...]",
	Short: "Backfill trades from the chain head down to the retention cutoff",
	Long: `Backfill every configured network, or only the ones named, one after another.
A network that fails does not stop the others; the exit code is 1 if any failed.`,
	Run: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "walk and resolve without writing to the database")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) {
	runner := newRunner()
	defer runner.Close()

	ctx, stop := signalContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	syncCtx, syncDone := context.WithCancel(gctx)
	defer syncDone()

	if port := runner.Config().Metrics.Port; port > 0 {
		server := health.NewServer(runner.Health(), port)
		g.Go(func() error {
			return server.Run(syncCtx)
		})
		slog.Info("Serving /health and /metrics", "port", port)
	}

	var reports []*backfill.Report
	g.Go(func() error {
		defer syncDone()
		var err error
		reports, err = runner.Sync(syncCtx, args, dryRun)
		return err
	})

	err := g.Wait()
	printReports(reports)

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			slog.Warn("Sync interrupted")
			return
		}
		fatal("Sync failed", err)
	}
}

func printReports(reports []*backfill.Report) {
	if len(reports) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NETWORK\tSTATUS\tBLOCKS\tTXS\tSAVED\tDUPLICATES\tERRORS\tSKIPPED\tDURATION")
	for _, r := range reports {
		p := r.Progress
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d..%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Network, r.Status, p.TargetBlock, p.StartBlock,
			p.TransactionsSeen, p.Saved, p.Duplicates, p.Errors, p.SkippedRanges,
			r.Duration.Round(time.Millisecond))
	}
	_ = w.Flush()
}
