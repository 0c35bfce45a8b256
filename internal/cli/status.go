package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/tradesync/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [network...]",
	Short: "Show stored trades, queued ranges and recent runs per network",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	runner := newRunner()
	defer runner.Close()

	networks, err := runner.Networks(args)
	if err != nil {
		fatal("Failed to select networks", err)
	}

	ctx := context.Background()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NETWORK\tTRADES\tBLOCKS\tQUEUED\tLAST RUN\tSTATUS\tSAVED\tFILE")

	for _, n := range networks {
		store, err := runner.OpenStore(ctx, n, false)
		if err != nil {
			slog.Error("Failed to open store", "network", n.Name, "error", err)
			continue
		}

		count, err := store.Trades.Count(ctx, storage.TradeFilter{})
		if err != nil {
			slog.Warn("Failed to count trades", "network", n.Name, "error", err)
		}
		low, high, _ := store.Trades.BlockSpan(ctx)
		queued, _ := store.Queued(ctx, n.Name)

		lastRun, status, saved := "-", "-", "-"
		if runs, err := store.Runs.Recent(ctx, n.Name, 1); err == nil && len(runs) > 0 {
			lastRun = runs[0].StartedAt.Format(time.RFC3339)
			status = string(runs[0].Status)
			saved = fmt.Sprintf("%d", runs[0].Saved)
		}

		_, _ = fmt.Fprintf(w, "%s\t%d\t%d..%d\t%d\t%s\t%s\t%s\t%s\n",
			n.Name, count, low, high, len(queued), lastRun, status, saved, store.Path())
		_ = store.Close()
	}
	_ = w.Flush()
}
