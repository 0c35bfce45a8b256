package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	cleanupMonths int
	cleanupLive   bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [network...]",
	Short: "Delete trades outside the retention window",
	Long: `Delete trades whose block is outside [cutoff, head], where the cutoff is the
block at now minus --months. Without --live only the matching rows are counted.`,
	Run: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupMonths, "months", 4, "months of history to keep")
	cleanupCmd.Flags().BoolVar(&cleanupLive, "live", false, "delete instead of counting")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	runner := newRunner()
	defer runner.Close()

	ctx, stop := signalContext()
	defer stop()

	results, err := runner.Cleanup(ctx, args, cleanupMonths, cleanupLive)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NETWORK\tCUTOFF\tHEAD\tOUTSIDE\tDELETED\tMODE")
	for _, r := range results {
		mode := "dry-run"
		if r.Live {
			mode = "live"
		}
		cutoff := fmt.Sprintf("%d", r.Cutoff)
		if r.Approximate {
			cutoff += " (approx)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", r.Network, cutoff, r.Head, r.Matching, r.Deleted, mode)
	}
	_ = w.Flush()

	if err != nil {
		fatal("Cleanup failed", err)
	}
}
