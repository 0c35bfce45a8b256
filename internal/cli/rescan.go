package cli

import (
	"github.com/spf13/cobra"
)

var rescanCmd = &cobra.Command{
	Use:   "rescan <network>",
	Short: "Re-walk block ranges skipped by earlier syncs",
	Args:  cobra.ExactArgs(1),
	Run:   runRescan,
}

func init() {
	rootCmd.AddCommand(rescanCmd)
}

func runRescan(cmd *cobra.Command, args []string) {
	runner := newRunner()
	defer runner.Close()

	ctx, stop := signalContext()
	defer stop()

	reports, err := runner.Rescan(ctx, args[0])
	printReports(reports)
	if err != nil {
		fatal("Rescan failed", err)
	}
}
