package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

var (
	tradesLimit   int
	tradesOffset  int
	tradesSort    string
	tradesAsc     bool
	tradesToken   string
	tradesOwner   string
	tradesSymbols bool
)

var tradesCmd = &cobra.Command{
	Use:   "trades <network>",
	Short: "List stored trades",
	Args:  cobra.ExactArgs(1),
	Run:   runTrades,
}

func init() {
	tradesCmd.Flags().IntVar(&tradesLimit, "limit", 20, "number of trades to show")
	tradesCmd.Flags().IntVar(&tradesOffset, "offset", 0, "number of trades to skip")
	tradesCmd.Flags().StringVar(&tradesSort, "sort", string(storage.SortByBlockNumber),
		"sort column: block_number, creation_date or updated_at")
	tradesCmd.Flags().BoolVar(&tradesAsc, "asc", false, "sort ascending")
	tradesCmd.Flags().StringVar(&tradesToken, "sell-token", "", "only trades selling this token")
	tradesCmd.Flags().StringVar(&tradesOwner, "owner", "", "only trades of this owner")
	tradesCmd.Flags().BoolVar(&tradesSymbols, "symbols", true, "resolve token symbols over RPC")
	rootCmd.AddCommand(tradesCmd)
}

func runTrades(cmd *cobra.Command, args []string) {
	runner := newRunner()
	defer runner.Close()

	networks, err := runner.Networks(args)
	if err != nil {
		fatal("Failed to select network", err)
	}

	ctx, stop := signalContext()
	defer stop()

	net, err := runner.Open(ctx, networks[0], false)
	if err != nil {
		fatal("Failed to open network", err)
	}
	defer net.Close()

	sort := storage.Sort{Field: storage.SortField(tradesSort), Descending: !tradesAsc}
	filter := storage.TradeFilter{SellToken: tradesToken, Owner: tradesOwner}

	trades, err := net.Trades.GetPage(ctx, filter, sort, tradesLimit, tradesOffset)
	if err != nil {
		fatal("Failed to list trades", err)
	}

	symbols := map[string]*domain.TokenMetadata{}
	if tradesSymbols {
		addrs := make([]string, 0, 2*len(trades))
		for _, t := range trades {
			addrs = append(addrs, t.SellToken, t.BuyToken)
		}
		symbols = net.Tokens.LookupAll(ctx, addrs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BLOCK\tHASH\tKIND\tSELL\tBUY\tEXECUTED SELL\tEXECUTED BUY")
	for _, t := range trades {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.BlockNumber, t.Hash, t.Kind,
			tokenLabel(symbols, t.SellToken), tokenLabel(symbols, t.BuyToken),
			t.ExecutedSellAmount, t.ExecutedBuyAmount)
	}
	_ = w.Flush()

	total, err := net.Trades.Count(ctx, filter)
	if err == nil {
		fmt.Printf("\n%d of %d trades\n", len(trades), total)
	}
}

func tokenLabel(symbols map[string]*domain.TokenMetadata, addr string) string {
	if meta, ok := symbols[addr]; ok && meta.Symbol != "" {
		return meta.Symbol
	}
	return addr
}
