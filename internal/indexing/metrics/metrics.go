package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks RPC calls per network and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"network", "method"},
	)

	// RPCErrorsTotal tracks RPC errors by class (capacity, throttle, other)
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"network", "method", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradesync_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "method"},
	)

	// ChainLatestBlock tracks the head block seen at the start of a sync
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradesync_chain_latest_block",
			Help: "Latest block height of the chain",
		},
		[]string{"network"},
	)

	// BackfillCurrentBlock tracks the backward walk cursor
	BackfillCurrentBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradesync_backfill_current_block",
			Help: "Current block of the backward walk",
		},
		[]string{"network"},
	)

	// BackfillTargetBlock tracks the cutoff block
	BackfillTargetBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradesync_backfill_target_block",
			Help: "Cutoff block the backward walk stops at",
		},
		[]string{"network"},
	)

	// BatchSize tracks the adaptive batch size
	BatchSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradesync_batch_size",
			Help: "Current number of blocks requested per batch",
		},
		[]string{"network"},
	)

	// CapacityFailuresTotal counts batches rejected for being too large
	CapacityFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_capacity_failures_total",
			Help: "Total number of batch requests rejected for capacity",
		},
		[]string{"network"},
	)

	// SkippedRangesTotal counts ranges skipped after non-capacity errors
	SkippedRangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_skipped_ranges_total",
			Help: "Total number of block ranges skipped",
		},
		[]string{"network"},
	)

	// TradesSavedTotal counts persisted trade records
	TradesSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_trades_saved_total",
			Help: "Total number of trade records saved",
		},
		[]string{"network"},
	)

	// DuplicatesTotal counts transactions already present in the store
	DuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_duplicates_total",
			Help: "Total number of transactions skipped as duplicates",
		},
		[]string{"network"},
	)

	// ResolveErrorsTotal counts transactions whose orders could not be fetched
	ResolveErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_resolve_errors_total",
			Help: "Total number of transactions that failed resolution",
		},
		[]string{"network"},
	)

	// OrderbookRequestsTotal tracks order API calls by status class
	OrderbookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_orderbook_requests_total",
			Help: "Total number of order API requests",
		},
		[]string{"network", "status"},
	)
)
