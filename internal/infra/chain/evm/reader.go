// Package evm reads settlement events from EVM chains over JSON-RPC.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/metrics"
	"github.com/vietddude/tradesync/internal/infra/chain"
)

// ErrBlockNotFound is returned when the node has no block at the requested height.
var ErrBlockNotFound = errors.New("block not found")

// Config configures a Reader.
type Config struct {
	Network    string
	RPCURL     string
	Settlement common.Address
	Timeout    time.Duration // per call, 0 disables
}

// Reader implements chain.Reader with go-ethereum's client.
type Reader struct {
	rpc        *rpc.Client
	eth        *ethclient.Client
	network    string
	settlement common.Address
	timeout    time.Duration
	monitor    *Monitor
	classify   chain.CapacityClassifier
	log        *slog.Logger
}

// Dial connects to the RPC endpoint.
func Dial(ctx context.Context, cfg Config) (*Reader, error) {
	client, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc %s: %w", cfg.Network, err)
	}
	return NewReader(client, cfg), nil
}

// NewReader wraps an existing RPC client.
func NewReader(client *rpc.Client, cfg Config) *Reader {
	return &Reader{
		rpc:        client,
		eth:        ethclient.NewClient(client),
		network:    cfg.Network,
		settlement: cfg.Settlement,
		timeout:    cfg.Timeout,
		monitor:    NewMonitor(),
		classify:   chain.DefaultCapacityClassifier,
		log:        slog.Default().With("component", "evm-reader", "network", cfg.Network),
	}
}

// Monitor returns the provider health monitor.
func (r *Reader) Monitor() *Monitor {
	return r.monitor
}

// Client returns the underlying ethclient, shared with the token fetcher.
func (r *Reader) Client() *ethclient.Client {
	return r.eth
}

// Close closes the RPC connection.
func (r *Reader) Close() {
	r.rpc.Close()
}

func (r *Reader) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := r.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		head, err = r.eth.BlockNumber(ctx)
		return err
	})
	return head, err
}

// headerTimestamp decodes only the timestamp so L2 headers with extra
// fields never fail to parse.
type headerTimestamp struct {
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

func (r *Reader) BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	var head *headerTimestamp
	err := r.call(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		return r.rpc.CallContext(ctx, &head, "eth_getBlockByNumber", hexutil.EncodeUint64(blockNumber), false)
	})
	if err != nil {
		return 0, err
	}
	if head == nil {
		return 0, &chain.ProviderError{
			Op:      "eth_getBlockByNumber",
			Message: fmt.Sprintf("block %d not found", blockNumber),
			Err:     ErrBlockNotFound,
		}
	}
	return int64(head.Timestamp), nil
}

func (r *Reader) EventsInRange(ctx context.Context, from, to uint64) ([]domain.RawEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{r.settlement},
		Topics:    [][]common.Hash{{TradeTopic}},
	}

	var events []domain.RawEvent
	err := r.call(ctx, "eth_getLogs", func(ctx context.Context) error {
		logs, err := r.eth.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		events = make([]domain.RawEvent, 0, len(logs))
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			// Resolution only needs the hash, so logs with bad data are kept.
			ev, err := DecodeTradeLog(lg)
			if err != nil {
				r.log.Warn("undecodable Trade log", "tx", lg.TxHash.Hex(), "index", lg.Index, "error", err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// call runs fn with the per-call timeout, records metrics and converts any
// failure into a *chain.ProviderError.
func (r *Reader) call(ctx context.Context, method string, fn func(context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start)

	metrics.RPCCallsTotal.WithLabelValues(r.network, method).Inc()
	metrics.RPCLatency.WithLabelValues(r.network, method).Observe(latency.Seconds())

	if err == nil {
		r.monitor.RecordRequest(latency)
		return nil
	}

	perr := toProviderError(method, err)
	switch {
	case chain.IsThrottle(perr):
		r.monitor.RecordThrottle()
		metrics.RPCErrorsTotal.WithLabelValues(r.network, method, "throttle").Inc()
	case r.classify(perr):
		r.monitor.RecordCapacity()
		metrics.RPCErrorsTotal.WithLabelValues(r.network, method, "capacity").Inc()
	default:
		r.monitor.RecordError()
		metrics.RPCErrorsTotal.WithLabelValues(r.network, method, "other").Inc()
	}
	return perr
}

// toProviderError extracts the JSON-RPC code, data and HTTP status from a
// go-ethereum error.
func toProviderError(method string, err error) *chain.ProviderError {
	var perr *chain.ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	perr = &chain.ProviderError{Op: method, Message: err.Error(), Err: err}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		perr.Code = rpcErr.ErrorCode()
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data := dataErr.ErrorData(); data != nil {
			perr.Data = fmt.Sprint(data)
		}
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		perr.HTTPStatus = httpErr.StatusCode
		perr.Message = httpErr.Status
		perr.Data = string(httpErr.Body)
	}

	return perr
}

var _ chain.Reader = (*Reader)(nil)
