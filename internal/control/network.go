package control

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/tradesync/internal/core/config"
	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/backfill"
	"github.com/vietddude/tradesync/internal/indexing/recovery"
	"github.com/vietddude/tradesync/internal/indexing/resolver"
	"github.com/vietddude/tradesync/internal/indexing/throttle"
	"github.com/vietddude/tradesync/internal/indexing/tokens"
	"github.com/vietddude/tradesync/internal/infra/chain"
	"github.com/vietddude/tradesync/internal/infra/chain/evm"
	"github.com/vietddude/tradesync/internal/infra/orderbook"
	redisclient "github.com/vietddude/tradesync/internal/infra/redis"
	"github.com/vietddude/tradesync/internal/infra/storage"
	"github.com/vietddude/tradesync/internal/infra/storage/memory"
	"github.com/vietddude/tradesync/internal/infra/storage/sqlite"
)

// Store is the set of repositories of one network.
type Store struct {
	Trades     storage.TradeRepository
	TokenCache storage.TokenCache
	Timestamps storage.BlockTimestampCache
	Ranges     storage.RangeQueue
	Runs       storage.RunRepository
	// Fallback is the SQLite range queue when Ranges lives in Redis. It holds
	// ranges skipped while Redis was unreachable.
	Fallback storage.RangeQueue

	db *sqlite.DB
}

// Path returns the database file, empty for in-memory stores.
func (s *Store) Path() string {
	if s.db == nil {
		return ""
	}
	return s.db.FilePath()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// OpenStore opens the network's SQLite file, or in-memory repositories when
// dryRun is set. Skipped ranges go to Redis when it is configured.
func (r *Runner) OpenStore(ctx context.Context, n config.NetworkConfig, dryRun bool) (*Store, error) {
	if dryRun {
		mem := memory.NewMemoryStorage()
		return &Store{
			Trades:     memory.NewTradeRepo(mem),
			TokenCache: memory.NewTokenCache(mem),
			Timestamps: memory.NewBlockTimestampCache(mem),
			Ranges:     memory.NewRangeQueue(mem),
			Runs:       memory.NewRunRepo(mem),
		}, nil
	}

	db, err := sqlite.Open(ctx, sqlite.Path(r.cfg.DataDir, n.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to open store for %s: %w", n.Name, err)
	}

	ttl := r.cfg.Backfill.CacheTTL
	s := &Store{
		Trades:     sqlite.NewTradeRepo(db),
		TokenCache: sqlite.NewTokenCacheRepo(db, ttl),
		Timestamps: sqlite.NewBlockTimestampRepo(db, ttl),
		Ranges:     sqlite.NewRangeRepo(db),
		Runs:       sqlite.NewRunRepo(db),
		db:         db,
	}

	rc, err := r.redisClient()
	if err != nil {
		r.log.Warn("Redis unavailable, keeping skipped ranges in SQLite", "error", err)
	} else if rc != nil {
		s.Fallback = s.Ranges
		s.Ranges = redisclient.NewRangeQueue(rc)
	}
	return s, nil
}

// Queued lists the skipped ranges of network in every queue of the store.
func (s *Store) Queued(ctx context.Context, network string) ([]domain.BlockRange, error) {
	queued, err := s.Ranges.List(ctx, network)
	if err != nil {
		return nil, err
	}
	if s.Fallback != nil {
		more, err := s.Fallback.List(ctx, network)
		if err != nil {
			return nil, err
		}
		queued = append(queued, more...)
	}
	return queued, nil
}

// Network is everything needed to sync one network.
type Network struct {
	*Store
	Config   config.NetworkConfig
	Reader   *evm.Reader
	Chain    chain.Reader
	Orders   *orderbook.Client
	Tokens   *tokens.Service
	Resolver *resolver.Resolver
}

// Name returns the network name.
func (n *Network) Name() string {
	return n.Config.Name
}

// Close closes the RPC connection and the store.
func (n *Network) Close() error {
	n.Reader.Close()
	return n.Store.Close()
}

// Open connects to the network's RPC endpoint and opens its store.
func (r *Runner) Open(ctx context.Context, n config.NetworkConfig, dryRun bool) (*Network, error) {
	if !common.IsHexAddress(n.SettlementAddress) {
		return nil, fmt.Errorf("invalid settlement address %q for %s", n.SettlementAddress, n.Name)
	}

	store, err := r.OpenStore(ctx, n, dryRun)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	reader, err := evm.Dial(dialCtx, evm.Config{
		Network:    n.Name,
		RPCURL:     n.RPCURL,
		Settlement: common.HexToAddress(n.SettlementAddress),
		Timeout:    n.RPCTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	orders := orderbook.NewClient(orderbook.Config{
		BaseURL:           r.cfg.Orderbook.BaseURL,
		Timeout:           r.cfg.Orderbook.Timeout,
		RequestsPerSecond: r.cfg.Orderbook.RequestsPerSecond,
		Burst:             r.cfg.Orderbook.Burst,
	}, n.Name)

	r.health.Register(n.Name, reader.Monitor(), store.Ranges)

	return &Network{
		Store:    store,
		Config:   n,
		Reader:   reader,
		Chain:    chain.NewCachedReader(reader, store.Timestamps, n.Name),
		Orders:   orders,
		Tokens:   tokens.NewService(store.TokenCache, evm.NewTokenFetcher(reader.Client(), n.Name), n.Name),
		Resolver: r.newResolver(orders),
	}, nil
}

// BackfillConfig maps the configuration of network n onto the engine's.
func (r *Runner) BackfillConfig(n config.NetworkConfig) backfill.Config {
	b := r.cfg.Backfill
	cfg := backfill.DefaultConfig(n.Name)
	cfg.Months = r.cfg.MonthsFor(n)
	cfg.Throttle = throttle.Config{
		InitialBatchSize: b.InitialBatchSize,
		MinBatchSize:     b.MinBatchSize,
		MaxBatchSize:     b.MaxBatchSize,
	}
	cfg.BatchDelay = b.BatchDelay
	cfg.MaxRetriesAtMin = b.MaxRetriesAtMin
	cfg.ETAWindow = b.ETAWindow
	return cfg
}

// Engine builds the backfill engine of the network.
func (r *Runner) Engine(n *Network) *backfill.Engine {
	return backfill.NewEngine(r.BackfillConfig(n.Config), n.Chain, n.Resolver, n.Trades,
		backfill.WithRangeQueue(n.Ranges),
		backfill.WithRunRepository(n.Runs),
	)
}

// newResolver builds the trade resolver over the order client. Lookups are
// made once unless orderbook.retry_attempts is set.
func (r *Runner) newResolver(orders resolver.OrderSource) *resolver.Resolver {
	res := resolver.New(orders)
	if attempts := r.cfg.Orderbook.RetryAttempts; attempts > 0 {
		strategy := recovery.DefaultBackoff(orderFailure)
		strategy.MaxAttempts = attempts + 1
		res = res.WithRetry(strategy)
	}
	return res
}

// orderFailure retries throttled and failed order API calls.
func orderFailure(err error) recovery.FailureCategory {
	if orderbook.IsTransient(err) {
		return recovery.CategoryTransient
	}
	return recovery.CategoryPermanent
}
