// Package memory provides in-process implementations of the storage
// repositories. They back the engine tests and `sync --dry-run`.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

type blockKey struct {
	number  uint64
	network string
}

type tokenKey struct {
	address string
	network string
}

type cachedTimestamp struct {
	ts       int64
	cachedAt time.Time
}

type MemoryStorage struct {
	trades     map[string]*domain.TradeRecord
	tokens     map[tokenKey]*domain.TokenMetadata
	timestamps map[blockKey]cachedTimestamp
	ranges     map[string][]domain.BlockRange
	runs       []*domain.SyncRun
	ttl        time.Duration
	now        func() time.Time
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		trades:     make(map[string]*domain.TradeRecord),
		tokens:     make(map[tokenKey]*domain.TokenMetadata),
		timestamps: make(map[blockKey]cachedTimestamp),
		ranges:     make(map[string][]domain.BlockRange),
		ttl:        24 * time.Hour,
		now:        time.Now,
	}
}

// SetClock overrides the clock used for timestamps and TTL checks.
func (s *MemoryStorage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// -----------------------------------------------------------------------------
// Trade Repository
// -----------------------------------------------------------------------------

type TradeRepo struct {
	store *MemoryStorage
}

func NewTradeRepo(store *MemoryStorage) *TradeRepo {
	return &TradeRepo{store: store}
}

func normalize(record *domain.TradeRecord, now time.Time) (*domain.TradeRecord, error) {
	cp := *record
	cp.Hash = strings.ToLower(strings.TrimSpace(cp.Hash))
	for _, amount := range []*string{
		&cp.SellAmount, &cp.BuyAmount, &cp.ExecutedSellAmount,
		&cp.ExecutedBuyAmount, &cp.ExecutedSellAmountBeforeFees,
	} {
		clean, err := domain.SanitizeAmount(*amount)
		if err != nil {
			return nil, fmt.Errorf("trade %s: %w", record.Hash, err)
		}
		*amount = clean
	}
	cp.UpdatedAt = now
	return &cp, nil
}

func (r *TradeRepo) Upsert(ctx context.Context, record *domain.TradeRecord) error {
	return r.UpsertBatch(ctx, []*domain.TradeRecord{record})
}

func (r *TradeRepo) UpsertBatch(ctx context.Context, records []*domain.TradeRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now()
	normalized := make([]*domain.TradeRecord, 0, len(records))
	for _, rec := range records {
		n, err := normalize(rec, now)
		if err != nil {
			return err
		}
		normalized = append(normalized, n)
	}
	for _, n := range normalized {
		r.store.trades[n.Hash] = n
	}
	return nil
}

func (r *TradeRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.trades[strings.ToLower(hash)]
	return ok, nil
}

func (r *TradeRepo) GetByHash(ctx context.Context, hash string) (*domain.TradeRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if t, ok := r.store.trades[strings.ToLower(hash)]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *TradeRepo) GetLatest(ctx context.Context, n int) ([]*domain.TradeRecord, error) {
	return r.GetPage(ctx, storage.TradeFilter{}, storage.DefaultSort, n, 0)
}

func (r *TradeRepo) GetPage(
	ctx context.Context,
	filter storage.TradeFilter,
	s storage.Sort,
	limit, offset int,
) ([]*domain.TradeRecord, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	matched := r.filter(filter)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var c int
		switch s.Field {
		case storage.SortByCreationDate:
			c = a.CreationDate.Compare(b.CreationDate)
		case storage.SortByUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = cmp.Compare(a.BlockNumber, b.BlockNumber)
		}
		if c == 0 {
			c = strings.Compare(a.Hash, b.Hash)
		}
		if s.Descending {
			return c > 0
		}
		return c < 0
	})

	if offset >= len(matched) {
		return []*domain.TradeRecord{}, nil
	}
	matched = matched[offset:]
	if limit >= 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *TradeRepo) Count(ctx context.Context, filter storage.TradeFilter) (int, error) {
	return len(r.filter(filter)), nil
}

func (r *TradeRepo) CountOutside(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n := 0
	for _, t := range r.store.trades {
		if t.BlockNumber < fromBlock || t.BlockNumber > toBlock {
			n++
		}
	}
	return n, nil
}

func (r *TradeRepo) DeleteOutside(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for hash, t := range r.store.trades {
		if t.BlockNumber < fromBlock || t.BlockNumber > toBlock {
			delete(r.store.trades, hash)
			n++
		}
	}
	return n, nil
}

func (r *TradeRepo) BlockSpan(ctx context.Context) (uint64, uint64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var low, high uint64
	first := true
	for _, t := range r.store.trades {
		if first || t.BlockNumber < low {
			low = t.BlockNumber
		}
		if first || t.BlockNumber > high {
			high = t.BlockNumber
		}
		first = false
	}
	return low, high, nil
}

func (r *TradeRepo) filter(f storage.TradeFilter) []*domain.TradeRecord {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.TradeRecord
	for _, t := range r.store.trades {
		if f.SellToken != "" && t.SellToken != f.SellToken {
			continue
		}
		if f.BuyToken != "" && t.BuyToken != f.BuyToken {
			continue
		}
		if f.Receiver != "" && t.Receiver != f.Receiver {
			continue
		}
		if f.Owner != "" && t.Owner != f.Owner {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.FromBlock > 0 && t.BlockNumber < f.FromBlock {
			continue
		}
		if f.ToBlock > 0 && t.BlockNumber > f.ToBlock {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// -----------------------------------------------------------------------------
// Caches
// -----------------------------------------------------------------------------

type TokenCache struct {
	store *MemoryStorage
}

func NewTokenCache(store *MemoryStorage) *TokenCache {
	return &TokenCache{store: store}
}

func (c *TokenCache) Get(ctx context.Context, address, networkID string) (*domain.TokenMetadata, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	meta, ok := c.store.tokens[tokenKey{strings.ToLower(address), networkID}]
	if !ok || c.store.now().Sub(meta.CachedAt) >= c.store.ttl {
		return nil, nil
	}
	cp := *meta
	return &cp, nil
}

func (c *TokenCache) Put(ctx context.Context, meta *domain.TokenMetadata) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	cp := *meta
	cp.Address = strings.ToLower(cp.Address)
	cp.CachedAt = c.store.now()
	c.store.tokens[tokenKey{cp.Address, cp.NetworkID}] = &cp
	return nil
}

type BlockTimestampCache struct {
	store *MemoryStorage
}

func NewBlockTimestampCache(store *MemoryStorage) *BlockTimestampCache {
	return &BlockTimestampCache{store: store}
}

func (c *BlockTimestampCache) Get(ctx context.Context, block uint64, networkID string) (int64, bool, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	e, ok := c.store.timestamps[blockKey{block, networkID}]
	if !ok || c.store.now().Sub(e.cachedAt) >= c.store.ttl {
		return 0, false, nil
	}
	return e.ts, true, nil
}

func (c *BlockTimestampCache) Put(ctx context.Context, block uint64, networkID string, ts int64) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.timestamps[blockKey{block, networkID}] = cachedTimestamp{ts: ts, cachedAt: c.store.now()}
	return nil
}

// -----------------------------------------------------------------------------
// Range Queue
// -----------------------------------------------------------------------------

type RangeQueue struct {
	store *MemoryStorage
}

func NewRangeQueue(store *MemoryStorage) *RangeQueue {
	return &RangeQueue{store: store}
}

func (q *RangeQueue) Push(ctx context.Context, network string, r domain.BlockRange) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	for _, existing := range q.store.ranges[network] {
		if existing == r {
			return nil
		}
	}
	ranges := append(q.store.ranges[network], r)
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].From != ranges[j].From {
			return ranges[i].From < ranges[j].From
		}
		return ranges[i].To < ranges[j].To
	})
	q.store.ranges[network] = ranges
	return nil
}

func (q *RangeQueue) Pop(ctx context.Context, network string) (domain.BlockRange, error) {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	ranges := q.store.ranges[network]
	if len(ranges) == 0 {
		return domain.BlockRange{}, storage.ErrEmptyQueue
	}
	q.store.ranges[network] = ranges[1:]
	return ranges[0], nil
}

func (q *RangeQueue) List(ctx context.Context, network string) ([]domain.BlockRange, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()
	return append([]domain.BlockRange(nil), q.store.ranges[network]...), nil
}

// -----------------------------------------------------------------------------
// Run Repository
// -----------------------------------------------------------------------------

type RunRepo struct {
	store *MemoryStorage
}

func NewRunRepo(store *MemoryStorage) *RunRepo {
	return &RunRepo{store: store}
}

func (r *RunRepo) Start(ctx context.Context, run *domain.SyncRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *run
	r.store.runs = append(r.store.runs, &cp)
	return nil
}

func (r *RunRepo) Finish(ctx context.Context, run *domain.SyncRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, existing := range r.store.runs {
		if existing.ID == run.ID {
			cp := *run
			if cp.FinishedAt == nil {
				now := r.store.now()
				cp.FinishedAt = &now
			}
			r.store.runs[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("sync run %s not found", run.ID)
}

func (r *RunRepo) Recent(ctx context.Context, network string, n int) ([]*domain.SyncRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.SyncRun
	for i := len(r.store.runs) - 1; i >= 0 && len(out) < n; i-- {
		if r.store.runs[i].Network == network {
			cp := *r.store.runs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	_ storage.TradeRepository     = (*TradeRepo)(nil)
	_ storage.TokenCache          = (*TokenCache)(nil)
	_ storage.BlockTimestampCache = (*BlockTimestampCache)(nil)
	_ storage.RangeQueue          = (*RangeQueue)(nil)
	_ storage.RunRepository       = (*RunRepo)(nil)
)
