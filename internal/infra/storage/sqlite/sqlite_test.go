package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func openTestDB(t *testing.T) (*DB, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	db, err := Open(context.Background(), Path(t.TempDir(), "mainnet"), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, clock
}

func sampleTrade(hash string, block uint64) *domain.TradeRecord {
	return &domain.TradeRecord{
		Hash:                         hash,
		BlockNumber:                  block,
		CreationDate:                 time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC),
		Owner:                        "0xowner",
		OrderUID:                     "0xuid-" + hash,
		SellToken:                    "0xsell",
		BuyToken:                     "0xbuy",
		Receiver:                     "0xreceiver",
		Kind:                         domain.OrderKindSell,
		SellAmount:                   "1000",
		BuyAmount:                    "2000",
		ExecutedSellAmount:           "1000",
		ExecutedBuyAmount:            "2100",
		ExecutedSellAmountBeforeFees: "990",
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := Path(t.TempDir(), "base")

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := NewTradeRepo(db).Upsert(ctx, sampleTrade("0xaa", 10)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	_ = db.Close()

	// Migrations are idempotent and committed data survives
	db, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	exists, err := NewTradeRepo(db).ExistsByHash(ctx, "0xAA")
	if err != nil {
		t.Fatalf("ExistsByHash failed: %v", err)
	}
	if !exists {
		t.Error("expected trade to survive reopen")
	}
}

func TestTradeRepo_DecimalFidelity(t *testing.T) {
	db, _ := openTestDB(t)
	repo := NewTradeRepo(db)
	ctx := context.Background()

	trade := sampleTrade("0x01", 100)
	trade.SellAmount = "123456789012345678901234"
	trade.BuyAmount = "1.2345e+23"

	if err := repo.Upsert(ctx, trade); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := repo.GetByHash(ctx, "0x01")
	if err != nil || got == nil {
		t.Fatalf("GetByHash = %v, %v", got, err)
	}
	if got.SellAmount != "123456789012345678901234" {
		t.Errorf("SellAmount = %q", got.SellAmount)
	}
	if got.BuyAmount != "123450000000000000000000" {
		t.Errorf("BuyAmount = %q, want expanded integer", got.BuyAmount)
	}

	// The column must hold text, never a numeric affinity value
	var typ string
	if err := db.GetContext(ctx, &typ, `SELECT typeof(sell_amount) FROM transactions WHERE hash = '0x01'`); err != nil {
		t.Fatalf("typeof query failed: %v", err)
	}
	if typ != "text" {
		t.Errorf("sell_amount stored as %s, want text", typ)
	}
}

func TestTradeRepo_RejectsFractionalAmount(t *testing.T) {
	db, _ := openTestDB(t)
	trade := sampleTrade("0x02", 1)
	trade.ExecutedBuyAmount = "10.5"

	err := NewTradeRepo(db).Upsert(context.Background(), trade)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Upsert error = %v, want ErrInvalidAmount", err)
	}
}

func TestTradeRepo_SameHashOverwrites(t *testing.T) {
	db, clock := openTestDB(t)
	repo := NewTradeRepo(db)
	ctx := context.Background()

	first := sampleTrade("0xabc", 500)
	first.OrderUID = "0xorder-1"
	first.Kind = domain.OrderKindSell
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	clock.now = clock.now.Add(time.Minute)
	second := sampleTrade("0xabc", 500)
	second.OrderUID = "0xorder-2"
	second.Kind = domain.OrderKindBuy
	second.BuyAmount = "777"
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	n, err := repo.Count(ctx, storage.TradeFilter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}

	got, _ := repo.GetByHash(ctx, "0xabc")
	if got.OrderUID != "0xorder-2" || got.Kind != domain.OrderKindBuy || got.BuyAmount != "777" {
		t.Errorf("stored record = %+v, want last applied order", got)
	}
	if !got.UpdatedAt.Equal(clock.now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, clock.now)
	}
}

func TestTradeRepo_UpsertBatchAndQueries(t *testing.T) {
	db, _ := openTestDB(t)
	repo := NewTradeRepo(db)
	ctx := context.Background()

	batch := []*domain.TradeRecord{
		sampleTrade("0x10", 10),
		sampleTrade("0x20", 20),
		sampleTrade("0x30", 30),
	}
	batch[1].Kind = domain.OrderKindBuy
	batch[2].SellToken = "0xother"

	if err := repo.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}
	// Re-applying the batch is idempotent
	if err := repo.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	total, _ := repo.Count(ctx, storage.TradeFilter{})
	if total != 3 {
		t.Errorf("Count = %d, want 3", total)
	}

	latest, err := repo.GetLatest(ctx, 2)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if len(latest) != 2 || latest[0].Hash != "0x30" || latest[1].Hash != "0x20" {
		t.Errorf("GetLatest = %v", hashes(latest))
	}

	buys, _ := repo.Count(ctx, storage.TradeFilter{Kind: domain.OrderKindBuy})
	if buys != 1 {
		t.Errorf("buy count = %d, want 1", buys)
	}

	page, err := repo.GetPage(ctx,
		storage.TradeFilter{SellToken: "0xsell", FromBlock: 10, ToBlock: 25},
		storage.Sort{Field: storage.SortByBlockNumber},
		10, 0)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if len(page) != 2 || page[0].Hash != "0x10" || page[1].Hash != "0x20" {
		t.Errorf("GetPage = %v", hashes(page))
	}

	page, _ = repo.GetPage(ctx, storage.TradeFilter{}, storage.DefaultSort, 1, 1)
	if len(page) != 1 || page[0].Hash != "0x20" {
		t.Errorf("GetPage offset = %v", hashes(page))
	}

	if _, err := repo.GetPage(ctx, storage.TradeFilter{}, storage.Sort{Field: "hash; DROP TABLE"}, 1, 0); !errors.Is(err, storage.ErrInvalidSort) {
		t.Errorf("GetPage error = %v, want ErrInvalidSort", err)
	}

	low, high, err := repo.BlockSpan(ctx)
	if err != nil || low != 10 || high != 30 {
		t.Errorf("BlockSpan = %d, %d, %v", low, high, err)
	}
}

func TestTradeRepo_DeleteOutside(t *testing.T) {
	db, _ := openTestDB(t)
	repo := NewTradeRepo(db)
	ctx := context.Background()

	for i, block := range []uint64{5, 50, 500, 5000} {
		if err := repo.Upsert(ctx, sampleTrade(string(rune('a'+i)), block)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	outside, err := repo.CountOutside(ctx, 50, 500)
	if err != nil || outside != 2 {
		t.Fatalf("CountOutside = %d, %v; want 2", outside, err)
	}

	deleted, err := repo.DeleteOutside(ctx, 50, 500)
	if err != nil || deleted != 2 {
		t.Fatalf("DeleteOutside = %d, %v; want 2", deleted, err)
	}

	remaining, _ := repo.Count(ctx, storage.TradeFilter{})
	if remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}
}

func TestBlockTimestampRepo_TTL(t *testing.T) {
	db, clock := openTestDB(t)
	cache := NewBlockTimestampRepo(db, 24*time.Hour)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, 100, "mainnet"); ok || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	if err := cache.Put(ctx, 100, "mainnet", 1700000000); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ts, ok, err := cache.Get(ctx, 100, "mainnet")
	if err != nil || !ok || ts != 1700000000 {
		t.Fatalf("Get = %d, %v, %v", ts, ok, err)
	}

	// Network is part of the key
	if _, ok, _ := cache.Get(ctx, 100, "xdai"); ok {
		t.Error("expected miss for other network")
	}

	// An entry inserted 25 hours ago is a miss
	clock.now = clock.now.Add(25 * time.Hour)
	if _, ok, _ := cache.Get(ctx, 100, "mainnet"); ok {
		t.Error("expected expired entry to miss")
	}

	// Overwrite refreshes the entry
	if err := cache.Put(ctx, 100, "mainnet", 1700000012); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	ts, ok, _ = cache.Get(ctx, 100, "mainnet")
	if !ok || ts != 1700000012 {
		t.Errorf("Get after refresh = %d, %v", ts, ok)
	}
}

func TestTokenCacheRepo_TTL(t *testing.T) {
	db, clock := openTestDB(t)
	cache := NewTokenCacheRepo(db, 0)
	ctx := context.Background()

	meta := &domain.TokenMetadata{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", NetworkID: "mainnet", Symbol: "WETH", Decimals: 18}
	if err := cache.Put(ctx, meta); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", "mainnet")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Symbol != "WETH" || got.Decimals != 18 {
		t.Errorf("Get = %+v", got)
	}

	clock.now = clock.now.Add(24 * time.Hour)
	if got, _ := cache.Get(ctx, meta.Address, "mainnet"); got != nil {
		t.Error("expected entry to expire at TTL")
	}
}

func TestRangeRepo(t *testing.T) {
	db, _ := openTestDB(t)
	queue := NewRangeRepo(db)
	ctx := context.Background()

	if _, err := queue.Pop(ctx, "mainnet"); !errors.Is(err, storage.ErrEmptyQueue) {
		t.Fatalf("Pop on empty = %v, want ErrEmptyQueue", err)
	}

	for _, r := range []domain.BlockRange{{From: 300, To: 399}, {From: 100, To: 199}, {From: 100, To: 199}} {
		if err := queue.Push(ctx, "mainnet", r); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	list, _ := queue.List(ctx, "mainnet")
	if len(list) != 2 {
		t.Fatalf("List = %v, want 2 ranges", list)
	}

	r, err := queue.Pop(ctx, "mainnet")
	if err != nil || r != (domain.BlockRange{From: 100, To: 199}) {
		t.Errorf("Pop = %v, %v", r, err)
	}
	list, _ = queue.List(ctx, "mainnet")
	if len(list) != 1 {
		t.Errorf("List after pop = %v", list)
	}
}

func TestRunRepo(t *testing.T) {
	db, clock := openTestDB(t)
	runs := NewRunRepo(db)
	ctx := context.Background()

	run := &domain.SyncRun{
		ID:          "run-1",
		Network:     "mainnet",
		StartedAt:   clock.now,
		StartBlock:  1000,
		TargetBlock: 900,
		Status:      domain.SyncRunRunning,
	}
	if err := runs.Start(ctx, run); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run.Saved, run.Duplicates, run.Errors = 5, 2, 1
	run.Status = domain.SyncRunCompleted
	if err := runs.Finish(ctx, run); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	recent, err := runs.Recent(ctx, "mainnet", 5)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Recent = %v, %v", recent, err)
	}
	got := recent[0]
	if got.Status != domain.SyncRunCompleted || got.Saved != 5 || got.FinishedAt == nil {
		t.Errorf("Recent[0] = %+v", got)
	}
}

func hashes(trades []*domain.TradeRecord) []string {
	out := make([]string, len(trades))
	for i, t := range trades {
		out[i] = t.Hash
	}
	return out
}
