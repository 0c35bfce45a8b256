package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

func TestTradeRepo_Sorting(t *testing.T) {
	ctx := context.Background()
	repo := NewTradeRepo(NewMemoryStorage())

	for _, tr := range []*domain.TradeRecord{
		{Hash: "0xB", BlockNumber: 2, Kind: domain.OrderKindSell},
		{Hash: "0xa", BlockNumber: 2, Kind: domain.OrderKindSell},
		{Hash: "0xc", BlockNumber: 1, Kind: domain.OrderKindBuy},
	} {
		if err := repo.Upsert(ctx, tr); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	latest, _ := repo.GetLatest(ctx, 10)
	want := []string{"0xb", "0xa", "0xc"}
	for i, tr := range latest {
		if tr.Hash != want[i] {
			t.Fatalf("GetLatest[%d] = %s, want %s", i, tr.Hash, want[i])
		}
	}

	asc, _ := repo.GetPage(ctx, storage.TradeFilter{}, storage.Sort{Field: storage.SortByBlockNumber}, 2, 0)
	if len(asc) != 2 || asc[0].Hash != "0xc" || asc[1].Hash != "0xa" {
		t.Errorf("ascending page wrong: %+v", asc)
	}

	// Amounts default to zero
	got, _ := repo.GetByHash(ctx, "0xC")
	if got == nil || got.SellAmount != "0" {
		t.Errorf("GetByHash = %+v", got)
	}
}

func TestCaches_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	store := NewMemoryStorage()
	store.SetClock(func() time.Time { return now })

	ts := NewBlockTimestampCache(store)
	_ = ts.Put(ctx, 7, "mainnet", 42)
	if v, ok, _ := ts.Get(ctx, 7, "mainnet"); !ok || v != 42 {
		t.Fatalf("Get = %d, %v", v, ok)
	}

	now = now.Add(25 * time.Hour)
	if _, ok, _ := ts.Get(ctx, 7, "mainnet"); ok {
		t.Error("expected expired timestamp to miss")
	}
}

func TestRangeQueue(t *testing.T) {
	ctx := context.Background()
	q := NewRangeQueue(NewMemoryStorage())

	_ = q.Push(ctx, "base", domain.BlockRange{From: 50, To: 60})
	_ = q.Push(ctx, "base", domain.BlockRange{From: 10, To: 20})
	_ = q.Push(ctx, "base", domain.BlockRange{From: 10, To: 20})

	r, err := q.Pop(ctx, "base")
	if err != nil || r.From != 10 {
		t.Fatalf("Pop = %v, %v", r, err)
	}
	_, _ = q.Pop(ctx, "base")
	if _, err := q.Pop(ctx, "base"); !errors.Is(err, storage.ErrEmptyQueue) {
		t.Errorf("Pop on empty = %v", err)
	}
}
