package chain

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage/memory"
)

type countingReader struct {
	calls int
	ts    int64
}

func (r *countingReader) LatestBlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (r *countingReader) BlockTimestamp(ctx context.Context, block uint64) (int64, error) {
	r.calls++
	return r.ts, nil
}

func (r *countingReader) EventsInRange(ctx context.Context, from, to uint64) ([]domain.RawEvent, error) {
	return nil, nil
}

func TestCachedReader_ReadThrough(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	store := memory.NewMemoryStorage()
	store.SetClock(func() time.Time { return now })

	inner := &countingReader{ts: 1600000000}
	r := NewCachedReader(inner, memory.NewBlockTimestampCache(store), "mainnet")

	for i := 0; i < 3; i++ {
		ts, err := r.BlockTimestamp(ctx, 42)
		if err != nil || ts != 1600000000 {
			t.Fatalf("BlockTimestamp = %d, %v", ts, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}

	// Entry inserted 25 hours ago is a miss and gets refreshed
	now = now.Add(25 * time.Hour)
	inner.ts = 1600000001
	ts, _ := r.BlockTimestamp(ctx, 42)
	if inner.calls != 2 || ts != 1600000001 {
		t.Errorf("after expiry: calls = %d, ts = %d", inner.calls, ts)
	}
	ts, _ = r.BlockTimestamp(ctx, 42)
	if inner.calls != 2 || ts != 1600000001 {
		t.Errorf("after refresh: calls = %d, ts = %d", inner.calls, ts)
	}
}
