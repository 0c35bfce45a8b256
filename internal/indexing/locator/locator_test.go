package locator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// linearChain has one block every blockTime seconds starting at genesis.
type linearChain struct {
	genesis   int64
	blockTime int64
	head      uint64
	failAt    map[uint64]bool
	probes    int
}

func (c *linearChain) BlockTimestamp(ctx context.Context, n uint64) (int64, error) {
	c.probes++
	if c.failAt[n] {
		return 0, errors.New("header not found")
	}
	return c.genesis + int64(n)*c.blockTime, nil
}

func (c *linearChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.head, nil
}

// boundary is the last block with timestamp <= target.
func (c *linearChain) boundary(target int64) uint64 {
	if target < c.genesis {
		return 0
	}
	return uint64((target - c.genesis) / c.blockTime)
}

func TestLocate_Convergence(t *testing.T) {
	tests := []struct {
		name      string
		high      uint64
		blockTime int64
		targetN   uint64
	}{
		{"mainnet scale", 20_000_000, 12, 19_123_457},
		{"gnosis scale", 35_000_000, 5, 1_000_003},
		{"near head", 1_000_000, 2, 999_999},
		{"near genesis", 1_000_000, 2, 3},
		{"small range", 100, 12, 57},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &linearChain{genesis: 1_600_000_000, blockTime: tt.blockTime, head: tt.high}
			target := c.genesis + int64(tt.targetN)*c.blockTime + tt.blockTime/2

			res, err := New(c).Locate(context.Background(), 0, tt.high, target)
			if err != nil {
				t.Fatalf("Locate failed: %v", err)
			}
			if res.Approximate {
				t.Error("unexpected approximate result")
			}

			want := c.boundary(target)
			diff := int64(res.Block) - int64(want)
			if diff < -10 || diff > 10 {
				t.Errorf("Locate = %d, boundary %d (distance %d)", res.Block, want, diff)
			}

			bound := int(math.Ceil(math.Log2(float64(tt.high))))
			if res.Probes > bound || c.probes != res.Probes {
				t.Errorf("probes = %d (counted %d), bound %d", res.Probes, c.probes, bound)
			}
		})
	}
}

func TestLocate_ToleranceStopsImmediately(t *testing.T) {
	c := &linearChain{genesis: 0, blockTime: 1}
	res, err := New(c).Locate(context.Background(), 500, 510, 505)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if res.Block != 500 || res.Probes != 0 {
		t.Errorf("Locate = %+v, want block 500 with no probes", res)
	}
}

func TestLocate_FailSoft(t *testing.T) {
	c := &linearChain{genesis: 0, blockTime: 1, failAt: map[uint64]bool{500: true}}

	res, err := New(c).Locate(context.Background(), 0, 1000, 100)
	if err != nil {
		t.Fatalf("Locate should not fail: %v", err)
	}
	if !res.Approximate || res.Block != 500 || res.Probes != 1 {
		t.Errorf("Locate = %+v, want approximate midpoint 500", res)
	}
}

func TestLocate_Cancelled(t *testing.T) {
	c := &cancellingReader{}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if _, err := New(c).Locate(ctx, 0, 1000, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type cancellingReader struct {
	cancel context.CancelFunc
}

func (r *cancellingReader) BlockTimestamp(ctx context.Context, n uint64) (int64, error) {
	r.cancel()
	return 0, ctx.Err()
}

func TestLocate_InvalidRange(t *testing.T) {
	if _, err := New(&linearChain{}).Locate(context.Background(), 10, 5, 0); err == nil {
		t.Error("expected error for low > high")
	}
}

func TestCutoffBlock(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	c := &linearChain{
		genesis:   now.AddDate(-2, 0, 0).Unix(),
		blockTime: 12,
		head:      uint64(now.Sub(now.AddDate(-2, 0, 0)).Seconds() / 12),
	}

	head, res, err := CutoffBlock(context.Background(), c, 4, now)
	if err != nil {
		t.Fatalf("CutoffBlock failed: %v", err)
	}
	if head != c.head {
		t.Errorf("head = %d, want %d", head, c.head)
	}

	want := c.boundary(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC).Unix())
	diff := int64(res.Block) - int64(want)
	if diff < -10 || diff > 10 {
		t.Errorf("cutoff = %d, want within 10 of %d", res.Block, want)
	}
}
