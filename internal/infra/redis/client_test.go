package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestLock_AcquireRefreshRelease(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	ok, err := c.AcquireLock(ctx, "mainnet", "a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("AcquireLock = %v, %v", ok, err)
	}
	if ok, _ := c.AcquireLock(ctx, "mainnet", "b", time.Minute); ok {
		t.Fatal("second owner acquired a held lock")
	}

	mr.FastForward(30 * time.Second)
	if err := c.RefreshLock(ctx, "mainnet", "a", time.Minute); err != nil {
		t.Fatalf("RefreshLock failed: %v", err)
	}
	if ttl := mr.TTL(lockKey("mainnet")); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	if err := c.ReleaseLock(ctx, "mainnet", "a"); err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if mr.Exists(lockKey("mainnet")) {
		t.Error("lock still held after release")
	}
}

func TestLock_RefreshAfterTakeover(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	if ok, _ := c.AcquireLock(ctx, "mainnet", "a", time.Minute); !ok {
		t.Fatal("AcquireLock failed")
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := c.AcquireLock(ctx, "mainnet", "b", 10*time.Second); !ok {
		t.Fatal("lock did not expire")
	}

	if err := c.RefreshLock(ctx, "mainnet", "a", time.Minute); !errors.Is(err, ErrLockLost) {
		t.Errorf("RefreshLock error = %v, want ErrLockLost", err)
	}
	if ttl := mr.TTL(lockKey("mainnet")); ttl != 10*time.Second {
		t.Errorf("other owner's TTL = %v, want 10s", ttl)
	}

	if err := c.ReleaseLock(ctx, "mainnet", "a"); err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if got, _ := mr.Get(lockKey("mainnet")); got != "b" {
		t.Errorf("lock owner = %q, want b", got)
	}
}
