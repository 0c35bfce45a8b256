package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/recovery"
	"github.com/vietddude/tradesync/internal/infra/orderbook"
)

type mockSource struct {
	orders map[string][]orderbook.Order
	err    error
	// failures is the number of calls that return err before succeeding
	failures int
	calls    int
}

func (m *mockSource) OrdersForTransaction(ctx context.Context, hash string) ([]orderbook.Order, error) {
	m.calls++
	if m.err != nil && (m.failures == 0 || m.calls <= m.failures) {
		return nil, m.err
	}
	return m.orders[hash], nil
}

func TestGroupByTransaction(t *testing.T) {
	events := []domain.RawEvent{
		{TxHash: "0xAA", BlockNumber: 10, LogIndex: 0},
		{TxHash: "0xbb", BlockNumber: 11, LogIndex: 0},
		{TxHash: "0xaa", BlockNumber: 10, LogIndex: 1},
	}

	txs := GroupByTransaction(events)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Hash != "0xaa" || len(txs[0].Events) != 2 || txs[0].BlockNumber != 10 {
		t.Errorf("txs[0] = %+v", txs[0])
	}
	if txs[1].Hash != "0xbb" || len(txs[1].Events) != 1 {
		t.Errorf("txs[1] = %+v", txs[1])
	}
}

func TestResolve(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	src := &mockSource{orders: map[string][]orderbook.Order{
		"0xaa": {
			{UID: "0x1", Owner: "0xOWNER", CreationDate: created, SellToken: "0xSELL", BuyToken: "0xBUY", Kind: domain.OrderKindSell, SellAmount: "100", BuyAmount: "200"},
			{UID: "0x2", Owner: "0xowner", Receiver: "0xother", CreationDate: created, SellToken: "0xsell", BuyToken: "0xbuy", Kind: domain.OrderKindBuy, SellAmount: "5", BuyAmount: "6"},
		},
	}}

	records, err := New(src).Resolve(context.Background(), Transaction{Hash: "0xaa", BlockNumber: 77})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	r := records[0]
	if r.Hash != "0xaa" || r.BlockNumber != 77 || r.OrderUID != "0x1" {
		t.Errorf("record = %+v", r)
	}
	if r.Receiver != "0xowner" {
		t.Errorf("empty receiver should default to owner, got %q", r.Receiver)
	}
	if r.SellToken != "0xsell" || !r.CreationDate.Equal(created) {
		t.Errorf("record = %+v", r)
	}
	if r.ExecutedBuyAmount != "0" {
		t.Errorf("missing amount = %q, want 0", r.ExecutedBuyAmount)
	}
	if records[1].Kind != domain.OrderKindBuy || records[1].Receiver != "0xother" {
		t.Errorf("record = %+v", records[1])
	}
}

func TestResolve_UnknownTransaction(t *testing.T) {
	records, err := New(&mockSource{}).Resolve(context.Background(), Transaction{Hash: "0xcc"})
	if err != nil || len(records) != 0 {
		t.Errorf("Resolve = %v, %v; want empty", records, err)
	}
}

func TestResolve_Errors(t *testing.T) {
	apiErr := &orderbook.APIError{StatusCode: 500, Body: "boom"}
	_, err := New(&mockSource{err: apiErr}).Resolve(context.Background(), Transaction{Hash: "0xaa"})
	var got *orderbook.APIError
	if !errors.As(err, &got) {
		t.Errorf("expected APIError, got %v", err)
	}

	bad := &mockSource{orders: map[string][]orderbook.Order{
		"0xaa": {{UID: "0x1", Kind: "limit"}},
	}}
	if _, err := New(bad).Resolve(context.Background(), Transaction{Hash: "0xaa"}); err == nil {
		t.Error("expected error for unknown order kind")
	}
}

func TestResolve_RetriesTransientErrors(t *testing.T) {
	classify := func(err error) recovery.FailureCategory {
		if orderbook.IsTransient(err) {
			return recovery.CategoryTransient
		}
		return recovery.CategoryPermanent
	}
	noSleep := func(ctx context.Context, d time.Duration) error { return nil }

	src := &mockSource{
		orders:   map[string][]orderbook.Order{"0xaa": {{UID: "0x1", Kind: domain.OrderKindBuy}}},
		err:      &orderbook.APIError{StatusCode: 429},
		failures: 2,
	}
	r := New(src).WithRetry(recovery.DefaultBackoff(classify))
	r.sleep = noSleep

	records, err := r.Resolve(context.Background(), Transaction{Hash: "0xaa"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(records) != 1 || src.calls != 3 {
		t.Errorf("records = %d, calls = %d", len(records), src.calls)
	}

	permanent := &mockSource{err: &orderbook.APIError{StatusCode: 400}}
	r = New(permanent).WithRetry(recovery.DefaultBackoff(classify))
	r.sleep = noSleep
	if _, err := r.Resolve(context.Background(), Transaction{Hash: "0xaa"}); err == nil {
		t.Fatal("expected error")
	}
	if permanent.calls != 1 {
		t.Errorf("permanent error retried: %d calls", permanent.calls)
	}
}
