// Package resolver turns settlement transactions into trade records using
// the order API.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/recovery"
	"github.com/vietddude/tradesync/internal/infra/orderbook"
)

// OrderSource returns the orders settled by a transaction.
type OrderSource interface {
	OrdersForTransaction(ctx context.Context, txHash string) ([]orderbook.Order, error)
}

// Transaction is a settlement transaction and its Trade events.
type Transaction struct {
	Hash        string
	BlockNumber uint64
	Events      []domain.RawEvent
}

// GroupByTransaction groups events by transaction hash in order of first
// appearance.
func GroupByTransaction(events []domain.RawEvent) []Transaction {
	index := make(map[string]int, len(events))
	var txs []Transaction

	for _, ev := range events {
		hash := strings.ToLower(ev.TxHash)
		i, ok := index[hash]
		if !ok {
			i = len(txs)
			index[hash] = i
			txs = append(txs, Transaction{Hash: hash, BlockNumber: ev.BlockNumber})
		}
		txs[i].Events = append(txs[i].Events, ev)
	}
	return txs
}

// Resolver maps a transaction's orders to trade records.
type Resolver struct {
	source OrderSource
	retry  recovery.RetryStrategy
	sleep  recovery.SleepFunc
}

// New creates a Resolver that calls the source once per transaction.
func New(source OrderSource) *Resolver {
	return &Resolver{source: source, sleep: recovery.Sleep}
}

// WithRetry returns a copy of r that retries order lookups under strategy.
func (r *Resolver) WithRetry(strategy recovery.RetryStrategy) *Resolver {
	cp := *r
	cp.retry = strategy
	return &cp
}

// Resolve returns one record per order in the transaction, in API order.
// A transaction the API does not know yields no records and no error.
func (r *Resolver) Resolve(ctx context.Context, tx Transaction) ([]*domain.TradeRecord, error) {
	var orders []orderbook.Order
	err := recovery.Do(ctx, r.retry, r.sleep, func(ctx context.Context) error {
		var err error
		orders, err = r.source.OrdersForTransaction(ctx, tx.Hash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", tx.Hash, err)
	}

	records := make([]*domain.TradeRecord, 0, len(orders))
	for _, o := range orders {
		rec, err := toRecord(tx, o)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", tx.Hash, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRecord(tx Transaction, o orderbook.Order) (*domain.TradeRecord, error) {
	if !o.Kind.Valid() {
		return nil, fmt.Errorf("order %s has unknown kind %q", o.UID, o.Kind)
	}

	receiver := o.Receiver
	if receiver == "" {
		receiver = o.Owner
	}

	return &domain.TradeRecord{
		Hash:                         tx.Hash,
		BlockNumber:                  tx.BlockNumber,
		CreationDate:                 o.CreationDate,
		Owner:                        strings.ToLower(o.Owner),
		OrderUID:                     o.UID,
		SellToken:                    strings.ToLower(o.SellToken),
		BuyToken:                     strings.ToLower(o.BuyToken),
		Receiver:                     strings.ToLower(receiver),
		Kind:                         o.Kind,
		SellAmount:                   amountOrZero(o.SellAmount),
		BuyAmount:                    amountOrZero(o.BuyAmount),
		ExecutedSellAmount:           amountOrZero(o.ExecutedSellAmount),
		ExecutedBuyAmount:            amountOrZero(o.ExecutedBuyAmount),
		ExecutedSellAmountBeforeFees: amountOrZero(o.ExecutedSellAmountBeforeFees),
	}, nil
}

func amountOrZero(a orderbook.Amount) string {
	if a == "" {
		return "0"
	}
	return a.String()
}
