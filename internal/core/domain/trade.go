package domain

import "time"

// OrderKind is the side the order limit was placed on.
type OrderKind string

const (
	OrderKindSell OrderKind = "sell"
	OrderKindBuy  OrderKind = "buy"
)

// Valid reports whether k is a known order kind.
func (k OrderKind) Valid() bool {
	return k == OrderKindSell || k == OrderKindBuy
}

// TradeRecord is one resolved settlement trade. Storage is keyed by Hash
// alone, so a transaction settling several orders keeps the last one applied.
type TradeRecord struct {
	Hash         string    `json:"hash"`
	BlockNumber  uint64    `json:"block_number"`
	CreationDate time.Time `json:"creation_date"`
	Owner        string    `json:"owner"`
	OrderUID     string    `json:"order_uid"`
	SellToken    string    `json:"sell_token"`
	BuyToken     string    `json:"buy_token"`
	Receiver     string    `json:"receiver"`
	Kind         OrderKind `json:"kind"`

	// Amounts are base-10 integer strings.
	SellAmount                   string `json:"sell_amount"`
	BuyAmount                    string `json:"buy_amount"`
	ExecutedSellAmount           string `json:"executed_sell_amount"`
	ExecutedBuyAmount            string `json:"executed_buy_amount"`
	ExecutedSellAmountBeforeFees string `json:"executed_sell_amount_before_fees"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RawEvent is a settlement Trade log as returned by the chain reader.
type RawEvent struct {
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
	Owner       string
	OrderUID    string
}

// TokenMetadata describes an ERC-20 token on a given network.
type TokenMetadata struct {
	Address   string
	NetworkID string
	Symbol    string
	Decimals  uint8
	CachedAt  time.Time
}
