package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vietddude/tradesync/internal/core/domain"
)

const settlementABIJSON = `[{
	"anonymous": false,
	"type": "event",
	"name": "Trade",
	"inputs": [
		{"indexed": true,  "name": "owner",      "type": "address"},
		{"indexed": false, "name": "sellToken",  "type": "address"},
		{"indexed": false, "name": "buyToken",   "type": "address"},
		{"indexed": false, "name": "sellAmount", "type": "uint256"},
		{"indexed": false, "name": "buyAmount",  "type": "uint256"},
		{"indexed": false, "name": "feeAmount",  "type": "uint256"},
		{"indexed": false, "name": "orderUid",   "type": "bytes"}
	]
}]`

var (
	settlementABI = mustParseABI(settlementABIJSON)

	// TradeTopic is the topic0 of the settlement Trade event.
	TradeTopic = settlementABI.Events["Trade"].ID
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid abi: %v", err))
	}
	return parsed
}

type tradeEvent struct {
	SellToken  common.Address
	BuyToken   common.Address
	SellAmount *big.Int
	BuyAmount  *big.Int
	FeeAmount  *big.Int
	OrderUid   []byte
}

// DecodeTradeLog converts a settlement Trade log into a RawEvent. When the
// log cannot be decoded the returned event still carries the transaction
// hash, block and log index, so the transaction can be resolved anyway.
func DecodeTradeLog(lg types.Log) (domain.RawEvent, error) {
	ev := domain.RawEvent{
		TxHash:      strings.ToLower(lg.TxHash.Hex()),
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
	}
	if len(lg.Topics) < 2 || lg.Topics[0] != TradeTopic {
		return ev, fmt.Errorf("log %s:%d is not a Trade event", lg.TxHash.Hex(), lg.Index)
	}
	ev.Owner = strings.ToLower(common.BytesToAddress(lg.Topics[1].Bytes()).Hex())

	var trade tradeEvent
	if err := settlementABI.UnpackIntoInterface(&trade, "Trade", lg.Data); err != nil {
		return ev, fmt.Errorf("failed to decode Trade event: %w", err)
	}
	ev.OrderUID = hexutil.Encode(trade.OrderUid)
	return ev, nil
}
