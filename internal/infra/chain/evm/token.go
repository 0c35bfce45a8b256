package evm

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vietddude/tradesync/internal/core/domain"
)

const erc20ABIJSON = `[
	{"type": "function", "name": "symbol",   "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "string"}]},
	{"type": "function", "name": "decimals", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint8"}]}
]`

// Some early tokens (MKR, SAI) return symbol as bytes32.
const erc20Bytes32ABIJSON = `[
	{"type": "function", "name": "symbol", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "bytes32"}]}
]`

var (
	erc20ABI        = mustParseABI(erc20ABIJSON)
	erc20Bytes32ABI = mustParseABI(erc20Bytes32ABIJSON)
)

// TokenFetcher reads ERC-20 metadata from the chain.
type TokenFetcher struct {
	eth     *ethclient.Client
	network string
}

// NewTokenFetcher creates a fetcher sharing the reader's client.
func NewTokenFetcher(eth *ethclient.Client, network string) *TokenFetcher {
	return &TokenFetcher{eth: eth, network: network}
}

// FetchToken calls symbol() and decimals() on the token contract.
func (f *TokenFetcher) FetchToken(ctx context.Context, address string) (*domain.TokenMetadata, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid token address %q", address)
	}
	token := common.HexToAddress(address)

	symbolOut, err := f.callView(ctx, token, "symbol")
	if err != nil {
		return nil, err
	}
	symbol, err := decodeSymbol(symbolOut)
	if err != nil {
		return nil, fmt.Errorf("failed to decode symbol of %s: %w", address, err)
	}

	decimalsOut, err := f.callView(ctx, token, "decimals")
	if err != nil {
		return nil, err
	}
	values, err := erc20ABI.Unpack("decimals", decimalsOut)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("failed to decode decimals of %s: %w", address, err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected decimals type %T", values[0])
	}

	return &domain.TokenMetadata{
		Address:   strings.ToLower(token.Hex()),
		NetworkID: f.network,
		Symbol:    symbol,
		Decimals:  decimals,
	}, nil
}

func (f *TokenFetcher) callView(ctx context.Context, token common.Address, method string) ([]byte, error) {
	data, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := f.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, toProviderError("eth_call", err)
	}
	return out, nil
}

func decodeSymbol(out []byte) (string, error) {
	if values, err := erc20ABI.Unpack("symbol", out); err == nil && len(values) == 1 {
		if s, ok := values[0].(string); ok {
			return s, nil
		}
	}

	values, err := erc20Bytes32ABI.Unpack("symbol", out)
	if err != nil {
		return "", err
	}
	raw, ok := values[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", values[0])
	}
	return string(bytes.TrimRight(raw[:], "\x00")), nil
}
