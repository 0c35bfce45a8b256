// Package tokens resolves ERC-20 metadata through the token_metadata cache.
package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// Fetcher reads token metadata from the chain.
type Fetcher interface {
	FetchToken(ctx context.Context, address string) (*domain.TokenMetadata, error)
}

// Service is a read-through cache over a Fetcher for one network.
type Service struct {
	cache   storage.TokenCache
	fetcher Fetcher
	network string
	log     *slog.Logger
}

// NewService creates a Service.
func NewService(cache storage.TokenCache, fetcher Fetcher, network string) *Service {
	return &Service{
		cache:   cache,
		fetcher: fetcher,
		network: network,
		log:     slog.Default().With("component", "tokens", "network", network),
	}
}

// Lookup returns cached metadata, fetching and caching it on a miss.
func (s *Service) Lookup(ctx context.Context, address string) (*domain.TokenMetadata, error) {
	address = strings.ToLower(address)

	meta, err := s.cache.Get(ctx, address, s.network)
	if err != nil {
		s.log.Warn("token cache read failed", "token", address, "error", err)
	} else if meta != nil {
		return meta, nil
	}

	meta, err = s.fetcher.FetchToken(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token %s: %w", address, err)
	}
	meta.Address = address
	meta.NetworkID = s.network

	if err := s.cache.Put(ctx, meta); err != nil {
		s.log.Warn("token cache write failed", "token", address, "error", err)
	}
	return meta, nil
}

// LookupAll resolves every distinct address. Tokens that cannot be fetched
// are logged and left out of the result.
func (s *Service) LookupAll(ctx context.Context, addresses []string) map[string]*domain.TokenMetadata {
	out := make(map[string]*domain.TokenMetadata, len(addresses))
	for _, addr := range addresses {
		addr = strings.ToLower(addr)
		if _, seen := out[addr]; seen || addr == "" {
			continue
		}
		meta, err := s.Lookup(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			s.log.Debug("token metadata unavailable", "token", addr, "error", err)
			out[addr] = nil
			continue
		}
		out[addr] = meta
	}
	for addr, meta := range out {
		if meta == nil {
			delete(out, addr)
		}
	}
	return out
}
