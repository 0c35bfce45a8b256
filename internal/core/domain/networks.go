package domain

import "fmt"

type NetworkName string

// Network identifies a chain the settlement contract is deployed on.
type Network struct {
	Name    NetworkName
	ChainID uint64
}

const (
	NetworkMainnet     NetworkName = "mainnet"
	NetworkGnosis      NetworkName = "xdai"
	NetworkArbitrumOne NetworkName = "arbitrum_one"
	NetworkBase        NetworkName = "base"
	NetworkSepolia     NetworkName = "sepolia"
)

// Networks maps a network name to its chain ID.
var Networks = map[NetworkName]Network{
	NetworkMainnet:     {Name: NetworkMainnet, ChainID: 1},
	NetworkGnosis:      {Name: NetworkGnosis, ChainID: 100},
	NetworkArbitrumOne: {Name: NetworkArbitrumOne, ChainID: 42161},
	NetworkBase:        {Name: NetworkBase, ChainID: 8453},
	NetworkSepolia:     {Name: NetworkSepolia, ChainID: 11155111},
}

// LookupNetwork resolves a configured network name.
func LookupNetwork(name string) (Network, error) {
	n, ok := Networks[NetworkName(name)]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q", name)
	}
	return n, nil
}

// ID returns the network identifier used as the cache key component.
func (n Network) ID() string {
	return string(n.Name)
}
