// Package chain abstracts the chain connection an instance is resolved for.
package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mrz1836/fhekit/internal/errors"
)

// Provider is a chain connection. ID distinguishes providers so that
// switching wallets or RPC endpoints supersedes a resolution.
type Provider interface {
	ID() string
	ChainID(ctx context.Context) (uint64, error)
}

// Static is a Provider with a fixed chain id, used for local networks
// and tests.
type Static struct {
	Name  string
	Chain uint64
}

// ID implements Provider.
func (s Static) ID() string { return s.Name }

// ChainID implements Provider.
func (s Static) ChainID(context.Context) (uint64, error) {
	if s.Chain == 0 {
		return 0, fmt.Errorf("%w: provider %s reports no chain id", errors.ErrChainDetectFailed, s.Name)
	}
	return s.Chain, nil
}

// RPC is a Provider backed by a JSON-RPC endpoint. The client is dialed
// lazily and the chain id is cached after the first successful call.
type RPC struct {
	url string

	mu      sync.Mutex
	client  *ethclient.Client
	chainID uint64
}

// NewRPC creates a Provider for the endpoint at url.
func NewRPC(url string) *RPC {
	return &RPC{url: url}
}

// ID implements Provider.
func (p *RPC) ID() string { return p.url }

// ChainID implements Provider.
func (p *RPC) ChainID(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainID != 0 {
		return p.chainID, nil
	}
	if p.client == nil {
		client, err := ethclient.DialContext(ctx, p.url)
		if err != nil {
			return 0, fmt.Errorf("%w: dialing %s: %w", errors.ErrChainDetectFailed, p.url, err)
		}
		p.client = client
	}
	id, err := p.client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrChainDetectFailed, err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("%w: chain id %s out of range", errors.ErrChainDetectFailed, id)
	}
	p.chainID = id.Uint64()
	return p.chainID, nil
}

// Close releases the RPC connection.
func (p *RPC) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
