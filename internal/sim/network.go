package sim

import (
	"context"
	"sync"

	"github.com/mrz1836/fhekit/internal/storage"
)

// Network hands out one Coprocessor per simulated chain, all backed by the
// same store.
type Network struct {
	store   storage.Store
	opts    []Option
	mu      sync.Mutex
	coprocs map[uint64]*Coprocessor
}

// NewNetwork creates a Network over store.
func NewNetwork(store storage.Store, opts ...Option) *Network {
	return &Network{
		store:   store,
		opts:    opts,
		coprocs: make(map[uint64]*Coprocessor),
	}
}

// Coprocessor returns the coprocessor of chainID, opening it on first use.
func (n *Network) Coprocessor(ctx context.Context, chainID uint64) (*Coprocessor, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c, ok := n.coprocs[chainID]; ok {
		return c, nil
	}
	c, err := OpenCoprocessor(ctx, n.store, chainID, n.opts...)
	if err != nil {
		return nil, err
	}
	n.coprocs[chainID] = c
	return c, nil
}
