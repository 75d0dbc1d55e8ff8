// Package instance resolves a ready FHE instance for a (provider, chain)
// pair and hands out encrypted input builders bound to it.
package instance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/input"
	"github.com/mrz1836/fhekit/internal/relay"
)

// Kind tells a locally simulated instance from one backed by the relay.
type Kind int

const (
	// KindMock instances run against the in-process simulation coprocessor.
	KindMock Kind = iota
	// KindProduction instances use the loaded engine bundle and the remote relay.
	KindProduction
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindMock:
		return "mock"
	case KindProduction:
		return "production"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Instance is an immutable engine handle bound to one chain's key material.
// It is retired, never mutated, when the resolver replaces it.
type Instance struct {
	kind              Kind
	providerID        string
	keys              *domain.PublicKeySet
	createdAt         time.Time
	verifyingContract string
	sealer            input.Sealer
	backend           relay.API
	logger            zerolog.Logger
	retired           atomic.Bool
}

// Kind returns whether the instance is mock or production.
func (i *Instance) Kind() Kind { return i.kind }

// ChainID returns the chain the instance is bound to.
func (i *Instance) ChainID() uint64 { return i.keys.ChainID }

// KeyID returns the id of the chain public key.
func (i *Instance) KeyID() string { return i.keys.KeyID }

// Keys returns the chain public key set.
func (i *Instance) Keys() *domain.PublicKeySet { return i.keys }

// ProviderID returns the id of the provider the instance was resolved for.
func (i *Instance) ProviderID() string { return i.providerID }

// CreatedAt returns when the instance was built.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// VerifyingContract returns the EIP-712 verifying contract of decryption signatures.
func (i *Instance) VerifyingContract() string { return i.verifyingContract }

// Backend returns the relay the instance talks to.
func (i *Instance) Backend() relay.API { return i.backend }

// Retired reports whether the instance has been replaced.
func (i *Instance) Retired() bool { return i.retired.Load() }

func (i *Instance) retire() {
	if i.retired.CompareAndSwap(false, true) {
		i.logger.Debug().Msg("instance retired")
	}
}

// CreateEncryptedInput returns an empty builder for values submitted to
// contract by user.
func (i *Instance) CreateEncryptedInput(contract, user string) (*input.Builder, error) {
	if i.Retired() {
		return nil, errors.ErrNotReady
	}
	return input.NewBuilder(input.Config{
		Sealer:   i.sealer,
		Prover:   i.backend,
		Keys:     i.keys,
		ChainID:  i.keys.ChainID,
		Contract: contract,
		User:     user,
		Live:     func() bool { return !i.Retired() },
		Logger:   i.logger,
	})
}

type handleMarker interface {
	MarkPublic(ctx context.Context, handles []domain.Handle) error
}

type requestMarker interface {
	MarkPublic(ctx context.Context, req *relay.MarkPublicRequest) error
}

// MarkPublic makes handles publicly decryptable. Only simulated backends
// support it; on a real network this is the contract's decision.
func (i *Instance) MarkPublic(ctx context.Context, handles []domain.Handle) error {
	if i.Retired() {
		return errors.ErrNotReady
	}
	switch b := i.backend.(type) {
	case handleMarker:
		return b.MarkPublic(ctx, handles)
	case requestMarker:
		return b.MarkPublic(ctx, &relay.MarkPublicRequest{ChainID: i.ChainID(), Handles: handles})
	default:
		return fmt.Errorf("%w: %s backend cannot mark values public", errors.ErrInvalidArgument, i.kind)
	}
}
