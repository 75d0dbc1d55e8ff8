// Package decrypt turns handles back into typed cleartext, either for a
// user holding a decryption signature or for values made public.
package decrypt

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/box"

	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/relay"
)

const keyLen = 32

// Target is the instance requests are decrypted on. *instance.Instance
// satisfies it.
type Target interface {
	ChainID() uint64
	Backend() relay.API
	Retired() bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the clock used to check signature validity.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// Executor issues decrypt calls to an instance's relay.
type Executor struct {
	clock  clock.Clock
	logger zerolog.Logger
}

// NewExecutor returns an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{clock: clock.RealClock{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "decrypt").Logger()
	return e
}

func checkRequests(target Target, requests []domain.DecryptRequest) error {
	if len(requests) == 0 {
		return errors.ErrNoRequests
	}
	if target.Retired() {
		return errors.ErrNotReady
	}
	for _, r := range requests {
		if _, err := domain.NormalizeAddress(r.ContractAddress); err != nil {
			return err
		}
		if r.Handle.ChainID() != target.ChainID() {
			return fmt.Errorf("%w: %s belongs to chain %d", errors.ErrInvalidHandle, r.Handle.Hex(), r.Handle.ChainID())
		}
	}
	return nil
}

// UserDecrypt returns the cleartext of every requested handle. Scope and
// validity of sig are checked before the relay is contacted.
func (e *Executor) UserDecrypt(ctx context.Context, target Target, requests []domain.DecryptRequest, sig *domain.DecryptionSignature) (map[domain.Handle]domain.ClearValue, error) {
	if err := checkRequests(target, requests); err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, fmt.Errorf("%w: missing decryption signature", errors.ErrInvalidArgument)
	}
	for _, r := range requests {
		if !sig.Covers(r.ContractAddress) {
			return nil, fmt.Errorf("%w: %s", errors.ErrScopeMismatch, r.ContractAddress)
		}
	}
	if sig.ChainID != target.ChainID() {
		return nil, fmt.Errorf("%w: signature issued for chain %d", errors.ErrScopeMismatch, sig.ChainID)
	}
	if !sig.IsValidAt(e.clock.Now()) {
		return nil, errors.ErrSignatureExpired
	}
	if len(sig.PublicKey) != keyLen || len(sig.PrivateKey) != keyLen {
		return nil, fmt.Errorf("%w: malformed ephemeral keypair", errors.ErrInvalidSignature)
	}

	resp, err := target.Backend().UserDecrypt(ctx, &relay.UserDecryptRequest{
		Requests:          relay.Pairs(requests),
		PublicKey:         sig.PublicKey,
		Signature:         sig.Signature,
		ContractAddresses: sig.ContractAddresses,
		UserAddress:       sig.UserAddress,
		StartTimestamp:    sig.StartTimestamp,
		DurationDays:      sig.DurationDays,
		ChainID:           target.ChainID(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "user decrypt")
	}

	var pub, priv [keyLen]byte
	copy(pub[:], sig.PublicKey)
	copy(priv[:], sig.PrivateKey)

	out := make(map[domain.Handle]domain.ClearValue, len(requests))
	for _, r := range requests {
		sealed, ok := resp.Results[r.Handle]
		if !ok {
			return nil, fmt.Errorf("%w: relay returned no value for %s", errors.ErrUnknownHandle, r.Handle.Hex())
		}
		word, ok := box.OpenAnonymous(nil, sealed, &pub, &priv)
		if !ok {
			return nil, fmt.Errorf("%w: value for %s is not sealed to the signature key", errors.ErrInvalidSignature, r.Handle.Hex())
		}
		v, err := domain.ClearValueFromWord(r.Handle.Type(), word)
		if err != nil {
			return nil, err
		}
		out[r.Handle] = v
	}
	e.logger.Debug().Int("handles", len(out)).Uint64("chain_id", target.ChainID()).Msg("user decrypt completed")
	return out, nil
}

// PublicDecrypt returns the cleartext of handles that were made publicly
// decryptable. A refusal surfaces as errors.ErrAccessDenied.
func (e *Executor) PublicDecrypt(ctx context.Context, target Target, requests []domain.DecryptRequest) (map[domain.Handle]domain.ClearValue, error) {
	if err := checkRequests(target, requests); err != nil {
		return nil, err
	}

	resp, err := target.Backend().PublicDecrypt(ctx, &relay.PublicDecryptRequest{
		ChainID:  target.ChainID(),
		Requests: relay.Pairs(requests),
	})
	if err != nil {
		return nil, errors.Wrap(err, "public decrypt")
	}

	out := make(map[domain.Handle]domain.ClearValue, len(requests))
	for _, r := range requests {
		word, ok := resp.Results[r.Handle]
		if !ok {
			return nil, fmt.Errorf("%w: relay returned no value for %s", errors.ErrUnknownHandle, r.Handle.Hex())
		}
		v, err := domain.ClearValueFromWord(r.Handle.Type(), word)
		if err != nil {
			return nil, err
		}
		out[r.Handle] = v
	}
	e.logger.Debug().Int("handles", len(out)).Uint64("chain_id", target.ChainID()).Msg("public decrypt completed")
	return out, nil
}
