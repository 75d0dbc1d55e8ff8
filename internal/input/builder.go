// Package input batches typed plaintext values into one encrypted input:
// an ordered list of handles plus a single proof for the whole batch.
package input

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/relay"
)

// Sealer encrypts a batch under a chain key. engine.Engine satisfies it.
type Sealer interface {
	Seal(keys *domain.PublicKeySet, values []domain.ClearValue) ([]byte, error)
}

// Prover registers a sealed batch and returns its handles and proof.
type Prover interface {
	InputProof(ctx context.Context, req *relay.InputProofRequest) (*relay.InputProofResponse, error)
}

// Config binds a Builder to an instance and a (contract, user) pair.
type Config struct {
	Sealer   Sealer
	Prover   Prover
	Keys     *domain.PublicKeySet
	ChainID  uint64
	Contract string
	User     string

	// Live reports whether the owning instance is still current.
	Live func() bool

	Logger zerolog.Logger
}

// Builder accumulates values in call order. It is safe for concurrent use.
type Builder struct {
	cfg      Config
	contract string
	user     string

	// encMu serializes Encrypt so each call owns the prefix it copied.
	encMu sync.Mutex

	mu     sync.Mutex
	values []domain.ClearValue
	bits   int
}

// NewBuilder validates cfg's addresses and returns an empty Builder.
func NewBuilder(cfg Config) (*Builder, error) {
	contract, err := domain.NormalizeAddress(cfg.Contract)
	if err != nil {
		return nil, fmt.Errorf("contract address: %w", err)
	}
	user, err := domain.NormalizeAddress(cfg.User)
	if err != nil {
		return nil, fmt.Errorf("user address: %w", err)
	}
	if cfg.Live == nil {
		cfg.Live = func() bool { return true }
	}
	return &Builder{cfg: cfg, contract: contract, user: user}, nil
}

func (b *Builder) add(v domain.ClearValue) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.values)+1 > constants.MaxInputValues {
		return fmt.Errorf("%w: more than %d values", errors.ErrInputTooLarge, constants.MaxInputValues)
	}
	if b.bits+v.Type.Bits() > constants.MaxInputBits {
		return fmt.Errorf("%w: more than %d bits", errors.ErrInputTooLarge, constants.MaxInputBits)
	}
	b.values = append(b.values, v)
	b.bits += v.Type.Bits()
	return nil
}

func (b *Builder) addUint(t domain.ValueType, v uint64) error {
	n := uint256.NewInt(v)
	if !domain.FitsType(t, n) {
		return fmt.Errorf("%w: %d does not fit %s", errors.ErrValueOutOfRange, v, t)
	}
	return b.add(domain.IntValue(t, n))
}

func (b *Builder) addBig(t domain.ValueType, v *uint256.Int) error {
	if v == nil {
		return fmt.Errorf("%w: nil %s", errors.ErrValueOutOfRange, t)
	}
	if !domain.FitsType(t, v) {
		return fmt.Errorf("%w: %s does not fit %s", errors.ErrValueOutOfRange, v.Dec(), t)
	}
	return b.add(domain.IntValue(t, v))
}

// AddBool appends a boolean.
func (b *Builder) AddBool(v bool) error {
	return b.add(domain.BoolValue(v))
}

// Add8 appends an 8-bit unsigned integer.
func (b *Builder) Add8(v uint64) error { return b.addUint(domain.TypeUint8, v) }

// Add16 appends a 16-bit unsigned integer.
func (b *Builder) Add16(v uint64) error { return b.addUint(domain.TypeUint16, v) }

// Add32 appends a 32-bit unsigned integer.
func (b *Builder) Add32(v uint64) error { return b.addUint(domain.TypeUint32, v) }

// Add64 appends a 64-bit unsigned integer.
func (b *Builder) Add64(v uint64) error { return b.addUint(domain.TypeUint64, v) }

// Add128 appends a 128-bit unsigned integer.
func (b *Builder) Add128(v *uint256.Int) error { return b.addBig(domain.TypeUint128, v) }

// Add256 appends a 256-bit unsigned integer.
func (b *Builder) Add256(v *uint256.Int) error { return b.addBig(domain.TypeUint256, v) }

// AddAddress appends a 20-byte address.
func (b *Builder) AddAddress(addr string) error {
	a, err := domain.ParseAddress(addr)
	if err != nil {
		return err
	}
	return b.add(domain.AddressValue(a))
}

// Add appends a value whose type is only known at run time.
func (b *Builder) Add(v domain.ClearValue) error {
	switch {
	case v.Type == domain.TypeBool:
		return b.AddBool(v.Bool)
	case v.Type == domain.TypeAddress:
		return b.add(v)
	case v.Type.IsInteger():
		return b.addBig(v.Type, v.Int)
	default:
		return fmt.Errorf("%w: unknown value type %d", errors.ErrInvalidArgument, uint8(v.Type))
	}
}

// Len returns the number of values added.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

// Bits returns the total plaintext bits added.
func (b *Builder) Bits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bits
}

// Encrypt seals the batch and obtains its handles and proof. On success the
// encrypted values are removed from the builder; values added while Encrypt
// was running stay for the next call. On failure the values are kept so the
// call can be retried.
func (b *Builder) Encrypt(ctx context.Context) (*domain.EncryptedInput, error) {
	if !b.cfg.Live() {
		return nil, errors.ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.encMu.Lock()
	defer b.encMu.Unlock()

	b.mu.Lock()
	values := append([]domain.ClearValue(nil), b.values...)
	b.mu.Unlock()
	if len(values) == 0 {
		return nil, errors.ErrEmptyInput
	}

	ct, err := b.cfg.Sealer.Seal(b.cfg.Keys, values)
	if err != nil {
		return nil, fmt.Errorf("failed to seal input: %w", err)
	}
	resp, err := b.cfg.Prover.InputProof(ctx, &relay.InputProofRequest{
		ChainID:         b.cfg.ChainID,
		ContractAddress: b.contract,
		UserAddress:     b.user,
		Ciphertext:      ct,
	})
	if err != nil {
		return nil, errors.Wrap(err, "requesting input proof")
	}
	if err := checkHandles(resp, values, b.cfg.ChainID); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.values = append([]domain.ClearValue(nil), b.values[len(values):]...)
	for _, v := range values {
		b.bits -= v.Type.Bits()
	}
	b.mu.Unlock()

	b.cfg.Logger.Debug().
		Int("values", len(values)).
		Str("contract", b.contract).
		Uint64("chain_id", b.cfg.ChainID).
		Msg("encrypted input built")
	return &domain.EncryptedInput{Handles: resp.Handles, InputProof: resp.InputProof}, nil
}

func checkHandles(resp *relay.InputProofResponse, values []domain.ClearValue, chainID uint64) error {
	if len(resp.Handles) != len(values) {
		return fmt.Errorf("%w: got %d handles for %d values", errors.ErrInvalidHandle, len(resp.Handles), len(values))
	}
	if len(resp.InputProof) == 0 {
		return fmt.Errorf("%w: empty input proof", errors.ErrInvalidSignature)
	}
	for i, h := range resp.Handles {
		if h.Type() != values[i].Type || h.ChainID() != chainID || int(h.Index()) != i {
			return fmt.Errorf("%w: handle %d does not describe value %d", errors.ErrInvalidHandle, i, i)
		}
	}
	return nil
}
