package input_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/fhekit/internal/domain"
	fherrors "github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/input"
	"github.com/mrz1836/fhekit/internal/relay"
	"github.com/mrz1836/fhekit/internal/sim"
	"github.com/mrz1836/fhekit/internal/storage"
)

const (
	chainID  uint64 = 31337
	contract        = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	user            = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type countingProver struct {
	inner relay.API
	calls atomic.Int64
	err   error

	// during runs while the proof request is in progress.
	during func()
}

func (p *countingProver) InputProof(ctx context.Context, req *relay.InputProofRequest) (*relay.InputProofResponse, error) {
	p.calls.Add(1)
	if p.during != nil {
		p.during()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.inner.InputProof(ctx, req)
}

func newBuilder(t *testing.T, live func() bool) (*input.Builder, *sim.Coprocessor, *countingProver) {
	t.Helper()
	c, err := sim.OpenCoprocessor(context.Background(), storage.NewMemory(), chainID)
	require.NoError(t, err)
	p := &countingProver{inner: c}
	b, err := input.NewBuilder(input.Config{
		Sealer:   sim.NewEngine(),
		Prover:   p,
		Keys:     c.KeySet(),
		ChainID:  chainID,
		Contract: contract,
		User:     user,
		Live:     live,
	})
	require.NoError(t, err)
	return b, c, p
}

func TestBuilder_EncryptMixedBatch(t *testing.T) {
	b, c, _ := newBuilder(t, nil)

	require.NoError(t, b.AddBool(true))
	require.NoError(t, b.Add8(255))
	require.NoError(t, b.Add32(1000000))
	require.NoError(t, b.Add128(new(uint256.Int).Lsh(uint256.NewInt(1), 127)))
	require.NoError(t, b.AddAddress(user))
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, 2+8+32+128+160, b.Bits())

	out, err := b.Encrypt(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Handles, 5)

	want := []domain.ValueType{domain.TypeBool, domain.TypeUint8, domain.TypeUint32, domain.TypeUint128, domain.TypeAddress}
	for i, h := range out.Handles {
		assert.Equal(t, want[i], h.Type())
		assert.Equal(t, chainID, h.ChainID())
		assert.Equal(t, uint8(i), h.Index())
	}
	require.NoError(t, c.VerifyInputProof(out.Handles, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", user, out.InputProof))

	// Consumed.
	assert.Equal(t, 0, b.Len())
	_, err = b.Encrypt(context.Background())
	require.ErrorIs(t, err, fherrors.ErrEmptyInput)
}

func TestBuilder_OutOfRangeFailsAtAdd(t *testing.T) {
	b, _, _ := newBuilder(t, nil)

	require.ErrorIs(t, b.Add8(256), fherrors.ErrValueOutOfRange)
	require.ErrorIs(t, b.Add16(1<<16), fherrors.ErrValueOutOfRange)
	require.ErrorIs(t, b.Add32(1<<32), fherrors.ErrValueOutOfRange)
	require.ErrorIs(t, b.Add128(new(uint256.Int).Lsh(uint256.NewInt(1), 128)), fherrors.ErrValueOutOfRange)
	require.ErrorIs(t, b.Add256(nil), fherrors.ErrValueOutOfRange)
	require.ErrorIs(t, b.AddAddress("0x1234"), fherrors.ErrInvalidAddress)
	assert.Equal(t, 0, b.Len())

	require.NoError(t, b.Add64(^uint64(0)))
	require.NoError(t, b.Add256(new(uint256.Int).SetAllOne()))
}

func TestBuilder_Limits(t *testing.T) {
	t.Run("value count", func(t *testing.T) {
		b, _, _ := newBuilder(t, nil)
		for range 256 {
			require.NoError(t, b.AddBool(false))
		}
		require.ErrorIs(t, b.AddBool(true), fherrors.ErrInputTooLarge)
		assert.Equal(t, 256, b.Len())
	})

	t.Run("bit budget", func(t *testing.T) {
		b, _, _ := newBuilder(t, nil)
		for range 8 {
			require.NoError(t, b.Add256(uint256.NewInt(1)))
		}
		assert.Equal(t, 2048, b.Bits())
		require.ErrorIs(t, b.AddBool(true), fherrors.ErrInputTooLarge)
	})
}

func TestBuilder_AddDynamic(t *testing.T) {
	b, _, _ := newBuilder(t, nil)
	require.NoError(t, b.Add(domain.BoolValue(true)))
	require.NoError(t, b.Add(domain.Uint64Value(domain.TypeUint16, 7)))
	require.ErrorIs(t, b.Add(domain.Uint64Value(domain.TypeUint8, 300)), fherrors.ErrValueOutOfRange)
	require.ErrorIs(t, b.Add(domain.ClearValue{Type: domain.ValueType(99)}), fherrors.ErrInvalidArgument)
	assert.Equal(t, 2, b.Len())
}

func TestBuilder_RetiredInstance(t *testing.T) {
	var live atomic.Bool
	live.Store(true)
	b, _, p := newBuilder(t, live.Load)
	require.NoError(t, b.Add8(1))

	live.Store(false)
	_, err := b.Encrypt(context.Background())
	require.ErrorIs(t, err, fherrors.ErrNotReady)
	assert.Equal(t, int64(0), p.calls.Load())
}

func TestBuilder_ProverFailureKeepsValues(t *testing.T) {
	b, _, p := newBuilder(t, nil)
	require.NoError(t, b.Add8(1))

	p.err = fherrors.ErrNetwork
	_, err := b.Encrypt(context.Background())
	require.ErrorIs(t, err, fherrors.ErrNetwork)
	assert.Equal(t, 1, b.Len())

	p.err = nil
	out, err := b.Encrypt(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Handles, 1)
}

func TestBuilder_ValueAddedDuringEncryptIsKept(t *testing.T) {
	b, _, p := newBuilder(t, nil)
	require.NoError(t, b.AddBool(true))
	require.NoError(t, b.Add8(5))

	p.during = func() { assert.NoError(t, b.Add16(7)) }
	out, err := b.Encrypt(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Handles, 2)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 16, b.Bits())

	p.during = nil
	out, err = b.Encrypt(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Handles, 1)
	assert.Equal(t, domain.TypeUint16, out.Handles[0].Type())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Bits())
}

func TestBuilder_CanceledContext(t *testing.T) {
	b, _, p := newBuilder(t, nil)
	require.NoError(t, b.Add8(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Encrypt(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), p.calls.Load())
}

func TestNewBuilder_InvalidAddresses(t *testing.T) {
	_, err := input.NewBuilder(input.Config{Contract: "nope", User: user})
	require.ErrorIs(t, err, fherrors.ErrInvalidAddress)

	_, err = input.NewBuilder(input.Config{Contract: contract, User: ""})
	require.ErrorIs(t, err, fherrors.ErrInvalidAddress)
}
