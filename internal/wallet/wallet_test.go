package wallet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/fhekit/internal/eip712"
	fherrors "github.com/mrz1836/fhekit/internal/errors"
)

func typedData() apitypes.TypedData {
	return eip712.UserDecrypt{
		ChainID:           31337,
		VerifyingContract: "0x00000000000000000000000000000000000d3c01",
		PublicKey:         make([]byte, 32),
		ContractAddresses: []string{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		StartTimestamp:    1760745600,
		DurationDays:      365,
	}.TypedData()
}

func TestKeySigner_SignRecovers(t *testing.T) {
	s, err := GenerateKeySigner()
	require.NoError(t, err)

	td := typedData()
	sig, err := s.SignTypedData(context.Background(), td)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	addr, err := eip712.Recover(td, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)
}

func TestKeySigner_CanceledContext(t *testing.T) {
	s, err := GenerateKeySigner()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.SignTypedData(ctx, typedData())
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet", "wallet.key")

	s, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.Address(), again.Address())

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "0x"))
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.key"))
	require.ErrorIs(t, err, fherrors.ErrWalletKeyInvalid)

	bad := filepath.Join(dir, "bad.key")
	require.NoError(t, os.WriteFile(bad, []byte("not hex"), 0o600))
	_, err = Load(bad)
	require.ErrorIs(t, err, fherrors.ErrWalletKeyInvalid)

	_, _, err = LoadOrCreate(bad)
	require.ErrorIs(t, err, fherrors.ErrWalletKeyInvalid)
}

func TestPromptSigner(t *testing.T) {
	inner, err := GenerateKeySigner()
	require.NoError(t, err)

	var shown string
	approve := func(_ context.Context, _, description string) (bool, error) {
		shown = description
		return true, nil
	}
	p := NewPromptSigner(inner, approve)
	assert.Equal(t, inner.Address(), p.Address())

	sig, err := p.SignTypedData(context.Background(), typedData())
	require.NoError(t, err)
	assert.Len(t, sig, 65)
	assert.Contains(t, shown, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assert.Contains(t, shown, "Chain: 31337")
	assert.Contains(t, shown, "365 days")

	decline := NewPromptSigner(inner, func(context.Context, string, string) (bool, error) { return false, nil })
	_, err = decline.SignTypedData(context.Background(), typedData())
	require.ErrorIs(t, err, fherrors.ErrUserRejected)

	aborted := NewPromptSigner(inner, func(context.Context, string, string) (bool, error) {
		return false, errors.New("aborted")
	})
	_, err = aborted.SignTypedData(context.Background(), typedData())
	require.ErrorIs(t, err, fherrors.ErrUserRejected)
}
