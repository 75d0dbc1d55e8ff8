package authz_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/fhekit/internal/authz"
	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/eip712"
	fherrors "github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/storage"
	"github.com/mrz1836/fhekit/internal/wallet"
)

const (
	contractA = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	contractC = "0xcccccccccccccccccccccccccccccccccccccccc"
)

var start = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // test fixture

type target struct {
	chainID uint64
	keyID   string
}

func (t target) ChainID() uint64           { return t.chainID }
func (t target) KeyID() string             { return t.keyID }
func (t target) VerifyingContract() string { return constants.DefaultDecryptionContract }

var inst = target{chainID: 31337, keyID: "0xkey1"} //nolint:gochecknoglobals // test fixture

// countingSigner counts prompts and can hold them open or refuse them.
type countingSigner struct {
	inner  *wallet.KeySigner
	calls  atomic.Int64
	gate   chan struct{}
	reject atomic.Bool
}

func newSigner(t *testing.T) *countingSigner {
	t.Helper()
	k, err := wallet.GenerateKeySigner()
	require.NoError(t, err)
	return &countingSigner{inner: k}
}

func (s *countingSigner) Address() common.Address { return s.inner.Address() }

func (s *countingSigner) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.reject.Load() {
		return nil, fherrors.ErrUserRejected
	}
	return s.inner.SignTypedData(ctx, td)
}

func newManager(store storage.Store, clk clock.Clock) *authz.Manager {
	return authz.NewManager(store, authz.WithClock(clk), authz.WithDurationDays(10))
}

func TestLoadOrSign_ReusesWithoutPrompt(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(start)
	m := newManager(storage.NewMemory(), clk)
	s := newSigner(t)

	first, err := m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	second, err := m.LoadOrSign(ctx, inst, []string{strings.ToLower(contractA), contractA}, s)
	require.NoError(t, err)

	assert.Equal(t, int64(1), s.calls.Load())
	assert.Equal(t, int64(1), m.Prompts())
	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, first.PublicKey, second.PublicKey)
	assert.Equal(t, []string{strings.ToLower(contractA)}, first.ContractAddresses)
	assert.Equal(t, strings.ToLower(s.Address().Hex()), first.UserAddress)
	assert.Equal(t, start.Unix(), first.StartTimestamp)
	assert.Equal(t, int64(10), first.DurationDays)
	assert.Equal(t, inst.keyID, first.KeyID)
	assert.Len(t, first.PrivateKey, 32)
	assert.True(t, start.Add(10*24*time.Hour).Equal(first.ExpiresAt))

	td := eip712.UserDecrypt{
		ChainID:           inst.chainID,
		VerifyingContract: constants.DefaultDecryptionContract,
		PublicKey:         first.PublicKey,
		ContractAddresses: first.ContractAddresses,
		StartTimestamp:    first.StartTimestamp,
		DurationDays:      first.DurationDays,
	}.TypedData()
	signer, err := eip712.Recover(td, first.Signature)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), signer)
}

func TestLoadOrSign_ConcurrentCallsShareOnePrompt(t *testing.T) {
	m := newManager(storage.NewMemory(), clock.NewManual(start))
	s := newSigner(t)
	s.gate = make(chan struct{})

	const n = 10
	var wg sync.WaitGroup
	sigs := make([]*domain.DecryptionSignature, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, err := m.LoadOrSign(context.Background(), inst, []string{contractA}, s)
			assert.NoError(t, err)
			sigs[i] = sig
		}()
	}
	assert.Eventually(t, func() bool { return s.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(s.gate)
	wg.Wait()

	assert.Equal(t, int64(1), s.calls.Load())
	for _, sig := range sigs {
		require.NotNil(t, sig)
		assert.Equal(t, sigs[0].Signature, sig.Signature)
	}
}

func TestLoadOrSign_ValidityWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(start)
	m := newManager(storage.NewMemory(), clk)
	s := newSigner(t)

	first, err := m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	assert.True(t, first.IsValidAt(start))

	end := start.Add(10 * 24 * time.Hour)
	clk.Set(end.Add(-time.Second))
	lastSecond, err := m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, first.Signature, lastSecond.Signature)
	assert.Equal(t, int64(1), s.calls.Load())

	clk.Set(end)
	assert.False(t, first.IsValidAt(end))
	renewed, err := m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.calls.Load())
	assert.NotEqual(t, first.Signature, renewed.Signature)
	assert.Equal(t, end.Unix(), renewed.StartTimestamp)
}

func TestLoadOrSign_ExactContractSet(t *testing.T) {
	ctx := context.Background()
	m := newManager(storage.NewMemory(), clock.NewManual(start))
	s := newSigner(t)

	both, err := m.LoadOrSign(ctx, inst, []string{contractC, contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, []string{strings.ToLower(contractA), contractC}, both.ContractAddresses)

	// A subset is a different entry, not a reuse of the wider one.
	onlyA, err := m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.calls.Load())
	assert.NotEqual(t, both.Signature, onlyA.Signature)

	// Order and case do not matter.
	_, err = m.LoadOrSign(ctx, inst, []string{"0x" + strings.ToUpper(contractC[2:]), contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.calls.Load())
}

func TestLoadOrSign_KeyIDScopesEntries(t *testing.T) {
	ctx := context.Background()
	m := newManager(storage.NewMemory(), clock.NewManual(start))
	s := newSigner(t)

	_, err := m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	_, err = m.LoadOrSign(ctx, target{chainID: 31337, keyID: "0xkey2"}, []string{contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.calls.Load())
}

func TestLoadOrSign_RejectionIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	m := newManager(store, clock.NewManual(start))
	s := newSigner(t)
	s.reject.Store(true)

	_, err := m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.ErrorIs(t, err, fherrors.ErrUserRejected)
	assert.Equal(t, 0, store.Len())

	s.reject.Store(false)
	_, err = m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.calls.Load())
}

func TestLoadOrSign_PersistsAcrossManagers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFile(t.TempDir() + "/store.json")
	s := newSigner(t)

	first, err := newManager(store, clock.NewManual(start)).LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)

	later := clock.NewManual(start.Add(24 * time.Hour))
	second, err := newManager(store, later).LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, int64(1), s.calls.Load())
}

func TestLoadOrSign_CorruptRecordIsResigned(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	m := newManager(store, clock.NewManual(start))
	s := newSigner(t)

	key := constants.SignaturePrefix + authz.CacheKey(s.Address().Hex(), []string{strings.ToLower(contractA)}, inst.keyID)
	require.NoError(t, store.Set(ctx, key, "{not json"))

	sig, err := m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	assert.NotEmpty(t, sig.Signature)
	assert.Equal(t, int64(1), s.calls.Load())
}

func TestLookupAndInvalidate(t *testing.T) {
	ctx := context.Background()
	m := newManager(storage.NewMemory(), clock.NewManual(start))
	s := newSigner(t)
	user := s.Address().Hex()

	_, ok, err := m.Lookup(ctx, inst, []string{contractA}, user)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)

	found, ok, err := m.Lookup(ctx, inst, []string{contractA}, user)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strings.ToLower(user), found.UserAddress)

	require.NoError(t, m.Invalidate(ctx, inst, []string{contractA}, user))
	_, ok, err = m.Lookup(ctx, inst, []string{contractA}, user)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.LoadOrSign(ctx, inst, []string{contractA}, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.calls.Load())
}

func TestLoadOrSign_InvalidScope(t *testing.T) {
	ctx := context.Background()
	m := newManager(storage.NewMemory(), clock.NewManual(start))
	s := newSigner(t)

	_, err := m.LoadOrSign(ctx, inst, nil, s)
	require.ErrorIs(t, err, fherrors.ErrNoContracts)
	_, err = m.LoadOrSign(ctx, inst, []string{"0x12"}, s)
	require.ErrorIs(t, err, fherrors.ErrInvalidAddress)
	assert.Equal(t, int64(0), s.calls.Load())
}

type wrongSigner struct {
	*countingSigner
	claimed common.Address
}

func (w wrongSigner) Address() common.Address { return w.claimed }

func TestLoadOrSign_SignatureFromOtherKeyRejected(t *testing.T) {
	s := newSigner(t)
	w := wrongSigner{countingSigner: s, claimed: common.HexToAddress(contractC)}
	m := newManager(storage.NewMemory(), clock.NewManual(start))

	_, err := m.LoadOrSign(context.Background(), inst, []string{contractA}, w)
	require.ErrorIs(t, err, fherrors.ErrInvalidSignature)
}

func TestCacheKey(t *testing.T) {
	a := authz.CacheKey("0xBB", []string{"0xa", "0xc"}, "k")
	assert.Equal(t, a, authz.CacheKey("0xbb", []string{"0xa", "0xc"}, "k"))
	assert.NotEqual(t, a, authz.CacheKey("0xbb", []string{"0xa"}, "k"))
	assert.NotEqual(t, a, authz.CacheKey("0xbb", []string{"0xa", "0xc"}, "k2"))
	assert.True(t, strings.HasPrefix(a, "0x"))
	assert.Len(t, a, 66)
}
