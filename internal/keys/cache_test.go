package keys

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/domain"
	fherrors "github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/relay"
	"github.com/mrz1836/fhekit/internal/storage"
)

type fakeFetcher struct {
	calls atomic.Int64
	gate  chan struct{}
	err   error
	keyID string
	chain uint64
}

func (f *fakeFetcher) Keys(ctx context.Context, chainID uint64) (*relay.KeyResponse, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	answered := chainID
	if f.chain != 0 {
		answered = f.chain
	}
	return &relay.KeyResponse{ChainID: answered, KeyID: f.keyID, PublicKey: []byte{byte(chainID), 1, 2}}, nil
}

func newCache(t *testing.T, store storage.Store, f Fetcher, opts ...Option) *Cache {
	t.Helper()
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	c, err := New(store, f, append([]Option{WithClock(clock.NewManual(now))}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestCache_ReadThroughAndWriteThrough(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	f := &fakeFetcher{}
	c := newCache(t, store, f)

	ks, err := c.Get(ctx, 8009)
	require.NoError(t, err)
	assert.Equal(t, uint64(8009), ks.ChainID)
	assert.Equal(t, domain.KeyIDFor(ks.PublicKey), ks.KeyID)
	assert.Equal(t, int64(1), f.calls.Load())

	// Memory hit.
	_, err = c.Get(ctx, 8009)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Fetches())

	// Persistent hit after the memory layer is gone.
	c.Purge()
	again, err := c.Get(ctx, 8009)
	require.NoError(t, err)
	assert.Equal(t, ks.KeyID, again.KeyID)
	assert.Equal(t, int64(1), f.calls.Load())

	// A new process over the same store does not fetch.
	other := newCache(t, store, f)
	_, err = other.Get(ctx, 8009)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.calls.Load())
}

func TestCache_RelaySuppliedKeyID(t *testing.T) {
	c := newCache(t, storage.NewMemory(), &fakeFetcher{keyID: "key-7"})
	ks, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "key-7", ks.KeyID)
}

func TestCache_ConcurrentMissesShareOneFetch(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	c := newCache(t, storage.NewMemory(), f)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int64(1), f.calls.Load())
}

func TestCache_FetchErrors(t *testing.T) {
	ctx := context.Background()

	c := newCache(t, storage.NewMemory(), &fakeFetcher{err: fherrors.ErrNetwork})
	_, err := c.Get(ctx, 1)
	require.ErrorIs(t, err, fherrors.ErrKeyFetchFailed)
	require.ErrorIs(t, err, fherrors.ErrNetwork)

	c = newCache(t, storage.NewMemory(), &fakeFetcher{chain: 99})
	_, err = c.Get(ctx, 1)
	require.ErrorIs(t, err, fherrors.ErrKeyFetchFailed)

	// Errors are not cached.
	f := &fakeFetcher{err: errors.New("down")}
	c = newCache(t, storage.NewMemory(), f)
	_, err = c.Get(ctx, 1)
	require.Error(t, err)
	f.err = nil
	_, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.calls.Load())
}

func TestCache_CallerCancel(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	c := newCache(t, storage.NewMemory(), f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	close(f.gate)
}

func TestCache_PeekAndPut(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{}
	c := newCache(t, storage.NewMemory(), f)

	_, ok, err := c.Peek(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, &domain.PublicKeySet{ChainID: 5, KeyID: "k", PublicKey: []byte{9}}))
	ks, ok, err := c.Peek(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k", ks.KeyID)
	assert.Zero(t, f.calls.Load())

	require.ErrorIs(t, c.Put(ctx, &domain.PublicKeySet{ChainID: 5}), fherrors.ErrInvalidArgument)
}

func TestCache_CorruptRecordIsRefetched(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, storeKey(3), "{broken"))

	f := &fakeFetcher{}
	c := newCache(t, store, f)
	_, err := c.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.calls.Load())
}

func TestCache_EvictionOnlyDropsMemory(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{}
	c := newCache(t, storage.NewMemory(), f, WithSize(1))

	_, err := c.Get(ctx, 1)
	require.NoError(t, err)
	_, err = c.Get(ctx, 2)
	require.NoError(t, err)
	_, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.calls.Load())
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(storage.NewMemory(), &fakeFetcher{}, WithSize(0))
	require.Error(t, err)
}
