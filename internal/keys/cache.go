// Package keys caches the FHE public key material of each chain. Lookups go
// memory, then the persistent store, then the relay; a fetched key is written
// through to both cache layers and never expires.
package keys

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/ctxutil"
	"github.com/mrz1836/fhekit/internal/domain"
	fherrors "github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/relay"
	"github.com/mrz1836/fhekit/internal/storage"
)

// Fetcher retrieves key material from the network.
type Fetcher interface {
	Keys(ctx context.Context, chainID uint64) (*relay.KeyResponse, error)
}

// Cache is the read-through public key cache.
type Cache struct {
	mem          *lru.Cache[uint64, *domain.PublicKeySet]
	store        storage.Store
	fetcher      Fetcher
	clock        clock.Clock
	logger       zerolog.Logger
	fetchTimeout time.Duration
	size         int

	group   singleflight.Group
	fetches atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithSize sets the number of chains kept in memory.
func WithSize(n int) Option {
	return func(c *Cache) {
		c.size = n
	}
}

// WithClock sets the clock used to stamp fetched keys.
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) {
		c.clock = clk
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithFetchTimeout bounds the shared network fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.fetchTimeout = d
	}
}

// New creates a Cache over store, fetching misses through fetcher.
func New(store storage.Store, fetcher Fetcher, opts ...Option) (*Cache, error) {
	c := &Cache{
		store:        store,
		fetcher:      fetcher,
		clock:        clock.RealClock{},
		logger:       zerolog.Nop(),
		fetchTimeout: constants.DefaultRelayTimeout,
		size:         constants.DefaultKeyCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	mem, err := lru.New[uint64, *domain.PublicKeySet](c.size)
	if err != nil {
		return nil, fmt.Errorf("failed to create key cache: %w", err)
	}
	c.mem = mem
	c.logger = c.logger.With().Str("component", "keys").Logger()
	return c, nil
}

func storeKey(chainID uint64) string {
	return constants.PublicKeyPrefix + strconv.FormatUint(chainID, 10)
}

// Get returns the key set of chainID. Concurrent misses for one chain share a
// single fetch.
func (c *Cache) Get(ctx context.Context, chainID uint64) (*domain.PublicKeySet, error) {
	ks, ok, err := c.Peek(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fherrors.ErrKeyFetchFailed, err)
	}
	if ok {
		return ks, nil
	}

	ch := c.group.DoChan(strconv.FormatUint(chainID, 10), func() (any, error) {
		fctx, cancel := ctxutil.Detached(ctx, c.fetchTimeout)
		defer cancel()
		return c.fetch(fctx, chainID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: chain %d: %w", fherrors.ErrKeyFetchFailed, chainID, res.Err)
		}
		return res.Val.(*domain.PublicKeySet), nil //nolint:forcetypeassert // only key sets are returned
	}
}

func (c *Cache) fetch(ctx context.Context, chainID uint64) (*domain.PublicKeySet, error) {
	c.fetches.Add(1)
	resp, err := c.fetcher.Keys(ctx, chainID)
	if err != nil {
		c.logger.Warn().Err(err).Uint64("chain_id", chainID).Msg("public key fetch failed")
		return nil, err
	}
	if resp.ChainID != chainID {
		return nil, fmt.Errorf("relay answered for chain %d", resp.ChainID)
	}
	if len(resp.PublicKey) == 0 {
		return nil, errors.New("relay returned an empty public key")
	}
	keyID := resp.KeyID
	if keyID == "" {
		keyID = domain.KeyIDFor(resp.PublicKey)
	}
	ks := &domain.PublicKeySet{
		ChainID:       chainID,
		KeyID:         keyID,
		PublicKey:     resp.PublicKey,
		FetchedAt:     c.clock.Now().UTC(),
		SchemaVersion: constants.RecordSchemaVersion,
	}
	if err := c.Put(ctx, ks); err != nil {
		return nil, err
	}
	c.logger.Info().Uint64("chain_id", chainID).Str("key_id", keyID).Msg("public key fetched")
	return ks, nil
}

// Peek looks in memory and the persistent store without touching the network.
// A persisted hit is promoted to memory; an undecodable record reads as a miss.
func (c *Cache) Peek(ctx context.Context, chainID uint64) (*domain.PublicKeySet, bool, error) {
	if ks, ok := c.mem.Get(chainID); ok {
		return ks, true, nil
	}
	ks, ok, err := storage.GetJSON[domain.PublicKeySet](ctx, c.store, storeKey(chainID))
	if errors.Is(err, fherrors.ErrCorruptRecord) {
		c.logger.Warn().Err(err).Uint64("chain_id", chainID).Msg("ignoring corrupt public key record")
		return nil, false, nil
	}
	if err != nil || !ok {
		return nil, false, err
	}
	c.mem.Add(chainID, ks)
	return ks, true, nil
}

// Put stores ks in both layers.
func (c *Cache) Put(ctx context.Context, ks *domain.PublicKeySet) error {
	if ks == nil || len(ks.PublicKey) == 0 {
		return fmt.Errorf("%w: empty key set", fherrors.ErrInvalidArgument)
	}
	if err := storage.SetJSON(ctx, c.store, storeKey(ks.ChainID), ks); err != nil {
		return err
	}
	c.mem.Add(ks.ChainID, ks)
	return nil
}

// Fetches returns how many network fetches were made.
func (c *Cache) Fetches() int64 {
	return c.fetches.Load()
}

// Purge drops the in-memory layer. Persisted entries are kept.
func (c *Cache) Purge() {
	c.mem.Purge()
}
