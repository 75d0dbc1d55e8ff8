package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/ctxutil"
	"github.com/mrz1836/fhekit/internal/errors"
)

const loadKey = "bundle"

// Loader loads the engine bundle at most once successfully per process.
// Concurrent callers share one load; a failed load is not cached and the
// next call retries.
type Loader struct {
	source  Source
	timeout time.Duration
	clock   clock.Clock
	logger  zerolog.Logger

	group  singleflight.Group
	mu     sync.Mutex
	gen    uint64
	bundle atomic.Pointer[Bundle]
	loads  atomic.Int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoadTimeout bounds the shared load.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithClock sets the clock used to stamp loaded bundles.
func WithClock(c clock.Clock) LoaderOption {
	return func(l *Loader) {
		l.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader reading manifests from source.
func NewLoader(source Source, opts ...LoaderOption) *Loader {
	l := &Loader{
		source:  source,
		timeout: constants.DefaultEngineLoadTimeout,
		clock:   clock.RealClock{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "engine").Logger()
	return l
}

// Load returns the process bundle, loading it on first use. The load runs on
// a context detached from the caller and bounded by the load timeout, so a
// caller that stops waiting does not abort the load for others.
func (l *Loader) Load(ctx context.Context) (*Bundle, error) {
	if b := l.bundle.Load(); b != nil {
		return b, nil
	}

	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()

	ch := l.group.DoChan(loadKey, func() (any, error) {
		if b := l.bundle.Load(); b != nil {
			return b, nil
		}
		lctx, cancel := ctxutil.Detached(ctx, l.timeout)
		defer cancel()

		b, err := l.load(lctx)
		if err != nil {
			l.logger.Warn().Err(err).Str("source", l.source.String()).Msg("engine bundle load failed")
			return nil, err
		}

		l.mu.Lock()
		if l.gen == gen {
			l.bundle.Store(b)
		}
		l.mu.Unlock()

		l.logger.Info().
			Str("format", b.Format).
			Str("version", b.Version).
			Str("source", l.source.String()).
			Msg("engine bundle loaded")
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrEngineLoadFailed, res.Err)
		}
		return res.Val.(*Bundle), nil //nolint:forcetypeassert // only *Bundle is returned
	}
}

func (l *Loader) load(ctx context.Context) (*Bundle, error) {
	l.loads.Add(1)

	data, err := l.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	eng, err := open(m.Format, m.Payload)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Format:   m.Format,
		Version:  m.Version,
		Digest:   m.SHA256,
		Engine:   eng,
		LoadedAt: l.clock.Now(),
	}, nil
}

// Loaded returns the cached bundle without loading.
func (l *Loader) Loaded() *Bundle {
	return l.bundle.Load()
}

// Loads returns how many times the source was fetched.
func (l *Loader) Loads() int64 {
	return l.loads.Load()
}

// Reset drops the cached bundle. A load in flight when Reset is called does
// not publish its result.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.bundle.Store(nil)
	l.group.Forget(loadKey)
}
