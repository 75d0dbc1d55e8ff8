package instance

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/fhekit/internal/chain"
	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/engine"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/flight"
	"github.com/mrz1836/fhekit/internal/relay"
	"github.com/mrz1836/fhekit/internal/sim"
)

// State is the resolver's position in its lifecycle.
type State int

// Resolver states. Superseded is only reported to callers whose attempt was
// replaced; the resolver itself moves on to the newer attempt.
const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
	StateSuperseded
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateSuperseded:
		return "superseded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Loader loads the engine bundle. *engine.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context) (*engine.Bundle, error)
}

// KeySource returns chain public keys. *keys.Cache satisfies it.
type KeySource interface {
	Get(ctx context.Context, chainID uint64) (*domain.PublicKeySet, error)
}

// MockNetwork opens simulated coprocessors. *sim.Network satisfies it.
type MockNetwork interface {
	Coprocessor(ctx context.Context, chainID uint64) (*sim.Coprocessor, error)
}

// Config wires a Resolver. Loader, Keys and Relay serve production chains;
// Mocks serves the chains listed in MockChains.
type Config struct {
	Loader            Loader
	Keys              KeySource
	Relay             relay.API
	Mocks             MockNetwork
	MockChains        []uint64
	VerifyingContract string
	Clock             clock.Clock
	Logger            zerolog.Logger
}

// Request names what to resolve. A zero ChainID is detected through the
// provider. MockChains extends the configured mock allow-list for this call.
type Request struct {
	Provider   chain.Provider
	ChainID    uint64
	MockChains []uint64
}

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	State    State
	Instance *Instance
}

type attemptKey struct {
	provider string
	chainID  uint64
	mock     bool
}

// Resolver publishes at most one Instance at a time. Resolves with the same
// parameters share one attempt; a resolve with other parameters supersedes
// the attempt in flight.
type Resolver struct {
	cfg    Config
	mocks  map[uint64]bool
	flight flight.Group[attemptKey, *Instance]

	mu          sync.Mutex
	gen         uint64
	state       State
	loading     bool
	loadingKey  attemptKey
	instance    *Instance
	instanceKey attemptKey
}

// NewResolver validates cfg and returns an idle Resolver.
func NewResolver(cfg Config) *Resolver {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.VerifyingContract == "" {
		cfg.VerifyingContract = constants.DefaultDecryptionContract
	}
	mocks := make(map[uint64]bool, len(cfg.MockChains))
	for _, id := range cfg.MockChains {
		mocks[id] = true
	}
	return &Resolver{cfg: cfg, mocks: mocks}
}

func (r *Resolver) isMock(chainID uint64, extra []uint64) bool {
	if r.mocks[chainID] {
		return true
	}
	for _, id := range extra {
		if id == chainID {
			return true
		}
	}
	return false
}

// Resolve returns a ready Instance for req. When a later Resolve with other
// parameters replaces this attempt, the result is StateSuperseded with a nil
// error and no Instance.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	if req.Provider == nil {
		r.setState(StateError)
		return &Resolution{State: StateError}, errors.ErrNoProvider
	}

	chainID := req.ChainID
	if chainID == 0 {
		id, err := req.Provider.ChainID(ctx)
		if err != nil {
			return &Resolution{State: StateError}, errors.Wrap(err, "resolving instance")
		}
		chainID = id
	}
	key := attemptKey{provider: req.Provider.ID(), chainID: chainID, mock: r.isMock(chainID, req.MockChains)}

	r.mu.Lock()
	if r.loading && r.loadingKey != key {
		r.flight.Cancel(r.loadingKey)
		r.loading = false
		r.gen++
		r.cfg.Logger.Debug().
			Uint64("superseded_chain_id", r.loadingKey.chainID).
			Uint64("chain_id", chainID).
			Msg("superseding instance resolution")
	}
	if inst := r.instance; inst != nil && r.instanceKey == key {
		r.state = StateReady
		r.mu.Unlock()
		return &Resolution{State: StateReady, Instance: inst}, nil
	}
	if !r.loading {
		r.loading = true
		r.loadingKey = key
		r.state = StateLoading
	}
	gen := r.gen
	r.mu.Unlock()

	inst, _, err := r.flight.Do(ctx, key, func(fctx context.Context) (*Instance, error) {
		return r.attempt(fctx, gen, key)
	})

	r.mu.Lock()
	superseded := r.gen != gen
	r.mu.Unlock()
	switch {
	case superseded:
		return &Resolution{State: StateSuperseded}, nil
	case err != nil:
		return &Resolution{State: StateError}, err
	default:
		return &Resolution{State: StateReady, Instance: inst}, nil
	}
}

// attempt builds an instance and publishes it if no newer resolve has
// started in the meantime. A run whose context was cancelled never publishes
// and never touches the state of a newer run for the same key.
func (r *Resolver) attempt(ctx context.Context, gen uint64, key attemptKey) (*Instance, error) {
	inst, err := r.build(ctx, key)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return nil, fmt.Errorf("resolution of chain %d superseded: %w", key.chainID, context.Canceled)
	}
	if cerr := ctx.Err(); cerr != nil {
		// Every waiter left. A later identical resolve may already own a
		// fresh call for key; only an abandoned key goes back to idle.
		if r.loadingKey == key && !r.flight.InFlight(key) {
			r.loading = false
			r.state = r.settled()
		}
		r.cfg.Logger.Debug().Uint64("chain_id", key.chainID).Msg("abandoned instance resolution discarded")
		if err == nil {
			err = cerr
		}
		return nil, err
	}
	r.loading = false
	if err != nil {
		r.state = StateError
		r.cfg.Logger.Warn().Err(err).Uint64("chain_id", key.chainID).Msg("instance resolution failed")
		return nil, err
	}
	if old := r.instance; old != nil {
		old.retire()
	}
	r.instance = inst
	r.instanceKey = key
	r.state = StateReady
	r.cfg.Logger.Info().
		Uint64("chain_id", key.chainID).
		Str("kind", inst.kind.String()).
		Str("key_id", inst.KeyID()).
		Msg("instance ready")
	return inst, nil
}

func (r *Resolver) build(ctx context.Context, key attemptKey) (*Instance, error) {
	logger := r.cfg.Logger.With().
		Str("component", "instance").
		Uint64("chain_id", key.chainID).
		Logger()

	if key.mock {
		if r.cfg.Mocks == nil {
			return nil, fmt.Errorf("%w: no mock network for chain %d", errors.ErrInvalidArgument, key.chainID)
		}
		coproc, err := r.cfg.Mocks.Coprocessor(ctx, key.chainID)
		if err != nil {
			return nil, errors.Wrapf(err, "opening mock coprocessor for chain %d", key.chainID)
		}
		return &Instance{
			kind:              KindMock,
			providerID:        key.provider,
			keys:              coproc.KeySet(),
			createdAt:         r.cfg.Clock.Now().UTC(),
			verifyingContract: r.cfg.VerifyingContract,
			sealer:            sim.NewEngine(),
			backend:           coproc,
			logger:            logger,
		}, nil
	}

	if r.cfg.Loader == nil || r.cfg.Keys == nil || r.cfg.Relay == nil {
		return nil, fmt.Errorf("%w: production resolution needs a loader, key source and relay", errors.ErrInvalidArgument)
	}
	var (
		bundle *engine.Bundle
		keys   *domain.PublicKeySet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := r.cfg.Loader.Load(gctx)
		bundle = b
		return err
	})
	g.Go(func() error {
		k, err := r.cfg.Keys.Get(gctx, key.chainID)
		keys = k
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Instance{
		kind:              KindProduction,
		providerID:        key.provider,
		keys:              keys,
		createdAt:         r.cfg.Clock.Now().UTC(),
		verifyingContract: r.cfg.VerifyingContract,
		sealer:            bundle.Engine,
		backend:           r.cfg.Relay,
		logger:            logger,
	}, nil
}

// settled is the state to fall back to when an attempt ends without a
// result. Caller must hold r.mu.
func (r *Resolver) settled() State {
	if r.instance != nil {
		return StateReady
	}
	return StateIdle
}

func (r *Resolver) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// State returns the resolver's current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Current returns the published instance, or nil.
func (r *Resolver) Current() *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instance
}

// Reset cancels any attempt in flight and retires the published instance.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loading {
		r.flight.Cancel(r.loadingKey)
		r.loading = false
	}
	r.gen++
	if r.instance != nil {
		r.instance.retire()
		r.instance = nil
	}
	r.state = StateIdle
}
