// Package session wires the FHE client components from configuration and
// exposes the end-to-end flows used by the CLI.
package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/fhekit/internal/authz"
	"github.com/mrz1836/fhekit/internal/chain"
	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/config"
	"github.com/mrz1836/fhekit/internal/decrypt"
	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/engine"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/instance"
	"github.com/mrz1836/fhekit/internal/keys"
	"github.com/mrz1836/fhekit/internal/relay"
	"github.com/mrz1836/fhekit/internal/sim"
	"github.com/mrz1836/fhekit/internal/storage"
)

// Options configures Open.
type Options struct {
	// Config is the loaded configuration. Required.
	Config *config.Config

	// Home is the fhekit data directory used for default store paths.
	Home string

	// Store replaces the configured storage backend when set.
	Store storage.Store

	// Provider replaces the configured chain provider when set.
	Provider chain.Provider

	Clock  clock.Clock
	Logger zerolog.Logger
}

// Session owns one process's engine loader, caches and resolver.
type Session struct {
	cfg       *config.Config
	store     storage.Store
	ownsStore bool
	provider  chain.Provider
	relay     *relay.Client
	loader    *engine.Loader
	keys      *keys.Cache
	network   *sim.Network
	resolver  *instance.Resolver
	authz     *authz.Manager
	executor  *decrypt.Executor
	logger    zerolog.Logger
}

// Open builds a Session from opts.
func Open(ctx context.Context, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.ErrConfigNil
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := opts.Logger.With().Str("component", "session").Logger()

	s := &Session{cfg: cfg, store: opts.Store, provider: opts.Provider, logger: logger}
	if s.store == nil {
		store, err := storage.Open(ctx, storage.Options{
			Backend:  cfg.Storage.Backend,
			Path:     cfg.StorePath(opts.Home),
			RedisURL: cfg.Storage.RedisURL,
		})
		if err != nil {
			return nil, errors.Wrap(err, "opening store")
		}
		s.store = store
		s.ownsStore = true
	}
	if s.provider == nil {
		s.provider = providerFor(cfg)
	}

	s.relay = relay.NewClient(cfg.Relay.URL, relay.WithTimeout(cfg.Relay.Timeout), relay.WithLogger(opts.Logger))
	s.loader = engine.NewLoader(bundleSource(cfg),
		engine.WithLoadTimeout(cfg.Engine.LoadTimeout),
		engine.WithClock(clk),
		engine.WithLogger(opts.Logger),
	)

	cache, err := keys.New(s.store, s.relay,
		keys.WithSize(cfg.Storage.KeyCacheSize),
		keys.WithClock(clk),
		keys.WithLogger(opts.Logger),
		keys.WithFetchTimeout(cfg.Relay.Timeout),
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.keys = cache

	s.network = sim.NewNetwork(s.store,
		sim.WithClock(clk),
		sim.WithLogger(opts.Logger),
		sim.WithVerifyingContract(cfg.Chain.DecryptionContract),
	)
	s.resolver = instance.NewResolver(instance.Config{
		Loader:            s.loader,
		Keys:              s.keys,
		Relay:             s.relay,
		Mocks:             s.network,
		MockChains:        cfg.Chain.MockChainIDs,
		VerifyingContract: cfg.Chain.DecryptionContract,
		Clock:             clk,
		Logger:            opts.Logger,
	})
	s.authz = authz.NewManager(s.store,
		authz.WithClock(clk),
		authz.WithLogger(opts.Logger),
		authz.WithDurationDays(cfg.Signature.DurationDays),
	)
	s.executor = decrypt.NewExecutor(decrypt.WithClock(clk), decrypt.WithLogger(opts.Logger))
	return s, nil
}

// providerFor returns an RPC provider when chain.rpc_url is set, a static
// one when only chain.chain_id is set, and nil otherwise.
func providerFor(cfg *config.Config) chain.Provider {
	switch {
	case cfg.Chain.RPCURL != "":
		return chain.NewRPC(cfg.Chain.RPCURL)
	case cfg.Chain.ChainID != 0:
		return chain.Static{Name: fmt.Sprintf("chain-%d", cfg.Chain.ChainID), Chain: cfg.Chain.ChainID}
	default:
		return nil
	}
}

// bundleSource returns the configured engine bundle source, or the built-in
// simulation bundle.
func bundleSource(cfg *config.Config) engine.Source {
	switch {
	case cfg.Engine.BundleURL != "":
		return engine.NewSource(cfg.Engine.BundleURL)
	case cfg.Engine.BundlePath != "":
		return engine.NewSource(cfg.Engine.BundlePath)
	default:
		return engine.StaticSource(sim.DefaultBundle())
	}
}

// Close releases the store if the session opened it and closes the provider.
func (s *Session) Close() error {
	if rpc, ok := s.provider.(*chain.RPC); ok {
		rpc.Close()
	}
	if s.ownsStore {
		return storage.Close(s.store)
	}
	return nil
}

// Store returns the session's persistent store.
func (s *Session) Store() storage.Store { return s.store }

// Resolver returns the instance resolver.
func (s *Session) Resolver() *instance.Resolver { return s.resolver }

// Signatures returns the decryption signature manager.
func (s *Session) Signatures() *authz.Manager { return s.authz }

// Instance resolves the instance for the configured provider and chain.
func (s *Session) Instance(ctx context.Context) (*instance.Instance, error) {
	res, err := s.resolver.Resolve(ctx, instance.Request{Provider: s.provider, ChainID: s.cfg.Chain.ChainID})
	if err != nil {
		return nil, err
	}
	if res.State != instance.StateReady {
		return nil, fmt.Errorf("%w: resolution ended %s", errors.ErrNotReady, res.State)
	}
	return res.Instance, nil
}

// Keys returns the public key set of the configured chain.
func (s *Session) Keys(ctx context.Context) (*domain.PublicKeySet, error) {
	inst, err := s.Instance(ctx)
	if err != nil {
		return nil, err
	}
	return inst.Keys(), nil
}

// Encrypt builds one encrypted input of values for contract and user.
func (s *Session) Encrypt(ctx context.Context, contract, user string, values []domain.ClearValue) (*domain.EncryptedInput, error) {
	inst, err := s.Instance(ctx)
	if err != nil {
		return nil, err
	}
	b, err := inst.CreateEncryptedInput(contract, user)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := b.Add(v); err != nil {
			return nil, err
		}
	}
	return b.Encrypt(ctx)
}

// Sign returns a decryption signature of signer over contracts, reusing a
// stored one when it is still valid.
func (s *Session) Sign(ctx context.Context, contracts []string, signer authz.Signer) (*domain.DecryptionSignature, error) {
	inst, err := s.Instance(ctx)
	if err != nil {
		return nil, err
	}
	return s.authz.LoadOrSign(ctx, inst, contracts, signer)
}

// InvalidateSignature removes the stored signature of user over contracts.
func (s *Session) InvalidateSignature(ctx context.Context, contracts []string, user string) error {
	inst, err := s.Instance(ctx)
	if err != nil {
		return err
	}
	return s.authz.Invalidate(ctx, inst, contracts, user)
}

// UserDecrypt obtains a signature covering exactly the contracts of requests
// and decrypts them.
func (s *Session) UserDecrypt(ctx context.Context, requests []domain.DecryptRequest, signer authz.Signer) (map[domain.Handle]domain.ClearValue, error) {
	if len(requests) == 0 {
		return nil, errors.ErrNoRequests
	}
	inst, err := s.Instance(ctx)
	if err != nil {
		return nil, err
	}
	contracts := make([]string, len(requests))
	for i, r := range requests {
		contracts[i] = r.ContractAddress
	}
	sig, err := s.authz.LoadOrSign(ctx, inst, contracts, signer)
	if err != nil {
		return nil, err
	}
	return s.executor.UserDecrypt(ctx, inst, requests, sig)
}

// PublicDecrypt decrypts publicly decryptable handles.
func (s *Session) PublicDecrypt(ctx context.Context, requests []domain.DecryptRequest) (map[domain.Handle]domain.ClearValue, error) {
	inst, err := s.Instance(ctx)
	if err != nil {
		return nil, err
	}
	return s.executor.PublicDecrypt(ctx, inst, requests)
}

// MarkPublic makes handles publicly decryptable on a simulated chain.
func (s *Session) MarkPublic(ctx context.Context, handles []domain.Handle) error {
	inst, err := s.Instance(ctx)
	if err != nil {
		return err
	}
	return inst.MarkPublic(ctx, handles)
}
