// Package authz issues, caches and validates decryption signatures: wallet
// signed, time-bounded capabilities scoped to an exact set of contracts.
package authz

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/box"

	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/eip712"
	fherrors "github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/flight"
	"github.com/mrz1836/fhekit/internal/storage"
)

// Target is the instance a signature is issued for. *instance.Instance
// satisfies it.
type Target interface {
	ChainID() uint64
	KeyID() string
	VerifyingContract() string
}

// Signer signs EIP-712 payloads on behalf of a wallet.
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for start timestamps and validity checks.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithDurationDays sets the validity period of new signatures.
func WithDurationDays(days int64) Option {
	return func(m *Manager) {
		if days > 0 {
			m.durationDays = days
		}
	}
}

// Manager reuses a stored signature while it is valid and asks the wallet
// for a new one otherwise. Each entry covers one exact contract set.
type Manager struct {
	store        storage.Store
	clock        clock.Clock
	logger       zerolog.Logger
	durationDays int64
	flight       flight.Group[string, *domain.DecryptionSignature]
	prompts      atomic.Int64
}

// NewManager returns a Manager persisting signatures in store.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		clock:        clock.RealClock{},
		logger:       zerolog.Nop(),
		durationDays: constants.SignatureDurationDays,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "authz").Logger()
	return m
}

// CacheKey identifies the signature of user over contracts for one chain key.
// contracts must already be normalized.
func CacheKey(user string, contracts []string, keyID string) string {
	digest := crypto.Keccak256(
		[]byte(strings.ToLower(user)), []byte{0},
		[]byte(strings.Join(contracts, ",")), []byte{0},
		[]byte(keyID),
	)
	return hexutil.Encode(digest)
}

func storeKey(cacheKey string) string {
	return constants.SignaturePrefix + cacheKey
}

type scope struct {
	user      string
	contracts []string
	key       string
}

func newScope(target Target, contracts []string, user string) (scope, error) {
	normalized, err := domain.NormalizeAddresses(contracts)
	if err != nil {
		return scope{}, err
	}
	if len(normalized) == 0 {
		return scope{}, fherrors.ErrNoContracts
	}
	u, err := domain.NormalizeAddress(user)
	if err != nil {
		return scope{}, fmt.Errorf("user address: %w", err)
	}
	return scope{user: u, contracts: normalized, key: CacheKey(u, normalized, target.KeyID())}, nil
}

// LoadOrSign returns a valid signature of signer over contracts for target.
// A stored, unexpired entry for the exact contract set is returned without
// any wallet interaction. An expired entry is removed and re-signed.
// Concurrent calls for the same entry share one signing prompt.
func (m *Manager) LoadOrSign(ctx context.Context, target Target, contracts []string, signer Signer) (*domain.DecryptionSignature, error) {
	sc, err := newScope(target, contracts, signer.Address().Hex())
	if err != nil {
		return nil, err
	}

	if sig, ok, err := m.lookup(ctx, target, sc); err != nil || ok {
		return sig, err
	}

	sig, _, err := m.flight.Do(ctx, sc.key, func(fctx context.Context) (*domain.DecryptionSignature, error) {
		// A caller that finished signing just before this call started may
		// already have stored the entry.
		if sig, ok, err := m.lookup(fctx, target, sc); err != nil || ok {
			return sig, err
		}
		return m.sign(fctx, target, sc, signer)
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// Lookup returns the stored valid signature for the scope, if any. It never
// prompts the wallet.
func (m *Manager) Lookup(ctx context.Context, target Target, contracts []string, user string) (*domain.DecryptionSignature, bool, error) {
	sc, err := newScope(target, contracts, user)
	if err != nil {
		return nil, false, err
	}
	return m.lookup(ctx, target, sc)
}

// Invalidate removes the stored signature for the scope.
func (m *Manager) Invalidate(ctx context.Context, target Target, contracts []string, user string) error {
	sc, err := newScope(target, contracts, user)
	if err != nil {
		return err
	}
	if err := storage.Remove(ctx, m.store, storeKey(sc.key)); err != nil {
		return fherrors.Wrap(err, "invalidating decryption signature")
	}
	m.logger.Info().Str("user", sc.user).Strs("contracts", sc.contracts).Msg("decryption signature invalidated")
	return nil
}

// Prompts returns how many times a wallet was asked to sign.
func (m *Manager) Prompts() int64 {
	return m.prompts.Load()
}

func (m *Manager) lookup(ctx context.Context, target Target, sc scope) (*domain.DecryptionSignature, bool, error) {
	key := storeKey(sc.key)
	sig, ok, err := storage.GetJSON[domain.DecryptionSignature](ctx, m.store, key)
	switch {
	case errors.Is(err, fherrors.ErrCorruptRecord):
		m.logger.Warn().Err(err).Msg("discarding unreadable decryption signature")
		return nil, false, storage.Remove(ctx, m.store, key)
	case err != nil:
		return nil, false, err
	case !ok:
		return nil, false, nil
	}

	if sig.KeyID != target.KeyID() || sig.ChainID != target.ChainID() || sig.UserAddress != sc.user {
		return nil, false, nil
	}
	if !sig.IsValidAt(m.clock.Now()) {
		m.logger.Debug().
			Str("user", sc.user).
			Int64("end_timestamp", sig.EndTimestamp()).
			Msg("removing expired decryption signature")
		return nil, false, storage.Remove(ctx, m.store, key)
	}
	return sig, true, nil
}

func (m *Manager) sign(ctx context.Context, target Target, sc scope, signer Signer) (*domain.DecryptionSignature, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral keypair: %w", err)
	}

	start := m.clock.Now().Unix()
	payload := eip712.UserDecrypt{
		ChainID:           target.ChainID(),
		VerifyingContract: target.VerifyingContract(),
		PublicKey:         pub[:],
		ContractAddresses: sc.contracts,
		StartTimestamp:    start,
		DurationDays:      m.durationDays,
	}
	td := payload.TypedData()

	m.prompts.Add(1)
	m.logger.Debug().Str("user", sc.user).Strs("contracts", sc.contracts).Msg("requesting wallet signature")
	raw, err := signer.SignTypedData(ctx, td)
	if err != nil {
		return nil, fherrors.Wrap(err, "signing decryption request")
	}
	signedBy, err := eip712.Recover(td, raw)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(signedBy.Hex(), sc.user) {
		return nil, fmt.Errorf("%w: signed by %s, expected %s", fherrors.ErrInvalidSignature, signedBy.Hex(), sc.user)
	}

	sig := &domain.DecryptionSignature{
		PublicKey:         pub[:],
		PrivateKey:        priv[:],
		Signature:         raw,
		ContractAddresses: sc.contracts,
		UserAddress:       sc.user,
		StartTimestamp:    start,
		DurationDays:      m.durationDays,
		KeyID:             target.KeyID(),
		ChainID:           target.ChainID(),
		SchemaVersion:     constants.RecordSchemaVersion,
	}
	sig.ExpiresAt = time.Unix(sig.EndTimestamp(), 0).UTC()

	if err := storage.SetJSON(ctx, m.store, storeKey(sc.key), sig); err != nil {
		return nil, fherrors.Wrap(err, "storing decryption signature")
	}
	m.logger.Info().
		Str("user", sc.user).
		Strs("contracts", sc.contracts).
		Time("expires_at", sig.ExpiresAt).
		Msg("decryption signature issued")
	return sig, nil
}
