package sim

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/box"

	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/eip712"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/relay"
	"github.com/mrz1836/fhekit/internal/storage"
)

// proofSigLen is the coprocessor signature appended to every input proof.
const proofSigLen = 65

// networkRecord is the persisted key material of one simulated chain.
type networkRecord struct {
	ChainID       uint64        `json:"chain_id"`
	SealPublic    hexutil.Bytes `json:"seal_public"`
	SealPrivate   hexutil.Bytes `json:"seal_private"`
	SignerKey     hexutil.Bytes `json:"signer_key"`
	CreatedAt     time.Time     `json:"created_at"`
	SchemaVersion string        `json:"schema_version"`
}

// ledgerEntry is the cleartext and access list of one handle.
type ledgerEntry struct {
	Handle    domain.Handle `json:"handle"`
	Word      hexutil.Bytes `json:"word"`
	Contract  string        `json:"contract"`
	User      string        `json:"user"`
	Public    bool          `json:"public"`
	CreatedAt time.Time     `json:"created_at"`
}

// Option configures a Coprocessor or Network.
type Option func(*options)

type options struct {
	clock             clock.Clock
	logger            zerolog.Logger
	verifyingContract string
}

func defaultOptions() options {
	return options{
		clock:             clock.RealClock{},
		logger:            zerolog.Nop(),
		verifyingContract: constants.DefaultDecryptionContract,
	}
}

// WithClock sets the clock used for signature windows.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithVerifyingContract sets the EIP-712 verifying contract of user decrypt requests.
func WithVerifyingContract(addr string) Option {
	return func(o *options) { o.verifyingContract = addr }
}

// Coprocessor simulates the key holder, input verifier and decryption relay
// of one chain. Its network keys and ledger live in a storage.Store so a
// simulated chain survives restarts when the store is persistent.
type Coprocessor struct {
	chainID      uint64
	store        storage.Store
	opts         options
	logger       zerolog.Logger
	sealPub      [keyLen]byte
	sealPriv     [keyLen]byte
	signer       *ecdsa.PrivateKey
	keys         *domain.PublicKeySet
	ledgerMu     sync.Mutex
	networkKey   string
	handlePrefix string
}

var _ relay.API = (*Coprocessor)(nil)

// OpenCoprocessor loads the network keys of chainID from store, generating
// and persisting them on first use.
func OpenCoprocessor(ctx context.Context, store storage.Store, chainID uint64, opts ...Option) (*Coprocessor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	chain := strconv.FormatUint(chainID, 10)
	c := &Coprocessor{
		chainID:      chainID,
		store:        store,
		opts:         o,
		logger:       o.logger.With().Str("component", "sim").Uint64("chain_id", chainID).Logger(),
		networkKey:   constants.SimPrefix + chain + ":network",
		handlePrefix: constants.SimPrefix + chain + ":handle:",
	}

	rec, ok, err := storage.GetJSON[networkRecord](ctx, store, c.networkKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		rec, err = c.generate(ctx)
		if err != nil {
			return nil, err
		}
	}
	if err := c.install(rec); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coprocessor) generate(ctx context.Context) (*networkRecord, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate network key: %w", err)
	}
	signer, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate coprocessor signer: %w", err)
	}
	rec := &networkRecord{
		ChainID:       c.chainID,
		SealPublic:    pub[:],
		SealPrivate:   priv[:],
		SignerKey:     crypto.FromECDSA(signer),
		CreatedAt:     c.opts.clock.Now().UTC(),
		SchemaVersion: constants.RecordSchemaVersion,
	}
	if err := storage.SetJSON(ctx, c.store, c.networkKey, rec); err != nil {
		return nil, err
	}
	c.logger.Info().Msg("generated simulated network keys")
	return rec, nil
}

func (c *Coprocessor) install(rec *networkRecord) error {
	if len(rec.SealPublic) != keyLen || len(rec.SealPrivate) != keyLen {
		return fmt.Errorf("%w: %s", errors.ErrCorruptRecord, c.networkKey)
	}
	signer, err := crypto.ToECDSA(rec.SignerKey)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrCorruptRecord, c.networkKey, err)
	}
	copy(c.sealPub[:], rec.SealPublic)
	copy(c.sealPriv[:], rec.SealPrivate)
	c.signer = signer
	c.keys = &domain.PublicKeySet{
		ChainID:       c.chainID,
		KeyID:         domain.KeyIDFor(rec.SealPublic),
		PublicKey:     append([]byte(nil), rec.SealPublic...),
		FetchedAt:     rec.CreatedAt,
		SchemaVersion: constants.RecordSchemaVersion,
	}
	return nil
}

// ChainID returns the simulated chain id.
func (c *Coprocessor) ChainID() uint64 { return c.chainID }

// KeySet returns the chain's public key set without any network round trip.
func (c *Coprocessor) KeySet() *domain.PublicKeySet {
	ks := *c.keys
	return &ks
}

// SignerAddress returns the address that signs input proofs.
func (c *Coprocessor) SignerAddress() common.Address {
	return crypto.PubkeyToAddress(c.signer.PublicKey)
}

func (c *Coprocessor) checkChain(chainID uint64) error {
	if chainID != c.chainID {
		return fmt.Errorf("%w: %d", errors.ErrUnknownChain, chainID)
	}
	return nil
}

// Keys implements relay.API.
func (c *Coprocessor) Keys(_ context.Context, chainID uint64) (*relay.KeyResponse, error) {
	if err := c.checkChain(chainID); err != nil {
		return nil, err
	}
	return &relay.KeyResponse{
		ChainID:   c.chainID,
		KeyID:     c.keys.KeyID,
		PublicKey: c.keys.PublicKey,
	}, nil
}

// InputProof implements relay.API. The batch is opened with the network key,
// checked against the input limits, and recorded in the ledger with the
// submitting contract and user on its access list.
func (c *Coprocessor) InputProof(ctx context.Context, req *relay.InputProofRequest) (*relay.InputProofResponse, error) {
	if err := c.checkChain(req.ChainID); err != nil {
		return nil, err
	}
	contract, err := domain.NormalizeAddress(req.ContractAddress)
	if err != nil {
		return nil, err
	}
	user, err := domain.NormalizeAddress(req.UserAddress)
	if err != nil {
		return nil, err
	}

	values, err := openBatch(req.Ciphertext, &c.sealPub, &c.sealPriv)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.ErrEmptyInput
	}
	bits := 0
	for _, v := range values {
		bits += v.Type.Bits()
	}
	if len(values) > constants.MaxInputValues || bits > constants.MaxInputBits {
		return nil, fmt.Errorf("%w: %d values, %d bits", errors.ErrInputTooLarge, len(values), bits)
	}

	digest := crypto.Keccak256(req.Ciphertext)
	now := c.opts.clock.Now().UTC()
	handles := make([]domain.Handle, len(values))
	for i, v := range values {
		h := domain.NewHandle(digest, uint8(i), c.chainID, v.Type) //nolint:gosec // bounded by MaxInputValues
		handles[i] = h
		entry := ledgerEntry{Handle: h, Word: v.Word(), Contract: contract, User: user, CreatedAt: now}
		if err := storage.SetJSON(ctx, c.store, c.handlePrefix+h.Hex(), entry); err != nil {
			return nil, err
		}
	}

	proof, err := c.signProof(handles, contract, user)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Int("values", len(values)).Str("contract", contract).Msg("registered encrypted input")
	return &relay.InputProofResponse{Handles: handles, InputProof: proof}, nil
}

func proofDigest(handles []domain.Handle, contract, user string, chainID uint64) []byte {
	parts := make([][]byte, 0, len(handles)+3)
	for i := range handles {
		parts = append(parts, handles[i][:])
	}
	chain := make([]byte, 8)
	binary.BigEndian.PutUint64(chain, chainID)
	parts = append(parts, common.HexToAddress(contract).Bytes(), common.HexToAddress(user).Bytes(), chain)
	return crypto.Keccak256(parts...)
}

// signProof lays out the proof as count(1) || handles(32 each) || signature(65).
func (c *Coprocessor) signProof(handles []domain.Handle, contract, user string) ([]byte, error) {
	sig, err := crypto.Sign(proofDigest(handles, contract, user, c.chainID), c.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign input proof: %w", err)
	}
	proof := make([]byte, 0, 1+len(handles)*constants.HandleLen+proofSigLen)
	proof = append(proof, byte(len(handles)))
	for i := range handles {
		proof = append(proof, handles[i][:]...)
	}
	return append(proof, sig...), nil
}

// VerifyInputProof checks a proof the way the on-chain verifier would:
// the handles must match and the signature must come from this coprocessor.
func (c *Coprocessor) VerifyInputProof(handles []domain.Handle, contract, user string, proof []byte) error {
	want := 1 + len(handles)*constants.HandleLen + proofSigLen
	if len(proof) != want || int(proof[0]) != len(handles)%256 {
		return fmt.Errorf("%w: malformed input proof", errors.ErrInvalidSignature)
	}
	for i := range handles {
		off := 1 + i*constants.HandleLen
		if !bytes.Equal(proof[off:off+constants.HandleLen], handles[i][:]) {
			return fmt.Errorf("%w: handle %d does not match proof", errors.ErrInvalidSignature, i)
		}
	}
	sig := proof[len(proof)-proofSigLen:]
	pub, err := crypto.SigToPub(proofDigest(handles, contract, user, c.chainID), sig)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != c.SignerAddress() {
		return fmt.Errorf("%w: proof not signed by coprocessor", errors.ErrInvalidSignature)
	}
	return nil
}

func (c *Coprocessor) entry(ctx context.Context, h domain.Handle) (*ledgerEntry, error) {
	e, ok, err := storage.GetJSON[ledgerEntry](ctx, c.store, c.handlePrefix+h.Hex())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownHandle, h.Hex())
	}
	return e, nil
}

// UserDecrypt implements relay.API. The wallet signature, validity window,
// contract scope and access list are all checked before any cleartext is
// sealed to the request's public key.
func (c *Coprocessor) UserDecrypt(ctx context.Context, req *relay.UserDecryptRequest) (*relay.UserDecryptResponse, error) {
	if err := c.checkChain(req.ChainID); err != nil {
		return nil, err
	}
	if len(req.Requests) == 0 {
		return nil, errors.ErrNoRequests
	}
	user, err := domain.NormalizeAddress(req.UserAddress)
	if err != nil {
		return nil, err
	}
	if len(req.PublicKey) != keyLen {
		return nil, fmt.Errorf("%w: public key is %d bytes", errors.ErrInvalidArgument, len(req.PublicKey))
	}

	payload := eip712.UserDecrypt{
		ChainID:           c.chainID,
		VerifyingContract: c.opts.verifyingContract,
		PublicKey:         req.PublicKey,
		ContractAddresses: req.ContractAddresses,
		StartTimestamp:    req.StartTimestamp,
		DurationDays:      req.DurationDays,
	}
	signer, err := eip712.Recover(payload.TypedData(), req.Signature)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(signer.Hex(), user) {
		return nil, fmt.Errorf("%w: signed by %s", errors.ErrInvalidSignature, signer.Hex())
	}

	sig := domain.DecryptionSignature{
		StartTimestamp:    req.StartTimestamp,
		DurationDays:      req.DurationDays,
		ContractAddresses: req.ContractAddresses,
	}
	if !sig.IsValidAt(c.opts.clock.Now()) {
		return nil, errors.ErrSignatureExpired
	}
	scope, err := domain.NormalizeAddresses(req.ContractAddresses)
	if err != nil {
		return nil, err
	}
	sig.ContractAddresses = scope

	var pub [keyLen]byte
	copy(pub[:], req.PublicKey)

	results := make(map[domain.Handle]hexutil.Bytes, len(req.Requests))
	for _, r := range req.Requests {
		if !sig.Covers(r.ContractAddress) {
			return nil, fmt.Errorf("%w: %s", errors.ErrScopeMismatch, r.ContractAddress)
		}
		e, err := c.entry(ctx, r.Handle)
		if err != nil {
			return nil, err
		}
		contract, _ := domain.NormalizeAddress(r.ContractAddress)
		if e.Contract != contract || e.User != user {
			return nil, fmt.Errorf("%w: %s", errors.ErrAccessDenied, r.Handle.Hex())
		}
		sealed, err := box.SealAnonymous(nil, e.Word, &pub, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to seal cleartext: %w", err)
		}
		results[r.Handle] = sealed
	}
	return &relay.UserDecryptResponse{Results: results}, nil
}

// PublicDecrypt implements relay.API. Only handles marked public are disclosed.
func (c *Coprocessor) PublicDecrypt(ctx context.Context, req *relay.PublicDecryptRequest) (*relay.PublicDecryptResponse, error) {
	if err := c.checkChain(req.ChainID); err != nil {
		return nil, err
	}
	if len(req.Requests) == 0 {
		return nil, errors.ErrNoRequests
	}
	results := make(map[domain.Handle]hexutil.Bytes, len(req.Requests))
	for _, r := range req.Requests {
		e, err := c.entry(ctx, r.Handle)
		if err != nil {
			return nil, err
		}
		if !e.Public {
			return nil, fmt.Errorf("%w: %s is not publicly decryptable", errors.ErrAccessDenied, r.Handle.Hex())
		}
		results[r.Handle] = e.Word
	}
	return &relay.PublicDecryptResponse{Results: results}, nil
}

// MarkPublic makes handles publicly decryptable.
func (c *Coprocessor) MarkPublic(ctx context.Context, handles []domain.Handle) error {
	c.ledgerMu.Lock()
	defer c.ledgerMu.Unlock()
	for _, h := range handles {
		e, err := c.entry(ctx, h)
		if err != nil {
			return err
		}
		e.Public = true
		if err := storage.SetJSON(ctx, c.store, c.handlePrefix+h.Hex(), e); err != nil {
			return err
		}
	}
	return nil
}
