// Package sim is a local stand-in for the FHE engine and coprocessor. It is
// used for mock chains and by the relay simulator. Ciphertexts are
// RLP-encoded cleartext words sealed to the network's curve25519 key; this
// gives the same data flow as the production engine without homomorphic
// evaluation.
package sim

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/nacl/box"

	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/engine"
	"github.com/mrz1836/fhekit/internal/errors"
)

// Bundle identification.
const (
	Format  = "sim"
	Version = "1.0.0"
)

// keyLen is the curve25519 key size.
const keyLen = 32

func init() { //nolint:gochecknoinits // engine formats self-register
	engine.Register(Format, Open)
}

// bundleParams is the payload of a sim bundle.
type bundleParams struct {
	Scheme  string `json:"scheme"`
	Version string `json:"version"`
}

// DefaultBundle returns the manifest of the built-in sim engine.
func DefaultBundle() []byte {
	payload, _ := json.Marshal(bundleParams{Scheme: Format, Version: Version}) //nolint:errchkjson // static struct
	data, _ := engine.NewManifest(Format, Version, payload).Encode()           //nolint:errchkjson // static struct
	return data
}

// Open is the engine.Opener of the sim format.
func Open(payload []byte) (engine.Engine, error) {
	var p bundleParams
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode sim bundle: %w", err)
	}
	if p.Scheme != Format {
		return nil, fmt.Errorf("%w: sim bundle declares scheme %q", errors.ErrUnknownEngineFormat, p.Scheme)
	}
	return NewEngine(), nil
}

// Engine seals batches for the sim coprocessor.
type Engine struct{}

// NewEngine returns a sim Engine.
func NewEngine() *Engine {
	return &Engine{}
}

var _ engine.Engine = (*Engine)(nil)

// Name implements engine.Engine.
func (e *Engine) Name() string { return Format }

// sealedValue is one entry of a batch.
type sealedValue struct {
	Type uint8
	Word []byte
}

// Seal implements engine.Engine.
func (e *Engine) Seal(keys *domain.PublicKeySet, values []domain.ClearValue) ([]byte, error) {
	if keys == nil || len(keys.PublicKey) != keyLen {
		return nil, fmt.Errorf("%w: sim engine needs a %d-byte public key", errors.ErrKeyFetchFailed, keyLen)
	}
	batch := make([]sealedValue, len(values))
	for i, v := range values {
		batch[i] = sealedValue{Type: uint8(v.Type), Word: v.Word()}
	}
	msg, err := rlp.EncodeToBytes(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	var pub [keyLen]byte
	copy(pub[:], keys.PublicKey)
	return box.SealAnonymous(nil, msg, &pub, rand.Reader)
}

// openBatch reverses Seal with the network keypair.
func openBatch(ciphertext []byte, pub, priv *[keyLen]byte) ([]domain.ClearValue, error) {
	msg, ok := box.OpenAnonymous(nil, ciphertext, pub, priv)
	if !ok {
		return nil, fmt.Errorf("%w: ciphertext does not open under the network key", errors.ErrInvalidArgument)
	}
	var batch []sealedValue
	if err := rlp.DecodeBytes(msg, &batch); err != nil {
		return nil, fmt.Errorf("%w: malformed batch: %w", errors.ErrInvalidArgument, err)
	}
	out := make([]domain.ClearValue, len(batch))
	for i, sv := range batch {
		t := domain.ValueType(sv.Type)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown type tag %d", errors.ErrInvalidArgument, sv.Type)
		}
		v, err := domain.ClearValueFromWord(t, sv.Word)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
