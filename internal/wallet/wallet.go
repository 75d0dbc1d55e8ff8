// Package wallet provides the EIP-712 signers used to authorize decryption:
// a local secp256k1 key kept in a file, and a wrapper that asks the user to
// confirm every signing request.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/fhekit/internal/eip712"
	"github.com/mrz1836/fhekit/internal/errors"
)

// Signer signs EIP-712 payloads for one address.
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error)
}

// KeySigner signs with an in-process secp256k1 key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

var _ Signer = (*KeySigner)(nil)

// NewKeySigner wraps key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// GenerateKeySigner returns a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet key: %w", err)
	}
	return NewKeySigner(key), nil
}

// Address returns the signer's address.
func (s *KeySigner) Address() common.Address { return s.addr }

// SignTypedData signs the EIP-712 digest of td. The recovery id is returned
// in the 27/28 convention wallets use.
func (s *KeySigner) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := eip712.Hash(td)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Load reads a hex encoded private key from path.
func Load(path string) (*KeySigner, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrWalletKeyInvalid, err)
	}
	raw := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrWalletKeyInvalid, path, err)
	}
	return NewKeySigner(key), nil
}

// LoadOrCreate loads the key at path, generating and saving a new one with
// mode 0600 when the file does not exist. created reports which happened.
func LoadOrCreate(path string) (signer *KeySigner, created bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		signer, err = Load(path)
		return signer, false, err
	} else if !os.IsNotExist(statErr) {
		return nil, false, fmt.Errorf("%w: %w", errors.ErrWalletKeyInvalid, statErr)
	}

	signer, err = GenerateKeySigner()
	if err != nil {
		return nil, false, err
	}
	if err := save(path, signer.key); err != nil {
		return nil, false, err
	}
	return signer, true, nil
}

func save(path string, key *ecdsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create wallet directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path comes from configuration
	if err != nil {
		return fmt.Errorf("failed to create wallet key file: %w", err)
	}
	if _, err := f.WriteString(hexutil.Encode(crypto.FromECDSA(key)) + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write wallet key file: %w", err)
	}
	return f.Close()
}
