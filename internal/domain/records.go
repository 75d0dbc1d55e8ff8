package domain

import (
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mrz1836/fhekit/internal/constants"
)

// PublicKeySet is the FHE public key material of one chain.
type PublicKeySet struct {
	// ChainID is the chain the key belongs to.
	ChainID uint64 `json:"chain_id"`

	// KeyID identifies the key. Signatures are bound to it.
	KeyID string `json:"key_id"`

	// PublicKey is the raw key material handed to the engine.
	PublicKey hexutil.Bytes `json:"public_key"`

	// FetchedAt is when the key was first fetched from the relay.
	FetchedAt time.Time `json:"fetched_at"`

	SchemaVersion string `json:"schema_version"`
}

// KeyIDFor returns the hex keccak256 of a public key, used when the relay
// does not supply an id.
func KeyIDFor(publicKey []byte) string {
	return crypto.Keccak256Hash(publicKey).Hex()
}

// EncryptedInput is the result of encrypting a batch: one handle per value,
// in insertion order, and one proof covering the whole batch.
type EncryptedInput struct {
	Handles    []Handle      `json:"handles"`
	InputProof hexutil.Bytes `json:"input_proof"`
}

// DecryptRequest names a handle and the contract it is decrypted against.
type DecryptRequest struct {
	Handle          Handle `json:"handle"`
	ContractAddress string `json:"contract_address"`
}

// DecryptionSignature is a time-bounded capability letting UserAddress
// decrypt handles owned by ContractAddresses. The ephemeral keypair receives
// the re-encrypted cleartexts.
//
// Example JSON representation:
//
//	{
//	    "public_key": "0x5c1f...",
//	    "private_key": "0x9a02...",
//	    "signature": "0x4e7b...1c",
//	    "contract_addresses": ["0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"],
//	    "user_address": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
//	    "start_timestamp": 1760745600,
//	    "duration_days": 365,
//	    "key_id": "0x7d3c...",
//	    "chain_id": 31337,
//	    "expires_at": "2027-10-18T00:00:00Z",
//	    "schema_version": "1.0"
//	}
type DecryptionSignature struct {
	// PublicKey is the ephemeral curve25519 public key embedded in the signed payload.
	PublicKey hexutil.Bytes `json:"public_key"`

	// PrivateKey is the ephemeral curve25519 private key. It never leaves the client.
	PrivateKey hexutil.Bytes `json:"private_key"`

	// Signature is the wallet's EIP-712 signature.
	Signature hexutil.Bytes `json:"signature"`

	// ContractAddresses is unique, lower-case and sorted.
	ContractAddresses []string `json:"contract_addresses"`

	// UserAddress is the lower-case signer address.
	UserAddress string `json:"user_address"`

	// StartTimestamp is the unix second the signature becomes valid.
	StartTimestamp int64 `json:"start_timestamp"`

	// DurationDays is the validity period in days.
	DurationDays int64 `json:"duration_days"`

	// KeyID binds the signature to one chain key.
	KeyID string `json:"key_id"`

	// ChainID is the chain of the signing domain.
	ChainID uint64 `json:"chain_id"`

	// ExpiresAt is informational; validity is decided by StartTimestamp and DurationDays.
	ExpiresAt time.Time `json:"expires_at"`

	SchemaVersion string `json:"schema_version"`
}

// EndTimestamp returns the first unix second at which the signature is no longer valid.
func (s *DecryptionSignature) EndTimestamp() int64 {
	return s.StartTimestamp + s.DurationDays*constants.SecondsPerDay
}

// IsValidAt reports whether now falls in [start, start+days*86400).
func (s *DecryptionSignature) IsValidAt(now time.Time) bool {
	t := now.Unix()
	return t >= s.StartTimestamp && t < s.EndTimestamp()
}

// Covers reports whether contract (any case) is in the signature's set.
func (s *DecryptionSignature) Covers(contract string) bool {
	n, err := NormalizeAddress(contract)
	if err != nil {
		return false
	}
	_, found := slices.BinarySearch(s.ContractAddresses, n)
	return found
}

// Uncovered returns the first contract not covered by the signature, if any.
func (s *DecryptionSignature) Uncovered(contracts []string) (string, bool) {
	for _, c := range contracts {
		if !s.Covers(c) {
			return c, true
		}
	}
	return "", false
}
