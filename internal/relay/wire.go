// Package relay is the HTTP JSON client of the remote decryption relay.
// The wire types are shared with the relay simulator.
package relay

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/fhekit/internal/domain"
)

// API is the relay surface used by instances. The HTTP Client and the
// in-process simulation coprocessor both implement it.
type API interface {
	// Keys returns the FHE public key of a chain.
	Keys(ctx context.Context, chainID uint64) (*KeyResponse, error)

	// InputProof registers an encrypted batch and returns its handles and proof.
	InputProof(ctx context.Context, req *InputProofRequest) (*InputProofResponse, error)

	// UserDecrypt re-encrypts cleartexts to the request's ephemeral public key.
	UserDecrypt(ctx context.Context, req *UserDecryptRequest) (*UserDecryptResponse, error)

	// PublicDecrypt discloses cleartexts that were made publicly decryptable.
	PublicDecrypt(ctx context.Context, req *PublicDecryptRequest) (*PublicDecryptResponse, error)
}

// KeyResponse is returned by GET /v1/keys/{chainId}.
type KeyResponse struct {
	ChainID   uint64        `json:"chainId"`
	KeyID     string        `json:"keyId"`
	PublicKey hexutil.Bytes `json:"publicKey"`
}

// InputProofRequest is the body of POST /v1/input-proof.
type InputProofRequest struct {
	ChainID         uint64        `json:"chainId"`
	ContractAddress string        `json:"contractAddress"`
	UserAddress     string        `json:"userAddress"`
	Ciphertext      hexutil.Bytes `json:"ciphertext"`
}

// InputProofResponse is returned by POST /v1/input-proof.
type InputProofResponse struct {
	Handles    []domain.Handle `json:"handles"`
	InputProof hexutil.Bytes   `json:"inputProof"`
}

// HandleContractPair names a handle and the contract it is decrypted against.
type HandleContractPair struct {
	Handle          domain.Handle `json:"handle"`
	ContractAddress string        `json:"contractAddress"`
}

// UserDecryptRequest is the body of POST /v1/user-decrypt.
type UserDecryptRequest struct {
	Requests          []HandleContractPair `json:"requests"`
	PublicKey         hexutil.Bytes        `json:"publicKey"`
	Signature         hexutil.Bytes        `json:"signature"`
	ContractAddresses []string             `json:"contractAddresses"`
	UserAddress       string               `json:"userAddress"`
	StartTimestamp    int64                `json:"startTimestamp"`
	DurationDays      int64                `json:"durationDays"`
	ChainID           uint64               `json:"chainId"`
}

// UserDecryptResponse maps each handle to its cleartext sealed to the
// request's public key.
type UserDecryptResponse struct {
	Results map[domain.Handle]hexutil.Bytes `json:"results"`
}

// PublicDecryptRequest is the body of POST /v1/public-decrypt.
type PublicDecryptRequest struct {
	ChainID  uint64               `json:"chainId"`
	Requests []HandleContractPair `json:"requests"`
}

// PublicDecryptResponse maps each handle to its 32-byte cleartext word.
type PublicDecryptResponse struct {
	Results map[domain.Handle]hexutil.Bytes `json:"results"`
}

// MarkPublicRequest is the body of the simulator's POST /v1/sim/public.
type MarkPublicRequest struct {
	ChainID uint64          `json:"chainId"`
	Handles []domain.Handle `json:"handles"`
}

// ErrorResponse is the body of every relay error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Pairs converts domain decrypt requests to their wire form.
func Pairs(reqs []domain.DecryptRequest) []HandleContractPair {
	out := make([]HandleContractPair, len(reqs))
	for i, r := range reqs {
		out[i] = HandleContractPair{Handle: r.Handle, ContractAddress: r.ContractAddress}
	}
	return out
}
