// Package eip712 builds, hashes and verifies the typed payload a wallet
// signs to authorize user decryption.
package eip712

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
)

// signatureLen is r || s || v.
const signatureLen = 65

// UserDecrypt holds the fields of a user decryption authorization.
type UserDecrypt struct {
	ChainID           uint64
	VerifyingContract string
	PublicKey         []byte
	ContractAddresses []string
	StartTimestamp    int64
	DurationDays      int64
}

// TypedData returns the EIP-712 payload for p.
func (p UserDecrypt) TypedData() apitypes.TypedData {
	contracts := make([]interface{}, len(p.ContractAddresses))
	for i, c := range p.ContractAddresses {
		contracts[i] = c
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			constants.SignaturePrimaryType: {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
				{Name: "extraData", Type: "bytes"},
			},
		},
		PrimaryType: constants.SignaturePrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              constants.SignatureDomainName,
			Version:           constants.SignatureDomainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(p.ChainID)), //nolint:gosec // chain ids fit int64
			VerifyingContract: p.VerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(p.PublicKey),
			"contractAddresses": contracts,
			"startTimestamp":    strconv.FormatInt(p.StartTimestamp, 10),
			"durationDays":      strconv.FormatInt(p.DurationDays, 10),
			"extraData":         constants.SignatureExtraData,
		},
	}
}

// Hash returns the EIP-712 digest of p.
func (p UserDecrypt) Hash() ([]byte, error) {
	return Hash(p.TypedData())
}

// Hash returns the EIP-712 digest of td.
func Hash(td apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return hash, nil
}

// Recover returns the address that produced sig over td. Both the 0/1 and
// 27/28 recovery id conventions are accepted.
func Recover(td apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != signatureLen {
		return common.Address{}, fmt.Errorf("%w: signature is %d bytes", errors.ErrInvalidSignature, len(sig))
	}
	hash, err := Hash(td)
	if err != nil {
		return common.Address{}, err
	}
	normalized := make([]byte, signatureLen)
	copy(normalized, sig)
	if normalized[signatureLen-1] >= 27 {
		normalized[signatureLen-1] -= 27
	}
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", errors.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
