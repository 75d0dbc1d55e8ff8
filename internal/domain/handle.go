package domain

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
)

// Handle layout offsets.
const (
	handleHashLen     = 21
	handleIndexByte   = 21
	handleChainOffset = 22
	handleTypeByte    = 30
	handleVersionByte = 31
)

// Handle is the 32-byte opaque identifier of an on-chain ciphertext.
//
//	[0:21]  keccak256(ciphertext digest || index) prefix
//	[21]    index within its input batch
//	[22:30] chain id, big endian
//	[30]    value type tag
//	[31]    handle version
type Handle [constants.HandleLen]byte

// NewHandle derives the handle of the index-th value of a batch whose
// ciphertext hashes to digest.
func NewHandle(digest []byte, index uint8, chainID uint64, t ValueType) Handle {
	var h Handle
	sum := crypto.Keccak256(digest, []byte{index})
	copy(h[:handleHashLen], sum[:handleHashLen])
	h[handleIndexByte] = index
	binary.BigEndian.PutUint64(h[handleChainOffset:handleTypeByte], chainID)
	h[handleTypeByte] = byte(t)
	h[handleVersionByte] = constants.HandleVersion
	return h
}

// ParseHandle parses a 0x-prefixed 64-character hex handle.
func ParseHandle(s string) (Handle, error) {
	var h Handle
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil || len(b) != constants.HandleLen {
		return h, fmt.Errorf("%w: %q", errors.ErrInvalidHandle, s)
	}
	copy(h[:], b)
	if !h.Type().Valid() {
		return h, fmt.Errorf("%w: unknown type tag %d", errors.ErrInvalidHandle, h[handleTypeByte])
	}
	return h, nil
}

// Type returns the value type tag.
func (h Handle) Type() ValueType { return ValueType(h[handleTypeByte]) }

// Index returns the position of the value within its input batch.
func (h Handle) Index() uint8 { return h[handleIndexByte] }

// ChainID returns the chain id embedded in the handle.
func (h Handle) ChainID() uint64 {
	return binary.BigEndian.Uint64(h[handleChainOffset:handleTypeByte])
}

// Version returns the handle format version.
func (h Handle) Version() byte { return h[handleVersionByte] }

// Hex returns the 0x-prefixed lower-case hex form.
func (h Handle) Hex() string { return hexutil.Encode(h[:]) }

// String implements fmt.Stringer.
func (h Handle) String() string { return h.Hex() }

// MarshalText implements encoding.TextMarshaler so handles can key JSON maps.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
