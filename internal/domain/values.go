// Package domain provides shared domain types for fhekit: handles, value
// types, cleartext values, public key sets and decryption signatures.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mrz1836/fhekit/internal/errors"
)

// ValueType is the encrypted value type carried in byte 30 of a handle.
type ValueType uint8

// Value type tags.
const (
	TypeBool    ValueType = 0
	TypeUint8   ValueType = 2
	TypeUint16  ValueType = 3
	TypeUint32  ValueType = 4
	TypeUint64  ValueType = 5
	TypeUint128 ValueType = 6
	TypeAddress ValueType = 7
	TypeUint256 ValueType = 8
)

// WordSize is the size of an encoded cleartext word.
const WordSize = 32

//nolint:gochecknoglobals // static lookup table
var valueTypeNames = map[ValueType]string{
	TypeBool:    "bool",
	TypeUint8:   "uint8",
	TypeUint16:  "uint16",
	TypeUint32:  "uint32",
	TypeUint64:  "uint64",
	TypeUint128: "uint128",
	TypeAddress: "address",
	TypeUint256: "uint256",
}

// String returns the type name, e.g. "uint32".
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Valid reports whether t is a known tag.
func (t ValueType) Valid() bool {
	_, ok := valueTypeNames[t]
	return ok
}

// Bits returns the number of bits t counts against an input batch.
// A bool counts as 2 bits.
func (t ValueType) Bits() int {
	switch t {
	case TypeBool:
		return 2
	case TypeUint8:
		return 8
	case TypeUint16:
		return 16
	case TypeUint32:
		return 32
	case TypeUint64:
		return 64
	case TypeUint128:
		return 128
	case TypeAddress:
		return 160
	case TypeUint256:
		return 256
	default:
		return 0
	}
}

// IsInteger reports whether t is one of the unsigned integer types.
func (t ValueType) IsInteger() bool {
	switch t {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64, TypeUint128, TypeUint256:
		return true
	default:
		return false
	}
}

// ParseValueType parses a type name. Short aliases like "u32" and "ebool" are accepted.
func ParseValueType(s string) (ValueType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "e")
	if strings.HasPrefix(name, "u") && !strings.HasPrefix(name, "uint") {
		name = "uint" + strings.TrimPrefix(name, "u")
	}
	for t, n := range valueTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown value type %q", errors.ErrInvalidArgument, s)
}

// ClearValue is a typed cleartext: a boolean, an unsigned integer of up to
// 256 bits, or an address.
type ClearValue struct {
	Type    ValueType
	Bool    bool
	Int     *uint256.Int
	Address common.Address
}

// BoolValue returns a bool cleartext.
func BoolValue(b bool) ClearValue {
	return ClearValue{Type: TypeBool, Bool: b}
}

// IntValue returns an integer cleartext of type t.
func IntValue(t ValueType, v *uint256.Int) ClearValue {
	return ClearValue{Type: t, Int: new(uint256.Int).Set(v)}
}

// Uint64Value is a convenience for IntValue with a uint64.
func Uint64Value(t ValueType, v uint64) ClearValue {
	return ClearValue{Type: t, Int: uint256.NewInt(v)}
}

// AddressValue returns an address cleartext.
func AddressValue(a common.Address) ClearValue {
	return ClearValue{Type: TypeAddress, Address: a}
}

// String renders the value: true/false, a decimal integer or a lower-case address.
func (v ClearValue) String() string {
	switch {
	case v.Type == TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case v.Type == TypeAddress:
		return strings.ToLower(v.Address.Hex())
	case v.Int != nil:
		return v.Int.Dec()
	default:
		return "0"
	}
}

// Equal reports whether two cleartexts have the same type and value.
func (v ClearValue) Equal(o ClearValue) bool {
	if v.Type != o.Type {
		return false
	}
	return v.String() == o.String()
}

type clearValueJSON struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// MarshalJSON encodes bools as JSON booleans and integers as decimal strings.
func (v ClearValue) MarshalJSON() ([]byte, error) {
	out := clearValueJSON{Type: v.Type.String(), Value: v.String()}
	if v.Type == TypeBool {
		out.Value = v.Bool
	}
	return json.Marshal(out)
}

// Word encodes v as a 32-byte big-endian word.
func (v ClearValue) Word() []byte {
	word := make([]byte, WordSize)
	switch {
	case v.Type == TypeBool:
		if v.Bool {
			word[WordSize-1] = 1
		}
	case v.Type == TypeAddress:
		copy(word[WordSize-common.AddressLength:], v.Address.Bytes())
	case v.Int != nil:
		b := v.Int.Bytes32()
		copy(word, b[:])
	}
	return word
}

// ClearValueFromWord decodes a 32-byte word as a cleartext of type t.
// The word must fit t.
func ClearValueFromWord(t ValueType, word []byte) (ClearValue, error) {
	if len(word) != WordSize {
		return ClearValue{}, fmt.Errorf("%w: cleartext word is %d bytes", errors.ErrCorruptRecord, len(word))
	}
	n := new(uint256.Int).SetBytes(word)
	if n.BitLen() > t.Bits() && t != TypeBool {
		return ClearValue{}, fmt.Errorf("%w: %s does not fit %s", errors.ErrValueOutOfRange, n.Dec(), t)
	}
	switch {
	case t == TypeBool:
		if !n.IsUint64() || n.Uint64() > 1 {
			return ClearValue{}, fmt.Errorf("%w: %s is not a bool", errors.ErrValueOutOfRange, n.Dec())
		}
		return BoolValue(n.Uint64() == 1), nil
	case t == TypeAddress:
		return AddressValue(common.BytesToAddress(word[WordSize-common.AddressLength:])), nil
	case t.IsInteger():
		return ClearValue{Type: t, Int: n}, nil
	default:
		return ClearValue{}, fmt.Errorf("%w: unknown value type %d", errors.ErrInvalidHandle, uint8(t))
	}
}

// FitsType reports whether n fits in the bit width of integer type t.
func FitsType(t ValueType, n *uint256.Int) bool {
	if n == nil || !t.IsInteger() {
		return false
	}
	return n.BitLen() <= t.Bits()
}
