package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/fhekit/internal/errors"
)

// ParseAddress parses a 0x-prefixed 20-byte hex address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", errors.ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// NormalizeAddress returns the lower-case 0x form of an address.
func NormalizeAddress(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Hex()), nil
}

// NormalizeAddresses lower-cases, de-duplicates and sorts a set of addresses.
func NormalizeAddresses(addrs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		n, err := NormalizeAddress(a)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}
