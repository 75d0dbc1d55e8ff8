package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/errors"
)

// parseClearValue parses "type:value", for example "bool:true", "u32:7",
// "uint256:0xff" or "address:0xabc...". Range is checked when the value is
// added to an input.
func parseClearValue(s string) (domain.ClearValue, error) {
	typ, raw, ok := strings.Cut(s, ":")
	if !ok || raw == "" {
		return domain.ClearValue{}, fmt.Errorf("%w: value %q must look like type:value", errors.ErrInvalidArgument, s)
	}
	t, err := domain.ParseValueType(typ)
	if err != nil {
		return domain.ClearValue{}, err
	}

	switch t {
	case domain.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.ClearValue{}, fmt.Errorf("%w: %q is not a boolean", errors.ErrInvalidArgument, raw)
		}
		return domain.BoolValue(b), nil
	case domain.TypeAddress:
		if !common.IsHexAddress(raw) {
			return domain.ClearValue{}, fmt.Errorf("%w: %s", errors.ErrInvalidAddress, raw)
		}
		return domain.AddressValue(common.HexToAddress(raw)), nil
	default:
		n, err := parseUint(raw)
		if err != nil {
			return domain.ClearValue{}, fmt.Errorf("%w: %q is not an unsigned integer", errors.ErrInvalidArgument, raw)
		}
		return domain.IntValue(t, n), nil
	}
}

func parseUint(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" {
			digits = "0"
		}
		return uint256.FromHex("0x" + digits)
	}
	return uint256.FromDecimal(s)
}

// parseRequests parses decrypt arguments of the form HANDLE or
// HANDLE@CONTRACT. Bare handles use defaultContract.
func parseRequests(args []string, defaultContract string) ([]domain.DecryptRequest, error) {
	reqs := make([]domain.DecryptRequest, 0, len(args))
	for _, arg := range args {
		raw, contract, found := strings.Cut(arg, "@")
		if !found {
			contract = defaultContract
		}
		if contract == "" {
			return nil, fmt.Errorf("%w: %s has no contract, pass --contract or HANDLE@CONTRACT", errors.ErrInvalidArgument, arg)
		}
		h, err := domain.ParseHandle(raw)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, domain.DecryptRequest{Handle: h, ContractAddress: contract})
	}
	return reqs, nil
}

// decryptedRow is the JSON form of one decrypted handle.
type decryptedRow struct {
	Handle   domain.Handle     `json:"handle"`
	Contract string            `json:"contract"`
	Value    domain.ClearValue `json:"value"`
}

// printDecrypted writes results in request order.
func printDecrypted(r *runtime, reqs []domain.DecryptRequest, results map[domain.Handle]domain.ClearValue, format string) error {
	rows := make([]decryptedRow, 0, len(reqs))
	for _, req := range reqs {
		v, ok := results[req.Handle]
		if !ok {
			continue
		}
		rows = append(rows, decryptedRow{Handle: req.Handle, Contract: req.ContractAddress, Value: v})
	}
	if format == OutputJSON {
		return r.out.JSON(rows)
	}

	table := make([][]string, len(rows))
	for i, row := range rows {
		table[i] = []string{row.Handle.Hex(), row.Value.Type.String(), row.Value.String()}
	}
	r.out.Table([]string{"HANDLE", "TYPE", "VALUE"}, table)
	return nil
}
