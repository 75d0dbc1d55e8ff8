package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/fhekit/internal/errors"
)

// ConfirmFunc asks the user to approve a signing request.
type ConfirmFunc func(ctx context.Context, title, description string) (bool, error)

// PromptSigner asks for confirmation before delegating to another Signer.
// A declined prompt fails with errors.ErrUserRejected.
type PromptSigner struct {
	signer  Signer
	confirm ConfirmFunc
}

var _ Signer = (*PromptSigner)(nil)

// NewPromptSigner wraps signer with confirm.
func NewPromptSigner(signer Signer, confirm ConfirmFunc) *PromptSigner {
	return &PromptSigner{signer: signer, confirm: confirm}
}

// Address returns the wrapped signer's address.
func (p *PromptSigner) Address() common.Address { return p.signer.Address() }

// SignTypedData shows a summary of td and signs only if the user agrees.
func (p *PromptSigner) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	ok, err := p.confirm(ctx, "Sign decryption request?", Describe(td))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrUserRejected, err)
	}
	if !ok {
		return nil, errors.ErrUserRejected
	}
	return p.signer.SignTypedData(ctx, td)
}

// Describe renders the fields of a user decryption payload for a prompt.
func Describe(td apitypes.TypedData) string {
	var b strings.Builder
	if td.Domain.ChainId != nil {
		fmt.Fprintf(&b, "Chain: %s\n", (*big.Int)(td.Domain.ChainId).String())
	}
	if contracts, ok := td.Message["contractAddresses"].([]interface{}); ok {
		b.WriteString("Contracts:\n")
		for _, c := range contracts {
			fmt.Fprintf(&b, "  %v\n", c)
		}
	}
	fmt.Fprintf(&b, "Valid for: %v days", td.Message["durationDays"])
	return b.String()
}
