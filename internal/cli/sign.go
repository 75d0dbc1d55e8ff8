package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/fhekit/internal/domain"
)

// signatureView is the printable form of a decryption signature. The
// keypair's private half is never printed.
type signatureView struct {
	User      string    `json:"user"`
	Contracts []string  `json:"contracts"`
	KeyID     string    `json:"key_id"`
	PublicKey string    `json:"public_key"`
	Start     time.Time `json:"start"`
	Expires   time.Time `json:"expires"`
	Signature string    `json:"signature"`
}

func viewSignature(sig *domain.DecryptionSignature) signatureView {
	return signatureView{
		User:      sig.UserAddress,
		Contracts: sig.ContractAddresses,
		KeyID:     sig.KeyID,
		PublicKey: sig.PublicKey.String(),
		Start:     time.Unix(sig.StartTimestamp, 0).UTC(),
		Expires:   time.Unix(sig.EndTimestamp(), 0).UTC(),
		Signature: sig.Signature.String(),
	}
}

func printSignature(r *runtime, format string, sig *domain.DecryptionSignature) error {
	v := viewSignature(sig)
	if format == OutputJSON {
		return r.out.JSON(v)
	}
	r.out.Table([]string{"FIELD", "VALUE"}, [][]string{
		{"user", v.User},
		{"contracts", strings.Join(v.Contracts, ", ")},
		{"key id", v.KeyID},
		{"valid from", v.Start.Format(time.RFC3339)},
		{"expires", v.Expires.Format(time.RFC3339)},
	})
	return nil
}

type signFlags struct {
	contracts []string
	yes       bool
}

// AddSignCommand adds the sign command.
func AddSignCommand(root *cobra.Command, global *GlobalFlags) {
	flags := &signFlags{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Issue or reuse a decryption signature for a contract set",
		Long: `Ask the wallet to sign an EIP-712 user decryption request covering exactly
the given contracts. A stored signature for the same user, contract set and
chain key is reused while it is valid.

Examples:
  fhekit sign --contract 0xabc... --contract 0xdef...
  fhekit sign --contract 0xabc... --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			signer, err := r.signer(flags.yes)
			if err != nil {
				return err
			}
			sess, err := r.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			sig, err := sess.Sign(ctx, flags.contracts, signer)
			if err != nil {
				return err
			}
			return printSignature(r, global.Output, sig)
		},
	}
	cmd.Flags().StringArrayVar(&flags.contracts, "contract", nil, "contract to cover (repeatable)")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "sign without confirmation")
	_ = cmd.MarkFlagRequired("contract")
	root.AddCommand(cmd)
}
