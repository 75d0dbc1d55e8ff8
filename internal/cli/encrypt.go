package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/fhekit/internal/domain"
)

type encryptFlags struct {
	contract string
	user     string
	values   []string
}

// AddEncryptCommand adds the encrypt command.
func AddEncryptCommand(root *cobra.Command, global *GlobalFlags) {
	flags := &encryptFlags{}
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt values into one input for a contract",
		Long: `Encrypt one or more typed values into a single encrypted input bound to a
contract and user. Each value yields a handle; one proof covers the batch.

Types: bool, u8, u16, u32, u64, u128, u256, address.

Examples:
  fhekit encrypt --contract 0xabc... --value bool:true --value u8:5 --value u32:1000000
  fhekit encrypt --contract 0xabc... --user 0xdef... --value u256:0xff -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEncrypt(cmd, global, flags)
		},
	}
	cmd.Flags().StringVar(&flags.contract, "contract", "", "contract the input is for")
	cmd.Flags().StringVar(&flags.user, "user", "", "user the input is from (default: wallet address)")
	cmd.Flags().StringArrayVar(&flags.values, "value", nil, "typed value as type:value (repeatable)")
	_ = cmd.MarkFlagRequired("contract")
	root.AddCommand(cmd)
}

func runEncrypt(cmd *cobra.Command, global *GlobalFlags, flags *encryptFlags) error {
	ctx := cmd.Context()
	r, err := newRuntime(cmd, global)
	if err != nil {
		return err
	}

	values := make([]domain.ClearValue, 0, len(flags.values))
	for _, raw := range flags.values {
		v, err := parseClearValue(raw)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	user, err := r.userOrWallet(flags.user)
	if err != nil {
		return err
	}

	sess, err := r.openSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	input, err := sess.Encrypt(ctx, flags.contract, user, values)
	if err != nil {
		return err
	}
	r.logger.Debug().Int("handles", len(input.Handles)).Str("contract", flags.contract).Msg("input encrypted")

	if global.Output == OutputJSON {
		return r.out.JSON(input)
	}
	rows := make([][]string, len(input.Handles))
	for i, h := range input.Handles {
		rows[i] = []string{strconv.Itoa(i), h.Type().String(), h.Hex()}
	}
	r.out.Table([]string{"INDEX", "TYPE", "HANDLE"}, rows)
	r.out.Info("input proof: " + input.InputProof.String())
	return nil
}
