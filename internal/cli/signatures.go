package cli

import (
	"github.com/spf13/cobra"
)

type signaturesFlags struct {
	contracts []string
	user      string
}

// AddSignaturesCommand adds the signatures command group.
func AddSignaturesCommand(root *cobra.Command, global *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "signatures",
		Short: "Inspect and invalidate stored decryption signatures",
	}

	show := &signaturesFlags{}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored signature for a user and contract set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			user, err := r.userOrWallet(show.user)
			if err != nil {
				return err
			}
			sess, err := r.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			inst, err := sess.Instance(ctx)
			if err != nil {
				return err
			}
			sig, ok, err := sess.Signatures().Lookup(ctx, inst, show.contracts, user)
			if err != nil {
				return err
			}
			if !ok {
				r.out.Warning("no valid signature stored for this user and contract set")
				return nil
			}
			return printSignature(r, global.Output, sig)
		},
	}
	addScopeFlags(showCmd, show)

	inv := &signaturesFlags{}
	invalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Forget the stored signature for a user and contract set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			user, err := r.userOrWallet(inv.user)
			if err != nil {
				return err
			}
			sess, err := r.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			if err := sess.InvalidateSignature(ctx, inv.contracts, user); err != nil {
				return err
			}
			r.out.Success("signature invalidated")
			return nil
		},
	}
	addScopeFlags(invalidateCmd, inv)

	cmd.AddCommand(showCmd, invalidateCmd)
	root.AddCommand(cmd)
}

func addScopeFlags(cmd *cobra.Command, flags *signaturesFlags) {
	cmd.Flags().StringArrayVar(&flags.contracts, "contract", nil, "contract in the set (repeatable)")
	cmd.Flags().StringVar(&flags.user, "user", "", "signing user (default: wallet address)")
	_ = cmd.MarkFlagRequired("contract")
}
