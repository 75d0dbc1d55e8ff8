package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/fhekit/internal/domain"
)

type decryptFlags struct {
	contract string
	yes      bool
}

// AddDecryptCommand adds the decrypt command.
func AddDecryptCommand(root *cobra.Command, global *GlobalFlags) {
	flags := &decryptFlags{}
	cmd := &cobra.Command{
		Use:   "decrypt HANDLE[@CONTRACT]...",
		Short: "Decrypt handles the wallet is allowed to see",
		Long: `Decrypt one or more handles for the wallet user. A decryption signature
covering exactly the contracts of the request is reused or signed first.

Examples:
  fhekit decrypt --contract 0xabc... 0x1234...
  fhekit decrypt 0x1234...@0xabc... 0x5678...@0xdef... -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			reqs, err := parseRequests(args, flags.contract)
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

			results, err := sess.UserDecrypt(ctx, reqs, signer)
			if err != nil {
				return err
			}
			return printDecrypted(r, reqs, results, global.Output)
		},
	}
	cmd.Flags().StringVar(&flags.contract, "contract", "", "contract for handles given without @CONTRACT")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "sign without confirmation")
	root.AddCommand(cmd)
}

// AddPublicDecryptCommand adds the public-decrypt command.
func AddPublicDecryptCommand(root *cobra.Command, global *GlobalFlags) {
	var contract string
	cmd := &cobra.Command{
		Use:   "public-decrypt HANDLE[@CONTRACT]...",
		Short: "Decrypt publicly decryptable handles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			reqs, err := parseRequests(args, contract)
			if err != nil {
				return err
			}
			sess, err := r.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			results, err := sess.PublicDecrypt(ctx, reqs)
			if err != nil {
				return err
			}
			return printDecrypted(r, reqs, results, global.Output)
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "contract for handles given without @CONTRACT")
	root.AddCommand(cmd)
}

// AddMarkPublicCommand adds the mark-public command used against simulated chains.
func AddMarkPublicCommand(root *cobra.Command, global *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "mark-public HANDLE...",
		Short: "Make handles publicly decryptable on a simulated chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			handles := make([]domain.Handle, len(args))
			for i, arg := range args {
				if handles[i], err = domain.ParseHandle(arg); err != nil {
					return err
				}
			}
			sess, err := r.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			if err := sess.MarkPublic(ctx, handles); err != nil {
				return err
			}
			r.out.Success(fmt.Sprintf("%d handle(s) marked publicly decryptable", len(handles)))
			return nil
		},
	}
	root.AddCommand(cmd)
}
