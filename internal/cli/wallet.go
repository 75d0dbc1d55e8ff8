package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/fhekit/internal/wallet"
)

type walletView struct {
	Address string `json:"address"`
	KeyPath string `json:"key_path"`
	Created bool   `json:"created"`
}

// AddWalletCommand adds the wallet command group.
func AddWalletCommand(root *cobra.Command, global *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the local signing key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a signing key if none exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			path := r.cfg.WalletKeyPath(r.home)
			signer, created, err := wallet.LoadOrCreate(path)
			if err != nil {
				return err
			}
			view := walletView{Address: signer.Address().Hex(), KeyPath: path, Created: created}
			if global.Output == OutputJSON {
				return r.out.JSON(view)
			}
			if created {
				r.out.Success("created wallet " + view.Address)
			} else {
				r.out.Info("wallet already exists: " + view.Address)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "address",
		Short: "Print the wallet address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			signer, err := r.wallet()
			if err != nil {
				return err
			}
			if global.Output == OutputJSON {
				return r.out.JSON(walletView{Address: signer.Address().Hex(), KeyPath: r.cfg.WalletKeyPath(r.home)})
			}
			_, err = r.w.Write([]byte(signer.Address().Hex() + "\n"))
			return err
		},
	})

	root.AddCommand(cmd)
}
