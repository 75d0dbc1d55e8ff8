package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// AddKeysCommand adds the keys command group.
func AddKeysCommand(root *cobra.Command, global *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the chain FHE public key",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "fetch",
		Short: "Fetch (or load from the store) the public key of the configured chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			sess, err := r.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			ks, err := sess.Keys(ctx)
			if err != nil {
				return err
			}
			if global.Output == OutputJSON {
				return r.out.JSON(ks)
			}
			r.out.Table([]string{"FIELD", "VALUE"}, [][]string{
				{"chain id", strconv.FormatUint(ks.ChainID, 10)},
				{"key id", ks.KeyID},
				{"key size", strconv.Itoa(len(ks.PublicKey)) + " bytes"},
				{"fetched at", ks.FetchedAt.UTC().Format(time.RFC3339)},
			})
			return nil
		},
	})
	root.AddCommand(cmd)
}
