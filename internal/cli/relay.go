package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/fhekit/internal/relaysim"
	"github.com/mrz1836/fhekit/internal/sim"
	"github.com/mrz1836/fhekit/internal/storage"
)

type relayServeFlags struct {
	listen string
	chains []uint64
}

// AddRelayCommand adds the relay command group.
func AddRelayCommand(root *cobra.Command, global *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the local relay simulator",
	}

	flags := &relayServeFlags{}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the relay HTTP API over simulated chains",
		Long: `Serve keys, input proofs and decryption for simulated chains over HTTP.
Chain state lives in the configured store, so encrypted inputs survive restarts
with the file, badger or redis backends.

Examples:
  fhekit relay serve
  fhekit relay serve --listen 127.0.0.1:9000 --chain 31337 --chain 1337`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r, err := newRuntime(cmd, global)
			if err != nil {
				return err
			}
			addr := flags.listen
			if addr == "" {
				addr = r.cfg.Relay.ListenAddr
			}

			store, err := storage.Open(ctx, storage.Options{
				Backend:  r.cfg.Storage.Backend,
				Path:     r.cfg.StorePath(r.home),
				RedisURL: r.cfg.Storage.RedisURL,
			})
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close(store) }()

			network := sim.NewNetwork(store,
				sim.WithLogger(r.logger),
				sim.WithVerifyingContract(r.cfg.Chain.DecryptionContract),
			)
			srv := relaysim.New(network, r.logger, flags.chains...)

			ready := make(chan string, 1)
			go func() {
				select {
				case bound := <-ready:
					r.out.Success("relay simulator listening on http://" + bound)
				case <-ctx.Done():
				}
			}()
			return srv.Serve(ctx, addr, ready)
		},
	}
	serve.Flags().StringVar(&flags.listen, "listen", "", "listen address (default relay.listen_addr)")
	serve.Flags().Uint64SliceVar(&flags.chains, "chain", nil, "chain id to serve (repeatable, default all)")

	cmd.AddCommand(serve)
	root.AddCommand(cmd)
}
