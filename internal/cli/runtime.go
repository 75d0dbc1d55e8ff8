package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrz1836/fhekit/internal/authz"
	"github.com/mrz1836/fhekit/internal/config"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/session"
	"github.com/mrz1836/fhekit/internal/tui"
	"github.com/mrz1836/fhekit/internal/wallet"
)

// runtime holds what a command needs after flags and config are resolved.
type runtime struct {
	cfg    *config.Config
	home   string
	out    tui.Output
	w      io.Writer
	logger zerolog.Logger
}

// newRuntime loads configuration with the global flag overrides.
func newRuntime(cmd *cobra.Command, flags *GlobalFlags) (*runtime, error) {
	ctx := cmd.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	home, err := appHome()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadWithOverrides(ctx, flags.ConfigFile, overridesFrom(flags))
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		home:   home,
		out:    tui.NewOutput(cmd.OutOrStdout(), flags.Output),
		w:      cmd.OutOrStdout(),
		logger: GetLogger(),
	}, nil
}

func overridesFrom(flags *GlobalFlags) *config.Config {
	o := &config.Config{}
	o.Relay.URL = flags.RelayURL
	o.Chain.RPCURL = flags.RPCURL
	o.Chain.ChainID = flags.ChainID
	o.Storage.Backend = flags.StorageBackend
	o.Wallet.KeyPath = flags.WalletKey
	return o
}

// openSession opens a session over the configured store and provider.
func (r *runtime) openSession(ctx context.Context) (*session.Session, error) {
	return session.Open(ctx, session.Options{
		Config: r.cfg,
		Home:   r.home,
		Logger: r.logger,
	})
}

// wallet loads the configured wallet key.
func (r *runtime) wallet() (*wallet.KeySigner, error) {
	return wallet.Load(r.cfg.WalletKeyPath(r.home))
}

// signer returns the wallet signer, wrapped in an interactive confirmation
// when signature.confirm is set and yes is false.
func (r *runtime) signer(yes bool) (authz.Signer, error) {
	ks, err := r.wallet()
	if err != nil {
		return nil, err
	}
	if !r.cfg.Signature.Confirm || yes {
		return ks, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("%w: signing needs confirmation, pass --yes to skip it", errors.ErrInteractiveRequired)
	}
	return wallet.NewPromptSigner(ks, tui.ConfirmSigning), nil
}

// userOrWallet returns user, or the wallet address when user is empty.
func (r *runtime) userOrWallet(user string) (string, error) {
	if user != "" {
		return user, nil
	}
	ks, err := r.wallet()
	if err != nil {
		return "", err
	}
	return ks.Address().Hex(), nil
}
