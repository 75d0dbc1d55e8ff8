package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
)

// GlobalConfigDir returns the path to the global fhekit directory: FHEKIT_HOME
// when set, otherwise ~/.fhekit.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	if dir := os.Getenv(constants.EnvPrefix + "_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.AppHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
func ProjectConfigDir() string {
	return constants.AppHome
}

// GlobalConfigPath returns the full path to the global configuration file.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.GlobalConfigName)
}

// StorePath returns where the configured backend keeps its data: the
// configured path, or a default under home for file and badger.
func (c *Config) StorePath(home string) string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	switch c.Storage.Backend {
	case constants.StorageBackendFile:
		return filepath.Join(home, constants.StoreDir, constants.StoreFileName)
	case constants.StorageBackendBadger:
		return filepath.Join(home, constants.StoreDir, "badger")
	default:
		return ""
	}
}

// WalletKeyPath returns the configured key file, or the default under home.
func (c *Config) WalletKeyPath(home string) string {
	if c.Wallet.KeyPath != "" {
		return c.Wallet.KeyPath
	}
	return filepath.Join(home, constants.WalletDir, constants.WalletKeyFileName)
}
