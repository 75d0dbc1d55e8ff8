package config

import "github.com/mrz1836/fhekit/internal/constants"

// DefaultConfig returns a new Config with default values. These are the
// base layer overridden by config files, environment variables and flags.
func DefaultConfig() *Config {
	return &Config{
		Relay: RelayConfig{
			URL:        constants.DefaultRelayURL,
			Timeout:    constants.DefaultRelayTimeout,
			ListenAddr: constants.DefaultRelayListenAddr,
		},
		Engine: EngineConfig{
			LoadTimeout: constants.DefaultEngineLoadTimeout,
		},
		Chain: ChainConfig{
			// Local hardhat/anvil networks never need the real engine.
			MockChainIDs:       []uint64{constants.HardhatChainID},
			DecryptionContract: constants.DefaultDecryptionContract,
		},
		Storage: StorageConfig{
			Backend:      constants.StorageBackendFile,
			KeyCacheSize: constants.DefaultKeyCacheSize,
		},
		Signature: SignatureConfig{
			DurationDays: constants.SignatureDurationDays,
			Confirm:      true,
		},
	}
}
