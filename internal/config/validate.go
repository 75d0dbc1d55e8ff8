package config

import (
	"net/url"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - relay.url must be an http(s) URL and relay.timeout positive
//   - engine.bundle_url and engine.bundle_path are mutually exclusive
//   - chain.decryption_contract must be a hex address
//   - storage.backend must be known; redis needs storage.redis_url
//   - signature.duration_days must be between 1 and 3650
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}
	if err := validateRelayConfig(&cfg.Relay); err != nil {
		return err
	}
	if err := validateEngineConfig(&cfg.Engine); err != nil {
		return err
	}
	if err := validateChainConfig(&cfg.Chain); err != nil {
		return err
	}
	if err := validateStorageConfig(&cfg.Storage); err != nil {
		return err
	}
	return validateSignatureConfig(&cfg.Signature)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateRelayConfig(cfg *RelayConfig) error {
	if !isHTTPURL(cfg.URL) {
		return errors.Wrapf(errors.ErrConfigInvalidRelay, "relay.url must be an http(s) URL, got %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRelay, "relay.timeout must be positive, got %s", cfg.Timeout)
	}
	return nil
}

func validateEngineConfig(cfg *EngineConfig) error {
	if cfg.BundleURL != "" && cfg.BundlePath != "" {
		return errors.Wrap(errors.ErrConfigInvalidEngine, "engine.bundle_url and engine.bundle_path are mutually exclusive")
	}
	if cfg.BundleURL != "" && !isHTTPURL(cfg.BundleURL) {
		return errors.Wrapf(errors.ErrConfigInvalidEngine, "engine.bundle_url must be an http(s) URL, got %q", cfg.BundleURL)
	}
	if cfg.LoadTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidEngine, "engine.load_timeout must be positive, got %s", cfg.LoadTimeout)
	}
	return nil
}

func validateChainConfig(cfg *ChainConfig) error {
	if !common.IsHexAddress(cfg.DecryptionContract) {
		return errors.Wrapf(errors.ErrConfigInvalidChain,
			"chain.decryption_contract must be a hex address, got %q", cfg.DecryptionContract)
	}
	if cfg.RPCURL != "" && !isHTTPURL(cfg.RPCURL) {
		return errors.Wrapf(errors.ErrConfigInvalidChain, "chain.rpc_url must be an http(s) URL, got %q", cfg.RPCURL)
	}
	return nil
}

func validateStorageConfig(cfg *StorageConfig) error {
	backends := []string{
		constants.StorageBackendMemory,
		constants.StorageBackendFile,
		constants.StorageBackendBadger,
		constants.StorageBackendRedis,
	}
	if !slices.Contains(backends, cfg.Backend) {
		return errors.Wrapf(errors.ErrConfigInvalidStorage, "storage.backend %q is not one of %v", cfg.Backend, backends)
	}
	if cfg.Backend == constants.StorageBackendRedis && cfg.RedisURL == "" {
		return errors.Wrap(errors.ErrConfigInvalidStorage, "storage.redis_url is required for the redis backend")
	}
	if cfg.KeyCacheSize < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidStorage, "storage.key_cache_size must be at least 1, got %d", cfg.KeyCacheSize)
	}
	return nil
}

func validateSignatureConfig(cfg *SignatureConfig) error {
	if cfg.DurationDays < 1 || cfg.DurationDays > 3650 {
		return errors.Wrapf(errors.ErrConfigInvalidSignature,
			"signature.duration_days must be between 1 and 3650, got %d", cfg.DurationDays)
	}
	return nil
}
