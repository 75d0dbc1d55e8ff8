// Package config provides configuration management for fhekit with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (FHEKIT_* prefix)
//  3. Project config (.fhekit/config.yaml)
//  4. Global config (~/.fhekit/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for fhekit.
type Config struct {
	// Relay configures the decryption relay client and the local simulator.
	Relay RelayConfig `yaml:"relay" mapstructure:"relay"`

	// Engine configures where the FHE engine bundle is loaded from.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Chain configures the provider and which chain ids are simulated.
	Chain ChainConfig `yaml:"chain" mapstructure:"chain"`

	// Storage selects the persistent store for keys and signatures.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Signature controls decryption signature issuance.
	Signature SignatureConfig `yaml:"signature" mapstructure:"signature"`

	// Wallet configures the local signing key.
	Wallet WalletConfig `yaml:"wallet" mapstructure:"wallet"`
}

// RelayConfig contains settings for the decryption relay.
type RelayConfig struct {
	// URL is the relay base URL.
	// Default: http://127.0.0.1:7077
	URL string `yaml:"url" mapstructure:"url"`

	// Timeout bounds a single relay request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// ListenAddr is where 'fhekit relay serve' listens.
	// Default: 127.0.0.1:7077
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
}

// EngineConfig contains settings for the engine bundle. When neither
// BundleURL nor BundlePath is set, the built-in simulation bundle is used.
type EngineConfig struct {
	// BundleURL is an http(s) location of the bundle manifest.
	BundleURL string `yaml:"bundle_url" mapstructure:"bundle_url"`

	// BundlePath is a local file holding the bundle manifest.
	BundlePath string `yaml:"bundle_path" mapstructure:"bundle_path"`

	// LoadTimeout bounds the shared bundle load.
	// Default: 2m
	LoadTimeout time.Duration `yaml:"load_timeout" mapstructure:"load_timeout"`
}

// ChainConfig contains settings for the chain provider.
type ChainConfig struct {
	// RPCURL is the JSON-RPC endpoint used to detect the chain id.
	RPCURL string `yaml:"rpc_url" mapstructure:"rpc_url"`

	// ChainID pins the chain id. Zero means detect it through RPCURL.
	ChainID uint64 `yaml:"chain_id" mapstructure:"chain_id"`

	// MockChainIDs are resolved against the in-process simulator without
	// fetching keys or loading the engine bundle.
	// Default: [31337]
	MockChainIDs []uint64 `yaml:"mock_chain_ids" mapstructure:"mock_chain_ids"`

	// DecryptionContract is the EIP-712 verifying contract of decryption signatures.
	DecryptionContract string `yaml:"decryption_contract" mapstructure:"decryption_contract"`
}

// StorageConfig contains settings for the persistent store.
type StorageConfig struct {
	// Backend is one of memory, file, badger, redis.
	// Default: file
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Path is the JSON document (file) or directory (badger).
	// Empty means a location under ~/.fhekit/store.
	Path string `yaml:"path" mapstructure:"path"`

	// RedisURL is the redis server for the redis backend.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`

	// KeyCacheSize is the number of chains kept in the in-memory key cache.
	// Default: 16
	KeyCacheSize int `yaml:"key_cache_size" mapstructure:"key_cache_size"`
}

// SignatureConfig contains settings for decryption signatures.
type SignatureConfig struct {
	// DurationDays is how long a new signature stays valid.
	// Default: 365
	DurationDays int64 `yaml:"duration_days" mapstructure:"duration_days"`

	// Confirm asks for interactive confirmation before the wallet signs.
	// Default: true
	Confirm bool `yaml:"confirm" mapstructure:"confirm"`
}

// WalletConfig contains settings for the local wallet.
type WalletConfig struct {
	// KeyPath is the hex encoded secp256k1 key file.
	// Empty means ~/.fhekit/wallet/wallet.key.
	KeyPath string `yaml:"key_path" mapstructure:"key_path"`
}
