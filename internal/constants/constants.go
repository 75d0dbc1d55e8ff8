// Package constants provides centralized constant values used throughout fhekit.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by fhekit for organizing data.
const (
	// AppHome is the hidden directory name where fhekit stores all its data.
	// This directory is created in the user's home directory.
	AppHome = ".fhekit"

	// StoreDir is the directory holding the persistent key-value store.
	StoreDir = "store"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// WalletDir is the directory holding the local wallet key.
	WalletDir = "wallet"

	// EnvPrefix is the prefix for environment variable overrides (FHEKIT_RELAY_URL, ...).
	EnvPrefix = "FHEKIT"
)

// Decryption signature policy.
const (
	// SignatureDurationDays is how long a freshly issued decryption signature stays valid.
	SignatureDurationDays = 365

	// SecondsPerDay converts signature durations to seconds.
	SecondsPerDay = 86400

	// SignatureDomainName and SignatureDomainVersion identify the EIP-712 domain
	// of the user decryption request.
	SignatureDomainName    = "Decryption"
	SignatureDomainVersion = "1"

	// SignaturePrimaryType is the EIP-712 primary type signed by the wallet.
	SignaturePrimaryType = "UserDecryptRequestVerification"

	// DefaultDecryptionContract is the EIP-712 verifying contract used when
	// chain.decryption_contract is not configured.
	DefaultDecryptionContract = "0x00000000000000000000000000000000000d3c01"

	// SignatureExtraData is the extraData field of a user decryption request.
	SignatureExtraData = "0x00"
)

// Encrypted input limits.
const (
	// MaxInputValues is the maximum number of values in one encrypted input.
	MaxInputValues = 256

	// MaxInputBits is the maximum number of plaintext bits in one encrypted input.
	MaxInputBits = 2048
)

// Handle layout.
const (
	// HandleLen is the byte length of a ciphertext handle.
	HandleLen = 32

	// HandleVersion is written into the last byte of every handle.
	HandleVersion byte = 0
)

// Chain ids.
const (
	// HardhatChainID is the default local development chain id that resolves to a mock instance.
	HardhatChainID uint64 = 31337
)

// Timeout configurations for various operations.
const (
	// DefaultRelayTimeout bounds a single relay HTTP request.
	DefaultRelayTimeout = 30 * time.Second

	// DefaultEngineLoadTimeout bounds the shared engine bundle load.
	DefaultEngineLoadTimeout = 2 * time.Minute

	// DefaultLockTimeout bounds file lock acquisition for the file store.
	DefaultLockTimeout = 5 * time.Second

	// LockRetryInterval is the interval between file lock attempts.
	LockRetryInterval = 50 * time.Millisecond
)

// Relay paths.
const (
	// RelayKeysPath serves chain key material; the chain id is appended.
	RelayKeysPath = "/v1/keys/"

	// RelayInputProofPath verifies and registers an encrypted input.
	RelayInputProofPath = "/v1/input-proof"

	// RelayUserDecryptPath re-encrypts cleartexts for a signed user request.
	RelayUserDecryptPath = "/v1/user-decrypt"

	// RelayPublicDecryptPath discloses publicly decryptable cleartexts.
	RelayPublicDecryptPath = "/v1/public-decrypt"

	// RelaySimPublicPath marks handles publicly decryptable on the simulator.
	RelaySimPublicPath = "/v1/sim/public"

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	// DefaultRelayListenAddr is where 'fhekit relay serve' listens by default.
	DefaultRelayListenAddr = "127.0.0.1:7077"
)

// Storage backends.
const (
	StorageBackendMemory = "memory"
	StorageBackendFile   = "file"
	StorageBackendBadger = "badger"
	StorageBackendRedis  = "redis"
)

// Relay client defaults.
const (
	// DefaultRelayURL points at the local relay simulator.
	DefaultRelayURL = "http://127.0.0.1:7077"
)

// Cache sizing.
const (
	// DefaultKeyCacheSize is the number of chains kept in the in-memory key cache.
	DefaultKeyCacheSize = 16
)

// Storage key namespaces.
const (
	// PublicKeyPrefix namespaces cached public key sets (suffix: chain id).
	PublicKeyPrefix = "fhekit:pubkey:"

	// SignaturePrefix namespaces cached decryption signatures (suffix: cache key hash).
	SignaturePrefix = "fhekit:sig:"

	// SimPrefix namespaces the simulation coprocessor's ledger and network keys.
	SimPrefix = "fhekit:sim:"
)

// Schema version constants for data migration support.
const (
	// RecordSchemaVersion is the version of persisted signature and key records.
	RecordSchemaVersion = "1.0"
)
