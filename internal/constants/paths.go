package constants

// Log file names.
const (
	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.fhekit/logs/fhekit.log
	CLILogFileName = "fhekit.log"

	// LogMaxSizeMB is the size at which the CLI log file rotates.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files kept.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of rotated log files.
	LogMaxAgeDays = 28

	// LogCompress enables gzip compression of rotated log files.
	LogCompress = true
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the configuration file in both the global
	// (~/.fhekit) and project (.fhekit) directories.
	GlobalConfigName = "config.yaml"

	// StoreFileName is the JSON document used by the file storage backing.
	StoreFileName = "store.json"

	// WalletKeyFileName is the hex-encoded secp256k1 wallet key.
	WalletKeyFileName = "wallet.key"
)
