package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinel errors to their user-facing messages.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Instance resolution
	// ===================
	{
		err: ErrNoProvider,
		info: ErrorInfo{
			Message: "No chain provider is configured.",
			Action:  "Set chain.rpc_url in your config or pass --rpc-url.",
		},
	},
	{
		err: ErrEngineLoadFailed,
		info: ErrorInfo{
			Message: "The FHE engine bundle could not be loaded.",
			Action:  "Check engine.bundle_url / engine.bundle_path and your network, then retry.",
		},
	},
	{
		err: ErrKeyFetchFailed,
		info: ErrorInfo{
			Message: "Could not fetch the chain's FHE public key from the relay.",
			Action:  "Check relay.url and that the relay serves this chain, then retry.",
		},
	},
	{
		err: ErrChainDetectFailed,
		info: ErrorInfo{
			Message: "Could not detect the chain id from the provider.",
			Action:  "Pass --chain-id explicitly or check chain.rpc_url.",
		},
	},
	{
		err: ErrNotReady,
		info: ErrorInfo{
			Message: "The FHE instance is not ready.",
			Action:  "Resolve the instance again for the current chain.",
		},
	},

	// ===================
	// Encrypted inputs
	// ===================
	{
		err: ErrValueOutOfRange,
		info: ErrorInfo{
			Message: "A value does not fit the declared bit width.",
			Action:  "Use a wider type (for example u64 instead of u32).",
		},
	},
	{
		err: ErrInputTooLarge,
		info: ErrorInfo{
			Message: "The encrypted input exceeds 256 values or 2048 bits.",
			Action:  "Split the values across several inputs.",
		},
	},
	{
		err: ErrEmptyInput,
		info: ErrorInfo{
			Message: "No values were added to the encrypted input.",
			Action:  "Pass at least one --value type:value.",
		},
	},
	{
		err: ErrInvalidAddress,
		info: ErrorInfo{
			Message: "An address is not a valid 20-byte hex address.",
			Action:  "Addresses look like 0x followed by 40 hex characters.",
		},
	},
	{
		err: ErrInvalidHandle,
		info: ErrorInfo{
			Message: "A handle is not a valid 32-byte hex value.",
			Action:  "Handles look like 0x followed by 64 hex characters.",
		},
	},

	// ===================
	// Authorization and decryption
	// ===================
	{
		err: ErrUserRejected,
		info: ErrorInfo{
			Message: "The signing request was rejected.",
			Action:  "Run the command again and approve the request to continue.",
		},
	},
	{
		err: ErrScopeMismatch,
		info: ErrorInfo{
			Message: "The decryption signature does not cover every requested contract.",
			Action:  "Sign again including all contracts you want to decrypt against.",
		},
	},
	{
		err: ErrSignatureExpired,
		info: ErrorInfo{
			Message: "The decryption signature has expired.",
			Action:  "Run 'fhekit sign' to issue a fresh signature.",
		},
	},
	{
		err: ErrInvalidSignature,
		info: ErrorInfo{
			Message: "The relay refused the decryption signature.",
			Action:  "Invalidate the cached signature with 'fhekit signatures invalidate' and sign again.",
		},
	},
	{
		err: ErrAccessDenied,
		info: ErrorInfo{
			Message: "The relay refused to disclose the value.",
			Action:  "The contract must grant access to this user or mark the value publicly decryptable.",
		},
	},
	{
		err: ErrNetwork,
		info: ErrorInfo{
			Message: "Could not reach the relay.",
			Action:  "Check your network connection and relay.url, then retry.",
		},
	},

	// ===================
	// Configuration
	// ===================
	{
		err: ErrConfigInvalidRelay,
		info: ErrorInfo{
			Message: "The relay configuration is invalid.",
			Action:  "Run 'fhekit config show' and fix the relay section.",
		},
	},
	{
		err: ErrConfigInvalidStorage,
		info: ErrorInfo{
			Message: "The storage configuration is invalid.",
			Action:  "storage.backend must be one of memory, file, badger, redis.",
		},
	},
	{
		err: ErrWalletKeyInvalid,
		info: ErrorInfo{
			Message: "The wallet key file is invalid.",
			Action:  "Remove the key file and run 'fhekit wallet init'.",
		},
	},
	{
		err: ErrInteractiveRequired,
		info: ErrorInfo{
			Message: "Signing needs an interactive confirmation.",
			Action:  "Run in a terminal, pass --yes, or set signature.confirm to false.",
		},
	},
	{
		err: ErrInvalidArgument,
		info: ErrorInfo{
			Message: "An invalid argument was provided.",
			Action:  "Check the command help for valid arguments.",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// It first tries a direct map lookup for unwrapped sentinel errors,
// then falls back to errors.Is() traversal for wrapped errors.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take to resolve or work around the issue.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
