// Package errors provides centralized error handling for fhekit.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrNoProvider indicates that instance resolution was attempted without a
	// chain provider. This is fatal for the attempt and is never retried.
	ErrNoProvider = errors.New("no provider")

	// ErrEngineLoadFailed indicates that the engine bundle could not be fetched,
	// verified or opened. The loader does not cache this failure.
	ErrEngineLoadFailed = errors.New("engine load failed")

	// ErrKeyFetchFailed indicates that the public key material for a chain could
	// not be fetched from the relay.
	ErrKeyFetchFailed = errors.New("public key fetch failed")

	// ErrChainDetectFailed indicates that the provider could not report its chain id.
	ErrChainDetectFailed = errors.New("chain detection failed")

	// ErrNetwork indicates a transport-level failure talking to the relay.
	ErrNetwork = errors.New("network error")

	// ErrNotReady indicates that an operation needed a ready instance but the
	// instance was never resolved or has been retired.
	ErrNotReady = errors.New("instance not ready")

	// ErrValueOutOfRange indicates that a value is outside the range of its declared width.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInputTooLarge indicates that an encrypted input exceeds the batch limits.
	ErrInputTooLarge = errors.New("encrypted input too large")

	// ErrEmptyInput indicates that Encrypt was called without any added value.
	ErrEmptyInput = errors.New("encrypted input is empty")

	// ErrInvalidAddress indicates a malformed hex address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidHandle indicates a malformed ciphertext handle.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrUserRejected indicates that the user declined the wallet signing request.
	ErrUserRejected = errors.New("user rejected")

	// ErrScopeMismatch indicates that a decrypt request targets a contract the
	// decryption signature does not cover.
	ErrScopeMismatch = errors.New("contract not covered by decryption signature")

	// ErrSignatureExpired indicates that a decryption signature is outside its validity window.
	ErrSignatureExpired = errors.New("decryption signature expired")

	// ErrInvalidSignature indicates that the relay refused a wallet signature.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrAccessDenied indicates that the relay refused to disclose a value.
	ErrAccessDenied = errors.New("access denied")

	// ErrNoContracts indicates that a decryption signature was requested for an empty contract set.
	ErrNoContracts = errors.New("no contract addresses")

	// ErrNoRequests indicates that a decrypt call was made without requests.
	ErrNoRequests = errors.New("no decrypt requests")

	// ErrUnknownEngineFormat indicates that no engine opener is registered for a bundle format.
	ErrUnknownEngineFormat = errors.New("unknown engine format")

	// ErrBundleDigestMismatch indicates that a bundle payload does not match its declared digest.
	ErrBundleDigestMismatch = errors.New("engine bundle digest mismatch")

	// ErrUnknownHandle indicates that the relay has no ciphertext for a handle.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrUnknownChain indicates that the relay does not serve the requested chain.
	ErrUnknownChain = errors.New("unknown chain")

	// ErrCorruptRecord indicates a persisted record that cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt stored record")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidRelay indicates an invalid relay configuration value.
	ErrConfigInvalidRelay = errors.New("invalid relay configuration")

	// ErrConfigInvalidStorage indicates an invalid storage configuration value.
	ErrConfigInvalidStorage = errors.New("invalid storage configuration")

	// ErrConfigInvalidChain indicates an invalid chain configuration value.
	ErrConfigInvalidChain = errors.New("invalid chain configuration")

	// ErrConfigInvalidEngine indicates an invalid engine configuration value.
	ErrConfigInvalidEngine = errors.New("invalid engine configuration")

	// ErrConfigInvalidSignature indicates an invalid signature policy value.
	ErrConfigInvalidSignature = errors.New("invalid signature configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLockTimedOut indicates a file lock could not be acquired within the timeout period.
	ErrLockTimedOut = errors.New("lock acquisition timed out")

	// ErrWalletKeyInvalid indicates that the wallet key file is unreadable or malformed.
	ErrWalletKeyInvalid = errors.New("invalid wallet key")

	// ErrInteractiveRequired indicates that interactive prompts are required but not available.
	ErrInteractiveRequired = errors.New("interactive prompt required")

	// ErrMenuCanceled indicates that the user canceled an interactive prompt.
	ErrMenuCanceled = errors.New("menu canceled")

	// ErrJSONErrorOutput indicates that an error has already been output as JSON.
	// This ensures a non-zero exit code while preventing duplicate error messages.
	ErrJSONErrorOutput = errors.New("error output as JSON")
)

// Retryable reports whether err belongs to the class of failures the caller
// may retry with backoff. Usage errors and user rejections are not retryable.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrEngineLoadFailed),
		errors.Is(err, ErrKeyFetchFailed),
		errors.Is(err, ErrChainDetectFailed),
		errors.Is(err, ErrNetwork):
		return true
	default:
		return false
	}
}

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
