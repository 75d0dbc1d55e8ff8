package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fherrors "github.com/mrz1836/fhekit/internal/errors"
)

// testError is a custom error type used to test default branches
// in UserMessage and Actionable without matching any sentinel.
type testError struct {
	msg string
}

func (e testError) Error() string {
	return e.msg
}

func TestSentinelErrors_Messages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrNoProvider", fherrors.ErrNoProvider, "no provider"},
		{"ErrEngineLoadFailed", fherrors.ErrEngineLoadFailed, "engine load failed"},
		{"ErrKeyFetchFailed", fherrors.ErrKeyFetchFailed, "public key fetch failed"},
		{"ErrNotReady", fherrors.ErrNotReady, "instance not ready"},
		{"ErrValueOutOfRange", fherrors.ErrValueOutOfRange, "value out of range"},
		{"ErrUserRejected", fherrors.ErrUserRejected, "user rejected"},
		{"ErrAccessDenied", fherrors.ErrAccessDenied, "access denied"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		fherrors.ErrNoProvider,
		fherrors.ErrEngineLoadFailed,
		fherrors.ErrKeyFetchFailed,
		fherrors.ErrNetwork,
		fherrors.ErrNotReady,
		fherrors.ErrValueOutOfRange,
		fherrors.ErrUserRejected,
		fherrors.ErrScopeMismatch,
		fherrors.ErrAccessDenied,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}

func TestWrap_PreservesErrorChain(t *testing.T) {
	wrapped := fherrors.Wrap(fherrors.ErrKeyFetchFailed, "resolving chain 31337")

	require.ErrorIs(t, wrapped, fherrors.ErrKeyFetchFailed)
	assert.Equal(t, "resolving chain 31337: public key fetch failed", wrapped.Error())
}

func TestWrap_NilError(t *testing.T) {
	assert.NoError(t, fherrors.Wrap(nil, "context"))
	assert.NoError(t, fherrors.Wrapf(nil, "context %d", 1))
}

func TestWrapf_MessageFormat(t *testing.T) {
	err := fherrors.Wrapf(fherrors.ErrScopeMismatch, "contract %s", "0xaa")
	assert.Equal(t, "contract 0xaa: contract not covered by decryption signature", err.Error())
	assert.ErrorIs(t, err, fherrors.ErrScopeMismatch)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{fherrors.ErrEngineLoadFailed, true},
		{fmt.Errorf("wrapped: %w", fherrors.ErrKeyFetchFailed), true},
		{fherrors.ErrNetwork, true},
		{fherrors.ErrChainDetectFailed, true},
		{fherrors.ErrNoProvider, false},
		{fherrors.ErrUserRejected, false},
		{fherrors.ErrScopeMismatch, false},
		{fherrors.ErrAccessDenied, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, fherrors.Retryable(tc.err), "%v", tc.err)
	}
}

func TestUserMessage_WrappedErrors(t *testing.T) {
	err := fmt.Errorf("decrypting: %w", fherrors.ErrScopeMismatch)
	assert.Equal(t, "The decryption signature does not cover every requested contract.", fherrors.UserMessage(err))
}

func TestUserMessage_NilError(t *testing.T) {
	assert.Empty(t, fherrors.UserMessage(nil))
}

func TestUserMessage_UnknownError(t *testing.T) {
	err := testError{msg: "something odd"}
	assert.Equal(t, "something odd", fherrors.UserMessage(err))
}

func TestActionable(t *testing.T) {
	msg, action := fherrors.Actionable(fherrors.Wrap(fherrors.ErrSignatureExpired, "decrypt"))
	assert.Equal(t, "The decryption signature has expired.", msg)
	assert.Contains(t, action, "fhekit sign")

	msg, action = fherrors.Actionable(testError{msg: "plain"})
	assert.Equal(t, "plain", msg)
	assert.Empty(t, action)

	msg, action = fherrors.Actionable(nil)
	assert.Empty(t, msg)
	assert.Empty(t, action)
}

func TestExitCode2Error(t *testing.T) {
	err := fherrors.NewExitCode2Error(fherrors.ErrInvalidArgument)

	assert.Equal(t, fherrors.ErrInvalidArgument.Error(), err.Error())
	require.ErrorIs(t, err, fherrors.ErrInvalidArgument)
	assert.True(t, fherrors.IsExitCode2Error(fmt.Errorf("outer: %w", err)))
	assert.False(t, fherrors.IsExitCode2Error(fherrors.ErrInvalidArgument))
	assert.False(t, fherrors.IsExitCode2Error(nil))
}
