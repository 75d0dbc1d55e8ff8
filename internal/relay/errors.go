package relay

import (
	"errors"
	"fmt"
	"net/http"

	fherrors "github.com/mrz1836/fhekit/internal/errors"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeAccessDenied     = "access_denied"
	CodeInvalidSignature = "invalid_signature"
	CodeSignatureExpired = "signature_expired"
	CodeScopeMismatch    = "scope_mismatch"
	CodeUnknownHandle    = "unknown_handle"
	CodeUnknownChain     = "unknown_chain"
	CodeBadRequest       = "bad_request"
	CodeInternal         = "internal"
)

// codeTable maps codes to sentinels and HTTP statuses. Order matters for
// Classify: the first sentinel matched wins.
//
//nolint:gochecknoglobals // static mapping
var codeTable = []struct {
	code   string
	status int
	err    error
}{
	{CodeAccessDenied, http.StatusForbidden, fherrors.ErrAccessDenied},
	{CodeScopeMismatch, http.StatusForbidden, fherrors.ErrScopeMismatch},
	{CodeInvalidSignature, http.StatusUnauthorized, fherrors.ErrInvalidSignature},
	{CodeSignatureExpired, http.StatusUnauthorized, fherrors.ErrSignatureExpired},
	{CodeUnknownHandle, http.StatusNotFound, fherrors.ErrUnknownHandle},
	{CodeUnknownChain, http.StatusNotFound, fherrors.ErrUnknownChain},
	{CodeBadRequest, http.StatusBadRequest, fherrors.ErrInvalidArgument},
}

// StatusError is a relay error response. It unwraps to the sentinel named
// by its code, or to ErrNetwork for unrecognized server failures.
type StatusError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("relay returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap returns the sentinel for the error code.
func (e *StatusError) Unwrap() error {
	for _, entry := range codeTable {
		if entry.code == e.Code {
			return entry.err
		}
	}
	switch {
	case e.Status == http.StatusForbidden:
		return fherrors.ErrAccessDenied
	case e.Status == http.StatusUnauthorized:
		return fherrors.ErrInvalidSignature
	case e.Status >= http.StatusInternalServerError:
		return fherrors.ErrNetwork
	default:
		return fherrors.ErrInvalidArgument
	}
}

// badRequestErrs are usage errors reported as 400 bad_request.
//
//nolint:gochecknoglobals // static mapping
var badRequestErrs = []error{
	fherrors.ErrInvalidHandle,
	fherrors.ErrInvalidAddress,
	fherrors.ErrValueOutOfRange,
	fherrors.ErrInputTooLarge,
	fherrors.ErrEmptyInput,
	fherrors.ErrNoRequests,
}

// Classify returns the HTTP status and code a server reports for err.
func Classify(err error) (int, string) {
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.status, entry.code
		}
	}
	for _, target := range badRequestErrs {
		if errors.Is(err, target) {
			return http.StatusBadRequest, CodeBadRequest
		}
	}
	return http.StatusInternalServerError, CodeInternal
}
