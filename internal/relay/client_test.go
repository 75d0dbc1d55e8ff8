package relay_test

import (
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"github.com/mrz1836/fhekit/internal/clock"
	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/eip712"
	fherrors "github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/relay"
	"github.com/mrz1836/fhekit/internal/relaysim"
	"github.com/mrz1836/fhekit/internal/sim"
	"github.com/mrz1836/fhekit/internal/storage"
)

const (
	chainID  uint64 = 31337
	contract        = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func newRelay(t *testing.T, now time.Time) *relay.Client {
	t.Helper()
	network := sim.NewNetwork(storage.NewMemory(), sim.WithClock(clock.NewManual(now)))
	srv := httptest.NewServer(relaysim.New(network, zerolog.Nop(), chainID).Handler())
	t.Cleanup(srv.Close)
	return relay.NewClient(srv.URL+"/", relay.WithTimeout(5*time.Second))
}

func encryptInput(t *testing.T, c *relay.Client, user string, values ...domain.ClearValue) *relay.InputProofResponse {
	t.Helper()
	ctx := context.Background()
	keys, err := c.Keys(ctx, chainID)
	require.NoError(t, err)

	ct, err := sim.NewEngine().Seal(&domain.PublicKeySet{PublicKey: keys.PublicKey}, values)
	require.NoError(t, err)

	resp, err := c.InputProof(ctx, &relay.InputProofRequest{
		ChainID:         chainID,
		ContractAddress: contract,
		UserAddress:     user,
		Ciphertext:      ct,
	})
	require.NoError(t, err)
	return resp
}

func TestClient_Keys(t *testing.T) {
	c := newRelay(t, time.Now())
	assert.False(t, strings.HasSuffix(c.BaseURL(), "/"))

	resp, err := c.Keys(context.Background(), chainID)
	require.NoError(t, err)
	assert.Equal(t, chainID, resp.ChainID)
	assert.Equal(t, domain.KeyIDFor(resp.PublicKey), resp.KeyID)

	_, err = c.Keys(context.Background(), 5)
	require.ErrorIs(t, err, fherrors.ErrUnknownChain)

	var se *relay.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, relay.CodeUnknownChain, se.Code)
	assert.NotEmpty(t, se.RequestID)
}

func TestClient_UserDecryptRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	c := newRelay(t, now)
	wallet, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := strings.ToLower(crypto.PubkeyToAddress(wallet.PublicKey).Hex())

	input := encryptInput(t, c, user, domain.Uint64Value(domain.TypeUint64, 42))
	require.Len(t, input.Handles, 1)

	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	payload := eip712.UserDecrypt{
		ChainID:           chainID,
		VerifyingContract: constants.DefaultDecryptionContract,
		PublicKey:         pub[:],
		ContractAddresses: []string{contract},
		StartTimestamp:    now.Unix(),
		DurationDays:      7,
	}
	hash, err := payload.Hash()
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, wallet)
	require.NoError(t, err)

	req := &relay.UserDecryptRequest{
		Requests:          relay.Pairs([]domain.DecryptRequest{{Handle: input.Handles[0], ContractAddress: contract}}),
		PublicKey:         pub[:],
		Signature:         sig,
		ContractAddresses: []string{contract},
		UserAddress:       user,
		StartTimestamp:    now.Unix(),
		DurationDays:      7,
		ChainID:           chainID,
	}
	resp, err := c.UserDecrypt(context.Background(), req)
	require.NoError(t, err)

	word, ok := box.OpenAnonymous(nil, resp.Results[input.Handles[0]], pub, priv)
	require.True(t, ok)
	v, err := domain.ClearValueFromWord(domain.TypeUint64, word)
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())

	req.DurationDays = 8
	_, err = c.UserDecrypt(context.Background(), req)
	require.ErrorIs(t, err, fherrors.ErrInvalidSignature)
}

func TestClient_PublicDecrypt(t *testing.T) {
	c := newRelay(t, time.Now())
	user := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	input := encryptInput(t, c, user, domain.BoolValue(true))
	ctx := context.Background()
	req := &relay.PublicDecryptRequest{
		ChainID:  chainID,
		Requests: []relay.HandleContractPair{{Handle: input.Handles[0], ContractAddress: contract}},
	}

	_, err := c.PublicDecrypt(ctx, req)
	require.ErrorIs(t, err, fherrors.ErrAccessDenied)

	require.NoError(t, c.MarkPublic(ctx, &relay.MarkPublicRequest{ChainID: chainID, Handles: input.Handles}))
	resp, err := c.PublicDecrypt(ctx, req)
	require.NoError(t, err)
	v, err := domain.ClearValueFromWord(domain.TypeBool, resp.Results[input.Handles[0]])
	require.NoError(t, err)
	assert.Equal(t, "true", v.String())
}

func TestClient_NetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := relay.NewClient(url).Keys(context.Background(), chainID)
	require.ErrorIs(t, err, fherrors.ErrNetwork)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = relay.NewClient(url).Keys(ctx, chainID)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_NonJSONErrorsAndRequestID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(constants.RequestIDHeader)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := relay.NewClient(srv.URL, relay.WithHTTPClient(srv.Client())).Keys(context.Background(), chainID)
	require.ErrorIs(t, err, fherrors.ErrNetwork)
	assert.NotEmpty(t, gotID)

	var se *relay.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gotID, se.RequestID)
	assert.Contains(t, se.Error(), "502")
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{"))
	}))
	defer srv.Close()

	_, err := relay.NewClient(srv.URL).Keys(context.Background(), chainID)
	require.ErrorIs(t, err, fherrors.ErrNetwork)
}

func TestStatusError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		code   string
		want   error
	}{
		{http.StatusForbidden, relay.CodeAccessDenied, fherrors.ErrAccessDenied},
		{http.StatusForbidden, "", fherrors.ErrAccessDenied},
		{http.StatusUnauthorized, "", fherrors.ErrInvalidSignature},
		{http.StatusUnauthorized, relay.CodeSignatureExpired, fherrors.ErrSignatureExpired},
		{http.StatusForbidden, relay.CodeScopeMismatch, fherrors.ErrScopeMismatch},
		{http.StatusNotFound, relay.CodeUnknownHandle, fherrors.ErrUnknownHandle},
		{http.StatusServiceUnavailable, "", fherrors.ErrNetwork},
		{http.StatusTeapot, "", fherrors.ErrInvalidArgument},
	}
	for _, tc := range tests {
		err := &relay.StatusError{Status: tc.status, Code: tc.code}
		assert.ErrorIs(t, err, tc.want, "%d %s", tc.status, tc.code)
	}
}

func TestClassify(t *testing.T) {
	status, code := relay.Classify(fherrors.Wrap(fherrors.ErrAccessDenied, "x"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, relay.CodeAccessDenied, code)

	status, code = relay.Classify(fherrors.ErrInvalidHandle)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, relay.CodeBadRequest, code)

	status, code = relay.Classify(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, relay.CodeInternal, code)
}
