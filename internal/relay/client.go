package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
)

// maxResponseSize caps the bytes read from a relay response.
const maxResponseSize = 64 << 20

// Client talks to a decryption relay over HTTP JSON.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the relay at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: constants.DefaultRelayTimeout},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "relay").Logger()
	return c
}

var _ API = (*Client)(nil)

// BaseURL returns the relay base url.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Keys implements API.
func (c *Client) Keys(ctx context.Context, chainID uint64) (*KeyResponse, error) {
	var out KeyResponse
	path := constants.RelayKeysPath + strconv.FormatUint(chainID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InputProof implements API.
func (c *Client) InputProof(ctx context.Context, req *InputProofRequest) (*InputProofResponse, error) {
	var out InputProofResponse
	if err := c.do(ctx, http.MethodPost, constants.RelayInputProofPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserDecrypt implements API.
func (c *Client) UserDecrypt(ctx context.Context, req *UserDecryptRequest) (*UserDecryptResponse, error) {
	var out UserDecryptResponse
	if err := c.do(ctx, http.MethodPost, constants.RelayUserDecryptPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublicDecrypt implements API.
func (c *Client) PublicDecrypt(ctx context.Context, req *PublicDecryptRequest) (*PublicDecryptResponse, error) {
	var out PublicDecryptResponse
	if err := c.do(ctx, http.MethodPost, constants.RelayPublicDecryptPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkPublic asks a relay simulator to make handles publicly decryptable.
// Production relays do not serve this route.
func (c *Client) MarkPublic(ctx context.Context, req *MarkPublicRequest) error {
	return c.do(ctx, http.MethodPost, constants.RelaySimPublicPath, req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrNetwork, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(constants.RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.With().Str("method", method).Str("path", path).Str("request_id", requestID).Logger()
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Debug().Err(err).Msg("relay request failed")
		return fmt.Errorf("%w: %w", errors.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", errors.ErrNetwork, err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration_ms", time.Since(start)).
		Msg("relay request completed")

	if resp.StatusCode >= http.StatusBadRequest {
		var er ErrorResponse
		_ = json.Unmarshal(data, &er)
		if er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{
			Status:    resp.StatusCode,
			Code:      er.Code,
			Message:   er.Error,
			RequestID: requestID,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", errors.ErrNetwork, err)
	}
	return nil
}
