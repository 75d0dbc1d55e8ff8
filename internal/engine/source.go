package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxBundleSize caps the bytes read from a bundle source.
const maxBundleSize = 256 << 20

// Source produces raw manifest bytes.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// NewSource returns an HTTPSource for http(s) locations and a FileSource otherwise.
func NewSource(location string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return &HTTPSource{URL: location}
	}
	return FileSource(location)
}

// HTTPSource downloads the manifest with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bundle request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download bundle: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download bundle: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return data, nil
}

func (s *HTTPSource) String() string { return s.URL }

// FileSource reads the manifest from a local path.
type FileSource string

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(string(s))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return data, nil
}

func (s FileSource) String() string { return string(s) }

// StaticSource serves manifest bytes held in memory.
type StaticSource []byte

// Fetch implements Source.
func (s StaticSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s StaticSource) String() string { return "builtin" }
