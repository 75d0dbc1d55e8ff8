package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mrz1836/fhekit/internal/errors"
)

// Manifest is the wire form of an engine bundle.
//
//	{
//	    "format": "sim",
//	    "version": "1.0.0",
//	    "sha256": "9f86d081884c7d65...",
//	    "payload": "eyJzY2hlbWUiOi..."
//	}
type Manifest struct {
	Format  string `json:"format"`
	Version string `json:"version"`
	SHA256  string `json:"sha256"`
	Payload []byte `json:"payload"`
}

// NewManifest builds a manifest for payload, computing its digest.
func NewManifest(format, version string, payload []byte) Manifest {
	sum := sha256.Sum256(payload)
	return Manifest{
		Format:  format,
		Version: version,
		SHA256:  hex.EncodeToString(sum[:]),
		Payload: payload,
	}
}

// Encode returns the JSON form of m.
func (m Manifest) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ParseManifest decodes a manifest and verifies its payload digest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode bundle manifest: %w", err)
	}
	if m.Format == "" {
		return nil, fmt.Errorf("%w: manifest has no format", errors.ErrUnknownEngineFormat)
	}
	sum := sha256.Sum256(m.Payload)
	if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, m.SHA256) {
		return nil, fmt.Errorf("%w: want %s, got %s", errors.ErrBundleDigestMismatch, m.SHA256, got)
	}
	return &m, nil
}
