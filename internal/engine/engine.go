// Package engine loads the external FHE engine bundle once per process and
// exposes the engine boundary used to seal cleartext inputs.
//
// A bundle is a JSON manifest naming an engine format, a version, the
// sha256 of its payload and the payload itself. Engines register an Opener
// per format, the way database/sql drivers register themselves.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mrz1836/fhekit/internal/domain"
	"github.com/mrz1836/fhekit/internal/errors"
)

// Engine encrypts typed cleartexts under a chain public key.
type Engine interface {
	// Name identifies the engine implementation.
	Name() string

	// Seal encrypts values as one ciphertext batch. Sealing is randomized:
	// the same inputs never produce the same ciphertext twice.
	Seal(keys *domain.PublicKeySet, values []domain.ClearValue) ([]byte, error)
}

// Opener builds an Engine from a verified bundle payload.
type Opener func(payload []byte) (Engine, error)

// Bundle is a loaded and opened engine.
type Bundle struct {
	Format   string
	Version  string
	Digest   string
	Engine   Engine
	LoadedAt time.Time
}

//nolint:gochecknoglobals // process-wide opener registry
var (
	openersMu sync.RWMutex
	openers   = make(map[string]Opener)
)

// Register makes an Opener available for a bundle format. Registering the
// same format twice, or a nil opener, panics.
func Register(format string, opener Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if opener == nil {
		panic("engine: Register opener is nil")
	}
	if _, dup := openers[format]; dup {
		panic("engine: Register called twice for format " + format)
	}
	openers[format] = opener
}

// Formats returns the registered bundle formats, sorted.
func Formats() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	out := make([]string, 0, len(openers))
	for f := range openers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func open(format string, payload []byte) (Engine, error) {
	openersMu.RLock()
	opener, ok := openers[format]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEngineFormat, format)
	}
	return opener(payload)
}
