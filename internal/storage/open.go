package storage

import (
	"context"
	"fmt"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
)

// Backend names accepted by Open.
const (
	BackendMemory = constants.StorageBackendMemory
	BackendFile   = constants.StorageBackendFile
	BackendBadger = constants.StorageBackendBadger
	BackendRedis  = constants.StorageBackendRedis
)

// Backends lists the supported backend names.
func Backends() []string {
	return []string{BackendMemory, BackendFile, BackendBadger, BackendRedis}
}

// Options selects and configures a backend.
type Options struct {
	// Backend is one of memory, file, badger, redis.
	Backend string

	// Path is the JSON document for file and the directory for badger.
	Path string

	// RedisURL is the server url for redis.
	RedisURL string
}

// Open returns the Store described by opts. Callers release it with Close.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: file backend needs a path", errors.ErrConfigInvalidStorage)
		}
		return NewFile(opts.Path), nil
	case BackendBadger:
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: badger backend needs a path", errors.ErrConfigInvalidStorage)
		}
		return OpenBadger(opts.Path)
	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("%w: redis backend needs a url", errors.ErrConfigInvalidStorage)
		}
		return OpenRedis(ctx, opts.RedisURL)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", errors.ErrConfigInvalidStorage, opts.Backend)
	}
}
