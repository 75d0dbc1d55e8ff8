package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
	"github.com/mrz1836/fhekit/internal/flock"
)

// File is a Store persisted as a single JSON object on disk. Every operation
// re-reads the document under an exclusive file lock so that processes
// sharing the file never observe a torn write.
type File struct {
	path        string
	lockTimeout time.Duration
}

// FileOption configures a File store.
type FileOption func(*File)

// WithLockTimeout sets a custom lock timeout.
func WithLockTimeout(timeout time.Duration) FileOption {
	return func(f *File) {
		f.lockTimeout = timeout
	}
}

// NewFile creates a File store at path. The parent directory is created on first write.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{
		path:        path,
		lockTimeout: constants.DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the document path.
func (f *File) Path() string {
	return f.path
}

// Get implements Store.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := f.withLock(ctx, func() error {
		doc, err := f.read()
		if err != nil {
			return err
		}
		value, ok = doc[key]
		return nil
	})
	return value, ok, err
}

// Set implements Store.
func (f *File) Set(ctx context.Context, key, value string) error {
	return f.withLock(ctx, func() error {
		doc, err := f.read()
		if err != nil {
			return err
		}
		if value == "" {
			if _, ok := doc[key]; !ok {
				return nil
			}
			delete(doc, key)
		} else {
			doc[key] = value
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode store: %w", err)
		}
		return atomicWrite(f.path, data)
	})
}

func (f *File) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	lock, err := flock.Acquire(ctx, f.path+".lock", f.lockTimeout, constants.LockRetryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = lock.Release() }()
	return fn()
}

func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	doc := make(map[string]string)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrCorruptRecord, f.path, err)
	}
	return doc, nil
}

// atomicWrite writes data to a file atomically using temp file + rename.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
