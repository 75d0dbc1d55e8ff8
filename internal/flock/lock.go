package flock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mrz1836/fhekit/internal/errors"
)

// Lock is a held exclusive lock on a lock file.
type Lock struct {
	file *os.File
}

// Acquire opens path and takes an exclusive lock on it, polling every retry
// until the lock is free, timeout elapses (errors.ErrLockTimedOut) or ctx is
// done.
func Acquire(ctx context.Context, path string, timeout, retry time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //nolint:gosec // path is derived from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return nil, err
		}
		if tryLock(f.Fd()) == nil {
			return &Lock{file: f}, nil
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%w after %v: %s", errors.ErrLockTimedOut, timeout, path)
		}

		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = f.Close()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Release unlocks and closes the lock file. It is safe to call twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = unlock(l.file.Fd())
	err := l.file.Close()
	l.file = nil
	return err
}
