package ctxutil_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/fhekit/internal/ctxutil"
)

type ctxKey struct{}

func TestCanceled(t *testing.T) {
	t.Parallel()

	t.Run("returns nil for active context", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, ctxutil.Canceled(context.Background()))
	})

	t.Run("returns error for canceled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, ctxutil.Canceled(ctx), context.Canceled)
	})

	t.Run("returns error for expired deadline", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		assert.True(t, errors.Is(ctxutil.Canceled(ctx), context.DeadlineExceeded))
	})
}

func TestDetached(t *testing.T) {
	t.Parallel()

	t.Run("survives parent cancellation and keeps values", func(t *testing.T) {
		t.Parallel()
		parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
		detached, stop := ctxutil.Detached(parent, 0)
		defer stop()

		cancel()

		require.NoError(t, detached.Err())
		assert.Equal(t, "v", detached.Value(ctxKey{}))
	})

	t.Run("applies timeout", func(t *testing.T) {
		t.Parallel()
		detached, stop := ctxutil.Detached(context.Background(), time.Millisecond)
		defer stop()

		<-detached.Done()
		assert.ErrorIs(t, detached.Err(), context.DeadlineExceeded)
	})
}
