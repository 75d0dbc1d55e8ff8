// Package ctxutil provides context utility functions.
package ctxutil

import (
	"context"
	"time"
)

// Canceled checks if the context has been canceled or exceeded its deadline.
// Returns the context error if done (Canceled or DeadlineExceeded), nil otherwise.
// Used at function entry points before starting network or wallet work.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}

// Detached returns a context that keeps ctx's values (logger, request ids)
// but not its cancellation, bounded by timeout when timeout > 0.
// Shared single-flight work runs on a detached context so that one caller
// leaving does not abort the work for the others.
func Detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}
