// Package signal cancels the CLI context on SIGINT or SIGTERM so that long
// running commands such as 'fhekit relay serve' shut down cleanly.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ErrInterrupted is the cancellation cause when a signal arrived.
var ErrInterrupted = errors.New("interrupted")

// Handler owns a context that is canceled with ErrInterrupted on the first
// SIGINT or SIGTERM.
type Handler struct {
	ctx    context.Context //nolint:containedctx // handler manages context lifecycle
	cancel context.CancelCauseFunc
	sigs   chan os.Signal
	done   chan struct{}
	stop   sync.Once
}

// NewHandler starts listening for signals. Callers must Stop it.
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//	err := run(h.Context())
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancelCause(parent)
	h := &Handler{
		ctx:    ctx,
		cancel: cancel,
		// Buffer of 1 so signal.Notify never drops the first signal.
		sigs: make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(h.sigs, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()
	return h
}

// Context returns the cancellable context.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether the context was canceled by a signal.
func (h *Handler) Interrupted() bool {
	return errors.Is(context.Cause(h.ctx), ErrInterrupted)
}

// Stop stops listening and cancels the context.
func (h *Handler) Stop() {
	h.stop.Do(func() {
		signal.Stop(h.sigs)
		close(h.done)
		h.cancel(context.Canceled)
	})
}

func (h *Handler) listen() {
	for {
		select {
		case <-h.done:
			return
		case sig := <-h.sigs:
			// Only the first cause sticks; later signals are drained.
			h.cancel(fmt.Errorf("%w by %s", ErrInterrupted, sig))
		}
	}
}
