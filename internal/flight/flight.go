// Package flight provides a keyed single-flight group whose shared call is
// cancelled once every caller waiting on it has gone away.
//
// It differs from golang.org/x/sync/singleflight in two ways: the function
// receives a context that is cancelled when the last waiter leaves, and a
// call can be cancelled explicitly by key.
package flight

import (
	"context"
	"sync"
)

// Group runs at most one call per key at a time.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

type call[V any] struct {
	done    chan struct{}
	val     V
	err     error
	waiters int
	cancel  context.CancelFunc
}

// Do runs fn for key unless a call for key is in flight, in which case it
// waits for that call. fn runs on a context that keeps ctx's values but is
// cancelled only when every waiter has returned early or Cancel is called.
// shared reports whether the result came from a call started by another caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	c, ok := g.calls[key]
	if ok {
		c.waiters++
	} else {
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call[V]{done: make(chan struct{}), waiters: 1, cancel: cancel}
		g.calls[key] = c
		go g.run(cctx, key, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, ok, c.err
	case <-ctx.Done():
		g.leave(key, c)
		var zero V
		return zero, ok, ctx.Err()
	}
}

func (g *Group[K, V]) run(ctx context.Context, key K, c *call[V], fn func(ctx context.Context) (V, error)) {
	defer c.cancel()
	c.val, c.err = fn(ctx)

	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	close(c.done)
}

func (g *Group[K, V]) leave(key K, c *call[V]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return
	}
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	c.cancel()
}

// Cancel cancels the call for key, if any, and forgets it so the next Do
// starts a fresh call. Waiters of the cancelled call receive whatever fn
// returns after its context is cancelled.
func (g *Group[K, V]) Cancel(key K) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		delete(g.calls, key)
		c.cancel()
	}
}

// InFlight reports whether a call for key is running.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}
