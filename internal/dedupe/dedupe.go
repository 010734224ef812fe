// Package dedupe coalesces concurrent identical operations: when several
// callers ask for the same key at once, one does the work and everyone
// shares the outcome. It holds no results after an operation settles; it
// is a coalescer, not a cache.
package dedupe

import (
	"fmt"
	"sync"
)

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Group coalesces in-flight calls by key. The zero value is ready to use.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

// Do executes fn under key, unless a call for that key is already in
// flight, in which case the caller blocks and receives that call's result.
// shared reports whether the result came from another caller's execution.
//
// The key is forgotten the moment fn settles, before waiters are released,
// so a Do that begins after completion always runs fn again.
func (g *Group[V]) Do(key string, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[V])
	}
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		<-c.done
		return c.val, c.err, true
	}
	c := &call[V]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	defer func() {
		// A panicking fn must still release waiters, with an error in
		// place of the result, or they would block forever.
		if r := recover(); r != nil {
			c.err = fmt.Errorf("coalesced call panicked: %v", r)
			g.settle(key, c)
			panic(r)
		}
		g.settle(key, c)
	}()

	c.val, c.err = fn()
	return c.val, c.err, false
}

// settle removes the registry entry, then releases waiters. The order
// matters: once any caller observes completion, the key must already be
// free for a fresh call.
func (g *Group[V]) settle(key string, c *call[V]) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
	close(c.done)
}

// InFlight reports how many keys currently have a running call.
func (g *Group[V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
