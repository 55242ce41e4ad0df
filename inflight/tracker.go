// Package inflight tracks inbound requests currently executing on the
// connection (spec.md calls this "cancel" in its data model; it's named
// inflight here to avoid colliding with context.CancelFunc in this very
// package). Every inbound request gets a cancellation source derived from
// the connection's root source, so tearing down the connection tears down
// every handler in flight, and a peer's cancel notification can trip just
// one request's source by id.
package inflight

import (
	"context"
	"sync"

	"github.com/tailbeam/rpcengine/protocol"
)

// Execution is one inbound request's cancellation handle. It satisfies
// registry.HandlerContext.
type Execution struct {
	ID protocol.ID

	ctx    context.Context
	cancel context.CancelFunc
}

// Done is closed when this execution's source trips, whether from an
// explicit peer cancel or from the connection's root source tearing down.
func (e *Execution) Done() <-chan struct{} {
	return e.ctx.Done()
}

// Context returns the derived context, suitable for passing to downstream
// blocking calls a handler makes.
func (e *Execution) Context() context.Context {
	return e.ctx
}

// Tracker holds the connection's root cancellation source and the set of
// currently-executing inbound requests. Safe for concurrent use.
type Tracker struct {
	root       context.Context
	cancelRoot context.CancelFunc

	mu    sync.Mutex
	execs map[protocol.ID]*Execution
}

// New creates a Tracker whose root source is derived from parent. Cancelling
// parent (or calling Shutdown) trips every currently-tracked Execution.
func New(parent context.Context) *Tracker {
	root, cancel := context.WithCancel(parent)
	return &Tracker{root: root, cancelRoot: cancel, execs: make(map[protocol.ID]*Execution)}
}

// RootContext returns the connection-level cancellation context directly —
// for inbound items with no id to cancel by (notifications/events), which
// still must tear down when the connection does but can't be individually
// targeted by a peer cancel message.
func (t *Tracker) RootContext() context.Context {
	return t.root
}

// Begin starts tracking a new inbound request, returning its Execution. The
// caller must call End when the handler completes, successfully or not, to
// release the derived context's resources.
func (t *Tracker) Begin(id protocol.ID) *Execution {
	ctx, cancel := context.WithCancel(t.root)
	e := &Execution{ID: id, ctx: ctx, cancel: cancel}

	t.mu.Lock()
	t.execs[id] = e
	t.mu.Unlock()
	return e
}

// End stops tracking id and releases its derived context. Releasing the
// context closes the execution's Done channel, which a handler that has
// already returned no longer observes.
func (t *Tracker) End(id protocol.ID) {
	t.mu.Lock()
	e, ok := t.execs[id]
	if ok {
		delete(t.execs, id)
	}
	t.mu.Unlock()
	if ok {
		e.cancel()
	}
}

// Cancel trips the cancellation source for the inbound request identified by
// id — the effect of receiving $/cancelRequest or DAP's cancel request
// (spec.md §4.5, Testable Property #7). Returns false if no execution is
// currently tracked under id (already completed, or never existed).
func (t *Tracker) Cancel(id protocol.ID) bool {
	t.mu.Lock()
	e, ok := t.execs[id]
	if ok {
		delete(t.execs, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel()
	return true
}

// Shutdown cancels the root source, tripping every currently-tracked
// Execution's Done channel, and clears the tracked set. Called once when the
// connection tears down.
func (t *Tracker) Shutdown() {
	t.cancelRoot()
	t.mu.Lock()
	t.execs = make(map[protocol.ID]*Execution)
	t.mu.Unlock()
}

// Len reports the number of currently-executing inbound requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.execs)
}
