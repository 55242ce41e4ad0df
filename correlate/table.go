// Package correlate implements the correlation table described in spec.md
// §4.3: one completion slot per outgoing request, keyed by request id, with
// a cancellation hook that lets the connection driver send a best-effort
// cancel notification to the peer.
package correlate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/tailbeam/rpcengine/protocol"
)

// ErrCancelledLocally is returned by Wait when the caller's context was
// cancelled before the peer answered.
var ErrCancelledLocally = errors.New("correlate: request cancelled by caller")

// ErrConnectionClosed is returned by Wait when the connection drained before
// the peer answered.
var ErrConnectionClosed = errors.New("correlate: connection closed")

// PendingRequest is one outstanding outgoing request awaiting its Response.
// The zero value is not usable; construct via Table.Register.
type PendingRequest struct {
	ID protocol.ID

	table    *Table
	done     chan struct{}
	settled  atomic.Bool
	result   json.RawMessage
	err      error
	onCancel func()
}

// Wait blocks until the peer's Response settles this request or ctx is
// cancelled first. On ctx cancellation it removes the entry from the table
// and fires the registered cancellation hook (best-effort peer notification)
// before returning ErrCancelledLocally.
func (p *PendingRequest) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		p.table.cancel(p.ID, ErrCancelledLocally)
		return nil, ErrCancelledLocally
	}
}

func (p *PendingRequest) settle(result json.RawMessage, err error) {
	if p.settled.CompareAndSwap(false, true) {
		p.result = result
		p.err = err
		close(p.done)
	}
}

// Table maps outgoing request id to PendingRequest. Safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	pending map[protocol.ID]*PendingRequest
	nextID  atomic.Int64
}

// New creates an empty correlation table. Ids are allocated starting at 1.
func New() *Table {
	return &Table{pending: make(map[protocol.ID]*PendingRequest)}
}

// NextID allocates the next monotonic request id. Safe for concurrent callers
// — ids are unique by construction, so collisions are impossible.
func (t *Table) NextID() int64 {
	return t.nextID.Add(1)
}

// Register creates a PendingRequest for id and enters it into the table.
// onCancel, if non-nil, is invoked exactly once if this entry is settled via
// caller-side cancellation (Wait's ctx firing, or an explicit Cancel call) —
// never on normal completion or on Drain. It is the connection driver's hook
// for enqueueing a best-effort cancel notification to the peer.
func (t *Table) Register(id protocol.ID, onCancel func()) *PendingRequest {
	p := &PendingRequest{ID: id, table: t, done: make(chan struct{}), onCancel: onCancel}
	t.mu.Lock()
	t.pending[id] = p
	t.mu.Unlock()
	return p
}

// Settle completes the PendingRequest for id with the peer's Response. It
// returns false if no PendingRequest is registered for id — the caller
// should log and drop, per spec.md §4.5 ("Response: ... If no PendingRequest
// matches, log and drop").
func (t *Table) Settle(id protocol.ID, result json.RawMessage, rpcErr *protocol.RPCError) bool {
	p := t.remove(id)
	if p == nil {
		return false
	}
	var err error
	if rpcErr != nil {
		err = rpcErr
	}
	p.settle(result, err)
	return true
}

// cancel settles and removes the entry for id with err, then fires its
// cancellation hook. Used both by PendingRequest.Wait (ctx cancellation) and
// by Cancel (explicit caller abandonment).
func (t *Table) cancel(id protocol.ID, err error) bool {
	p := t.remove(id)
	if p == nil {
		return false
	}
	p.settle(nil, err)
	if p.onCancel != nil {
		p.onCancel()
	}
	return true
}

// Cancel abandons the outgoing request for id: it settles the future with
// ErrCancelledLocally and fires the cancellation hook. Returns false if id
// was already settled or never registered.
func (t *Table) Cancel(id protocol.ID) bool {
	return t.cancel(id, ErrCancelledLocally)
}

// Drain settles every remaining PendingRequest with ErrConnectionClosed,
// without firing cancellation hooks (the peer is gone; there's no one to
// notify). Called once on Connection shutdown.
func (t *Table) Drain() {
	t.mu.Lock()
	remaining := t.pending
	t.pending = make(map[protocol.ID]*PendingRequest)
	t.mu.Unlock()

	for _, p := range remaining {
		p.settle(nil, ErrConnectionClosed)
	}
}

// Len reports the number of currently outstanding requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Table) remove(id protocol.ID) *PendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if !ok {
		return nil
	}
	delete(t.pending, id)
	return p
}
