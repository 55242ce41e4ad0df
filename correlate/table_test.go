package correlate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tailbeam/rpcengine/protocol"
)

func TestNextID_MonotonicAcrossConcurrentCallers(t *testing.T) {
	table := New()
	const n = 200
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- table.NextID()
		}()
	}
	wg.Wait()
	close(seen)

	ids := make(map[int64]bool, n)
	for id := range seen {
		if ids[id] {
			t.Fatalf("duplicate id %d", id)
		}
		ids[id] = true
	}
	if len(ids) != n {
		t.Fatalf("got %d unique ids, want %d", len(ids), n)
	}
}

// TestSettle_ExactlyOnce pins Testable Property #3: every sendRequest future
// settles exactly once, even under a racing Settle/Cancel.
func TestSettle_ExactlyOnce(t *testing.T) {
	table := New()
	id := protocol.IntID(1)
	p := table.Register(id, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		table.Settle(id, json.RawMessage(`"ok"`), nil)
	}()
	go func() {
		defer wg.Done()
		table.Cancel(id)
	}()
	wg.Wait()

	result, err := p.Wait(context.Background())
	// Whichever settler won, the future must have a single consistent answer.
	if err == nil && string(result) != `"ok"` {
		t.Fatalf("unexpected settled result: %q", result)
	}
}

func TestSettle_UnknownIDLoggedAndDropped(t *testing.T) {
	table := New()
	if table.Settle(protocol.IntID(404), nil, nil) {
		t.Fatal("Settle on unknown id should return false")
	}
}

func TestWait_CtxCancelFiresOnCancelHook(t *testing.T) {
	table := New()
	id := protocol.IntID(5)
	fired := make(chan struct{})
	p := table.Register(id, func() { close(fired) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx)
	if !errors.Is(err, ErrCancelledLocally) {
		t.Fatalf("err = %v, want ErrCancelledLocally", err)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("onCancel hook never fired")
	}
	if table.Len() != 0 {
		t.Fatalf("table.Len() = %d, want 0 after cancellation", table.Len())
	}
}

// TestDrain pins Testable Property #5 at the table level: every PendingRequest
// settles once Drain is called.
func TestDrain(t *testing.T) {
	table := New()
	var futures []*PendingRequest
	for i := int64(1); i <= 3; i++ {
		futures = append(futures, table.Register(protocol.IntID(i), func() {
			t.Fatal("onCancel must not fire on Drain")
		}))
	}

	table.Drain()

	for _, f := range futures {
		_, err := f.Wait(context.Background())
		if !errors.Is(err, ErrConnectionClosed) {
			t.Fatalf("err = %v, want ErrConnectionClosed", err)
		}
	}
	if table.Len() != 0 {
		t.Fatalf("table.Len() = %d, want 0", table.Len())
	}
}

func TestSettle_ResponseWithError(t *testing.T) {
	table := New()
	id := protocol.IntID(1)
	p := table.Register(id, nil)

	rpcErr := protocol.NewRPCError(protocol.ClassMethodNotFound, "nope", nil)
	table.Settle(id, nil, rpcErr)

	_, err := p.Wait(context.Background())
	if err == nil {
		t.Fatal("want non-nil error")
	}
	var got *protocol.RPCError
	if !errors.As(err, &got) || !got.IsMethodNotFound() {
		t.Fatalf("err = %v, want RPCError(MethodNotFound)", err)
	}
}
