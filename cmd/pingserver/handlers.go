package main

import (
	"encoding/json"
	"time"

	"github.com/tailbeam/rpcengine/protocol"
	"github.com/tailbeam/rpcengine/registry"
)

// handlePing answers immediately with a timestamped pong, demonstrating the
// simplest possible round trip (spec.md §8's E2E-1/E2E-2).
func handlePing(_ registry.HandlerContext, _ json.RawMessage) (any, error) {
	return map[string]any{
		"pong": true,
		"time": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// handleSlow sleeps long enough that a caller exercising the cancellation
// path (spec.md §8's E2E-3) has time to abandon its request before this
// returns. ctx.Done() fires the instant the peer's $/cancelRequest (or DAP
// "cancel") reaches the inflight tracker.
func handleSlow(ctx registry.HandlerContext, _ json.RawMessage) (any, error) {
	select {
	case <-time.After(30 * time.Second):
		return map[string]any{"done": true}, nil
	case <-ctx.Done():
		return nil, protocol.NewRPCError(protocol.ClassRequestCancelled, "slow handler cancelled", nil)
	}
}
