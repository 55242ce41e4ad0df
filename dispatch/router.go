// Package dispatch implements the request router described in spec.md
// §4.5: for each inbound envelope it looks up the registered handler,
// decodes the payload, invokes the handler under the process scheduler, and
// turns the result into a reply (or settles the correlation table, for
// Responses). It is protocol-agnostic — LSP and DAP differ only in the
// CancelMethod/ExtractCancelledID the connection driver configures.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/tailbeam/rpcengine/correlate"
	"github.com/tailbeam/rpcengine/inflight"
	"github.com/tailbeam/rpcengine/protocol"
	"github.com/tailbeam/rpcengine/registry"
	"github.com/tailbeam/rpcengine/schedule"
)

// Sender enqueues an outgoing envelope. Implemented by rpcconn.Connection's
// outgoing queue.
type Sender interface {
	Send(env protocol.Envelope)
}

// Config wires a Router to the rest of the connection. CancelMethod and
// ExtractCancelledID are the one protocol-specific seam: LSP supplies
// ($/cancelRequest, CancelledIDLSP), DAP supplies (cancel, CancelledIDDAP).
type Config struct {
	Registry  *registry.Registry
	Scheduler *schedule.Scheduler
	Correlate *correlate.Table
	Inflight  *inflight.Tracker
	Sender    Sender

	CancelMethod       string
	ExtractCancelledID func(params json.RawMessage) (protocol.ID, bool)

	// NextOutSeq allocates the next outgoing sequence number, shared with
	// the connection's request-id counter (spec.md §9 Open Question #3,
	// resolved in SPEC_FULL.md §11.3). Only consumed for DAP Responses.
	NextOutSeq func() int64

	// Limiter optionally throttles inbound Request admission (not
	// Notifications or Responses). Nil disables rate limiting.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

// Router dispatches classified envelopes to registered handlers.
type Router struct {
	cfg Config
	log *slog.Logger
}

// New creates a Router. cfg.Logger may be nil; a discarding logger is used.
func New(cfg Config) *Router {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Router{cfg: cfg, log: log}
}

// Route handles one inbound envelope. It never blocks on handler execution
// for Request/Notification kinds — those are handed to the scheduler — but
// it does block briefly to enqueue the scheduled item.
func (r *Router) Route(env protocol.Envelope) {
	switch e := env.(type) {
	case *protocol.Request:
		r.routeRequest(e)
	case *protocol.Notification:
		r.routeNotification(e)
	case *protocol.Response:
		r.routeResponse(e)
	case *protocol.Invalid:
		r.log.Warn("dropping invalid envelope", "reason", e.Reason)
	}
}

func (r *Router) routeRequest(req *protocol.Request) {
	if req.Method == r.cfg.CancelMethod {
		r.handleCancelRequest(req)
		return
	}

	rec := r.cfg.Registry.Lookup(req.Method)
	if rec == nil {
		r.send(protocol.ErrorResponse(req.ID, registry.MethodNotFoundError(req.Method)))
		return
	}

	exec := r.cfg.Inflight.Begin(req.ID)
	processType := rec.Type

	if err := r.cfg.Scheduler.Submit(schedule.Item{Type: processType, Run: func(ctx context.Context) {
		defer r.cfg.Inflight.End(req.ID)
		r.invokeRequestHandler(exec, rec, req)
	}}); err != nil {
		r.cfg.Inflight.End(req.ID)
		r.send(protocol.ErrorResponse(req.ID, protocol.NewRPCError(protocol.ClassInternalError, "scheduler unavailable", nil)))
	}
}

func (r *Router) invokeRequestHandler(exec *inflight.Execution, rec *registry.HandlerRecord, req *protocol.Request) {
	if r.cfg.Limiter != nil {
		if err := r.cfg.Limiter.Wait(exec.Context()); err != nil {
			r.send(protocol.ErrorResponse(req.ID, protocol.NewRPCError(protocol.ClassRequestCancelled, "rate limit wait cancelled", nil)))
			return
		}
	}

	select {
	case <-exec.Done():
		r.send(protocol.ErrorResponse(req.ID, protocol.NewRPCError(protocol.ClassRequestCancelled, "request cancelled", nil)))
		return
	default:
	}

	result, err := r.invoke(exec, rec, req.Params)
	if err != nil {
		if rpcErr, ok := err.(*protocol.RPCError); ok {
			r.send(protocol.ErrorResponse(req.ID, rpcErr))
			return
		}
		r.send(protocol.ErrorResponse(req.ID, protocol.NewRPCError(protocol.ClassInternalError, err.Error(), nil)))
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		r.send(protocol.ErrorResponse(req.ID, protocol.NewRPCError(protocol.ClassInternalError, fmt.Sprintf("marshaling result: %v", err), nil)))
		return
	}
	r.send(&protocol.Response{ID: req.ID, Result: raw, OutSeq: r.nextOutSeq(), Command: req.Method})
}

func (r *Router) invoke(exec *inflight.Execution, rec *registry.HandlerRecord, params json.RawMessage) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return rec.Fn(exec, params)
}

func (r *Router) routeNotification(n *protocol.Notification) {
	if n.Method == r.cfg.CancelMethod {
		r.handleCancelNotification(n)
		return
	}

	rec := r.cfg.Registry.Lookup(n.Method)
	if rec == nil {
		r.log.Debug("dropping unknown notification", "method", n.Method)
		return
	}

	// Notifications have no id a peer could cancel by; they still tear down
	// with the connection, via the tracker's root context directly.
	hctx := rootHandlerContext{r.cfg.Inflight.RootContext()}
	if err := r.cfg.Scheduler.Submit(schedule.Item{Type: rec.Type, Run: func(ctx context.Context) {
		if _, err := r.invokeNotification(hctx, rec, n.Params); err != nil {
			r.log.Error("notification handler error", "method", n.Method, "error", err)
		}
	}}); err != nil {
		r.log.Error("scheduler unavailable for notification", "method", n.Method, "error", err)
	}
}

// rootHandlerContext satisfies registry.HandlerContext for inbound items
// that aren't individually cancellable (notifications/events).
type rootHandlerContext struct {
	ctx context.Context
}

func (h rootHandlerContext) Done() <-chan struct{} { return h.ctx.Done() }

func (r *Router) invokeNotification(hctx registry.HandlerContext, rec *registry.HandlerRecord, params json.RawMessage) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return rec.Fn(hctx, params)
}

func (r *Router) handleCancelRequest(req *protocol.Request) {
	// DAP models cancel as a Request expecting a reply (spec.md §4.5).
	if id, ok := r.extractCancelledID(req.Params); ok {
		r.cfg.Inflight.Cancel(id)
	}
	r.send(&protocol.Response{ID: req.ID, Result: json.RawMessage("{}"), OutSeq: r.nextOutSeq(), Command: req.Method})
}

func (r *Router) handleCancelNotification(n *protocol.Notification) {
	// LSP models cancel as a fire-and-forget notification (spec.md §4.5).
	if id, ok := r.extractCancelledID(n.Params); ok {
		r.cfg.Inflight.Cancel(id)
	}
}

func (r *Router) extractCancelledID(params json.RawMessage) (protocol.ID, bool) {
	if r.cfg.ExtractCancelledID == nil {
		return protocol.ID{}, false
	}
	return r.cfg.ExtractCancelledID(params)
}

func (r *Router) routeResponse(resp *protocol.Response) {
	if !r.cfg.Correlate.Settle(resp.ID, resp.Result, resp.Err) {
		r.log.Warn("response for unknown or already-settled request", "id", resp.ID)
	}
}

func (r *Router) nextOutSeq() int64 {
	if r.cfg.NextOutSeq == nil {
		return 0
	}
	return r.cfg.NextOutSeq()
}

// send enqueues env. A Response without an OutSeq (the error replies built
// by protocol.ErrorResponse) gets the next outgoing sequence number here, so
// DAP error responses draw from the shared counter like successful replies.
func (r *Router) send(env protocol.Envelope) {
	if resp, ok := env.(*protocol.Response); ok && resp.OutSeq == 0 {
		resp.OutSeq = r.nextOutSeq()
	}
	if r.cfg.Sender != nil {
		r.cfg.Sender.Send(env)
	}
}
