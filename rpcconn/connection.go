// Package rpcconn implements the connection driver described in spec.md
// §4.6: it owns the send loop, the receive loop, and the dispatch loop,
// wires together every other package in this module, and is the only type
// most callers construct directly.
//
// Description:
//
//	A Connection takes one byte stream (stdio, a pipe pair, a socket, or a
//	websocket — anything rpctransport hands back as an io.ReadWriteCloser)
//	and layers Content-Length framing, JSON-RPC/DAP classification,
//	request/response correlation, the Serial/Parallel process scheduler,
//	and the handler registry on top of it. Handlers never see *Connection
//	directly: they're registered against, and call back through, the
//	narrower Peer interface (spec.md §9's "cyclic graphs" design note), so
//	a handler can send requests/notifications of its own without pulling
//	in Disconnect/Connect/state-machine concerns.
//
// Thread Safety:
//
//	Safe for concurrent use once Connect has returned. SendRequest and
//	SendNotification may be called from any goroutine, including from
//	inside a handler invocation.
package rpcconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tailbeam/rpcengine/correlate"
	"github.com/tailbeam/rpcengine/dispatch"
	"github.com/tailbeam/rpcengine/framing"
	"github.com/tailbeam/rpcengine/inflight"
	"github.com/tailbeam/rpcengine/protocol"
	"github.com/tailbeam/rpcengine/registry"
	"github.com/tailbeam/rpcengine/rpclog"
	"github.com/tailbeam/rpcengine/rpcmetrics"
	"github.com/tailbeam/rpcengine/schedule"
)

// ErrAlreadyConnected is returned by Connect when the connection is not in
// the New state — either Connect already succeeded, or the connection was
// disposed before ever connecting.
var ErrAlreadyConnected = errors.New("rpcconn: connection already open or closed")

var validate = validator.New()

// Protocol selects the wire dialect a Connection speaks. Both dialects share
// the same Content-Length framing (spec.md §4.1); they differ only in
// envelope shape and in which side originates "initialize".
type Protocol int

const (
	// LSP speaks JSON-RPC 2.0, the Language Server Protocol's base protocol.
	LSP Protocol = iota
	// DAP speaks the Debug Adapter Protocol envelope (seq/type/command/event).
	DAP
)

func (p Protocol) String() string {
	if p == DAP {
		return "dap"
	}
	return "lsp"
}

// Role determines which side of the handshake a Connection plays (spec.md
// §4.8). RoleClient sends "initialize" and drives the handshake to
// completion; RoleServer answers it.
type Role int

const (
	// RoleClient sends "initialize" on Connect and awaits the result.
	RoleClient Role = iota
	// RoleServer expects the peer to send "initialize"; the caller supplies
	// the handler that answers it.
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

const (
	initializeMethod  = "initialize"
	initializedMethod = "initialized"
)

// Peer is the narrow interface handlers are given instead of *Connection,
// breaking the Connection → Dispatcher → HandlerRecord cycle spec.md §9
// calls out: a handler can reply to its caller or originate calls of its
// own without reaching back into connection lifecycle management.
type Peer interface {
	// SendNotification enqueues a fire-and-forget message. body is
	// marshaled to JSON; nil omits params/body entirely.
	SendNotification(method string, body any) error
	// SendRequest enqueues a call expecting a Response and returns the
	// future the caller waits on. Cancelling the context passed to the
	// future's Wait before the peer answers settles the future with
	// correlate.ErrCancelledLocally and sends the peer a best-effort cancel
	// notification/request; ctx itself is not watched for cancellation.
	SendRequest(ctx context.Context, method string, args any) (*correlate.PendingRequest, error)
	// RegisterHandler enters rec under rec.Method, returning a release
	// handle. See registry.Registry.Register for the exact contract.
	RegisterHandler(rec *registry.HandlerRecord) (*registry.Registration, error)
}

// Config configures a Connection. Validated with go-playground/validator/v10
// rather than a hand-rolled chain of `if` statements — this surface (transport
// choice, flush timeout, queue capacities, scheduler concurrency, rate limit)
// is wide enough that struct tags read more clearly than an ApplyDefaults/
// Validate pair would.
type Config struct {
	Protocol Protocol
	Role     Role

	// Stream is the underlying byte stream: stdio, a pipe pair, a socket, or
	// a websocket, via the constructors in rpctransport.
	Stream io.ReadWriteCloser `validate:"required"`

	// Registry holds the registered handlers. A fresh Registry is created if
	// nil.
	Registry *registry.Registry
	// Scheduler runs handler invocations under the Serial/Parallel rule. A
	// fresh Scheduler (bounded by MaxParallel) is created if nil; a
	// caller-supplied Scheduler is never stopped by this Connection.
	Scheduler *schedule.Scheduler
	// MaxParallel bounds a Scheduler this Connection creates for itself.
	// Ignored if Scheduler is non-nil.
	MaxParallel int64 `validate:"gte=0"`

	// Logger receives structured log records for framing, dispatch, and
	// lifecycle events. Defaults to a discarding logger.
	Logger *rpclog.Logger
	// Metrics optionally records OpenTelemetry spans and instruments for
	// dispatched work. Nil disables observability overhead entirely.
	Metrics *rpcmetrics.Metrics

	// RateLimiter optionally throttles inbound Request admission (never
	// Notifications or Responses). Nil disables rate limiting.
	RateLimiter *rate.Limiter

	OutgoingQueueCapacity int           `validate:"gt=0"`
	IncomingQueueCapacity int           `validate:"gt=0"`
	FlushTimeout          time.Duration `validate:"gt=0"`

	// InitializeParams is marshaled as the "initialize" request's params
	// (LSP) or arguments (DAP) when Role is RoleClient. Ignored for
	// RoleServer.
	InitializeParams any

	// DAPNumericHandlerErrors reproduces the legacy behavior of the source
	// this engine was distilled from: a DAP handler error's Response body
	// carries {"error":{"id":500,"format":message}} instead of the negative
	// JSON-RPC code (-32603) used by default.
	DAPNumericHandlerErrors bool
}

func (c Config) withDefaults() Config {
	if c.OutgoingQueueCapacity == 0 {
		c.OutgoingQueueCapacity = 64
	}
	if c.IncomingQueueCapacity == 0 {
		c.IncomingQueueCapacity = 64
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = 5 * time.Second
	}
	return c
}

type state int32

const (
	stateNew state = iota
	stateOpen
	stateDraining
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateOpen:
		return "open"
	case stateDraining:
		return "draining"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is the public façade: Connect, Disconnect, Dispose, and (via
// Peer) SendRequest/SendNotification/RegisterHandler. The zero value is not
// usable; construct with New.
type Connection struct {
	cfg  Config
	role Role

	reader *framing.Reader
	writer *framing.Writer

	registry      *registry.Registry
	scheduler     *schedule.Scheduler
	ownsScheduler bool
	correlate     *correlate.Table
	inflight      *inflight.Tracker
	router        *dispatch.Router
	log           *rpclog.Logger
	metrics       *rpcmetrics.Metrics

	outgoing chan protocol.Envelope
	incoming chan protocol.Envelope

	// pendingOut counts envelopes that have been enqueued but not yet
	// fully written. Send increments before handing off to c.outgoing;
	// sendLoop decrements only after WriteMessage returns. Unlike checking
	// len(c.outgoing), this has no window where the count reads zero while
	// sendLoop is still mid-write on the last dequeued frame.
	pendingOut atomic.Int64

	state atomic.Int32

	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once

	mu               sync.Mutex
	readyErr         error
	initializeResult json.RawMessage

	closing      chan struct{}
	teardownOnce sync.Once
}

var _ Peer = (*Connection)(nil)

// New validates cfg and constructs a Connection in the New state. It does
// not touch the stream; call Connect to start the three loops.
func New(cfg Config) (*Connection, error) {
	cfg = cfg.withDefaults()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("rpcconn: invalid config: %w", err)
	}

	reg := cfg.Registry
	if reg == nil {
		reg = registry.New()
	}

	sched := cfg.Scheduler
	ownsScheduler := sched == nil
	if ownsScheduler {
		sched = schedule.New(schedule.Config{MaxParallel: cfg.MaxParallel})
	}

	log := cfg.Logger
	if log == nil {
		log = rpclog.Discard()
	}

	c := &Connection{
		cfg:           cfg,
		role:          cfg.Role,
		reader:        framing.NewReader(cfg.Stream),
		writer:        framing.NewWriter(cfg.Stream),
		registry:      reg,
		scheduler:     sched,
		ownsScheduler: ownsScheduler,
		correlate:     correlate.New(),
		log:           log,
		metrics:       cfg.Metrics,
		outgoing:      make(chan protocol.Envelope, cfg.OutgoingQueueCapacity),
		incoming:      make(chan protocol.Envelope, cfg.IncomingQueueCapacity),
		ready:         make(chan struct{}),
		closing:       make(chan struct{}),
	}
	c.state.Store(int32(stateNew))
	return c, nil
}

// State reports the current lifecycle state: "new", "open", "draining", or
// "closed".
func (c *Connection) State() string {
	return state(c.state.Load()).String()
}

// Ready is closed once the initialize handshake completes (spec.md §4.8).
// For RoleClient this is after the peer's InitializeResult arrives (LSP:
// once our own "initialized" notification has been sent; DAP: once the
// adapter's "initialized" event arrives). For RoleServer LSP this is once
// the peer's "initialized" notification arrives. RoleServer DAP has no
// engine-driven completion — the adapter originates "initialized" itself —
// so that caller must call MarkReady once it has sent that event.
func (c *Connection) Ready() <-chan struct{} {
	return c.ready
}

// ReadyErr returns the error that aborted the handshake, if any. Only
// meaningful after Ready is closed.
func (c *Connection) ReadyErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyErr
}

// InitializeResult returns the raw InitializeResult/body the peer answered
// "initialize" with, for a RoleClient connection. Empty until Ready closes.
func (c *Connection) InitializeResult() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeResult
}

// MarkReady signals handshake completion to anyone waiting on Ready. Safe to
// call more than once; only the first call has effect. See Ready's doc
// comment for which role/protocol combination needs this called explicitly.
func (c *Connection) MarkReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *Connection) failReady(err error) {
	c.mu.Lock()
	c.readyErr = err
	c.mu.Unlock()
	c.MarkReady()
}

// Connect moves the connection from New to Open, starting the send,
// receive, and dispatch loops, joined with an errgroup (spec.md §5's single
// addition over the unchanged concurrency model: the three long-lived tasks
// share a context cancelled as a unit, instead of hand-rolled WaitGroup and
// error-channel plumbing). Returns ErrAlreadyConnected if called more than
// once.
func (c *Connection) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(stateNew), int32(stateOpen)) {
		return ErrAlreadyConnected
	}

	groupCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(groupCtx)
	c.cancel = cancel
	c.group = g
	c.groupCtx = gctx

	// The inflight tracker's root is derived from the connection's own
	// cancellation source so tearing down the connection tears down every
	// handler currently executing (spec.md §5's cancellation model).
	c.inflight = inflight.New(gctx)

	cancelMethod, extractID := c.cancelSentinel()

	// NextOutSeq feeds Response.OutSeq, which only DAP's wire encoding
	// emits (protocol/lsp.go's EncodeLSP ignores it). Leaving it nil for
	// LSP keeps the shared id counter (correlate.Table.NextID, also used
	// for outgoing request ids) from being burned on every LSP reply.
	var nextOutSeq func() int64
	if c.cfg.Protocol == DAP {
		nextOutSeq = c.nextID
	}

	c.router = dispatch.New(dispatch.Config{
		Registry:           c.registry,
		Scheduler:          c.scheduler,
		Correlate:          c.correlate,
		Inflight:           c.inflight,
		Sender:             c,
		CancelMethod:       cancelMethod,
		ExtractCancelledID: extractID,
		NextOutSeq:         nextOutSeq,
		Limiter:            c.cfg.RateLimiter,
		Logger:             c.log.Slog(),
	})

	g.Go(func() error { return c.sendLoop(gctx) })
	g.Go(func() error { return c.receiveLoop(gctx) })
	g.Go(func() error { return c.dispatchLoop(gctx) })

	switch {
	case c.role == RoleClient:
		go c.clientHandshake(gctx)
	case c.cfg.Protocol == LSP:
		c.registerInternalInitializedHandler()
	}

	return nil
}

// Disconnect moves Open to Draining: if flush is true, it waits up to
// cfg.FlushTimeout for the outgoing queue to empty, then cancels the shared
// context, joins the three loops, and settles every outstanding
// PendingRequest with correlate.ErrConnectionClosed. Safe to call more than
// once or from any state other than Open, where it is a no-op — Dispose (or
// a concurrent Disconnect) owns teardown in that case.
func (c *Connection) Disconnect(flush bool) error {
	if !c.state.CompareAndSwap(int32(stateOpen), int32(stateDraining)) {
		return nil
	}
	if flush {
		c.waitOutgoingDrained(c.cfg.FlushTimeout)
	}
	c.teardown()
	return nil
}

// Dispose forces immediate teardown without waiting for the outgoing queue
// to flush. Safe to call more than once, and safe to call on a connection
// that never reached Connect (e.g. a caller that gave up after New).
func (c *Connection) Dispose() {
	c.state.CompareAndSwap(int32(stateNew), int32(stateDraining))
	c.state.CompareAndSwap(int32(stateOpen), int32(stateDraining))
	c.teardown()
}

// waitOutgoingDrained blocks until every enqueued envelope has been fully
// written. Checking len(c.outgoing) alone races with sendLoop's
// WriteMessage: the channel can read empty while the last dequeued frame is
// still being written, letting teardown close the stream out from under it
// and truncate the final message. pendingOut has no such window.
func (c *Connection) waitOutgoingDrained(timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.pendingOut.Load() == 0 {
			return
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			c.log.Warn("flush timeout elapsed with outgoing messages still queued", "remaining", c.pendingOut.Load())
			return
		}
	}
}

func (c *Connection) teardown() {
	c.teardownOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		// Close before joining the loops: a sendLoop or receiveLoop blocked
		// on the underlying transport (e.g. a write the peer never reads)
		// does not notice ctx cancellation on its own — closing the stream
		// is what unblocks the pending syscall, the same way the teacher's
		// Shutdown forces its read loop's pipe closed to break it out of a
		// blocking Read.
		if err := c.cfg.Stream.Close(); err != nil {
			c.log.Debug("closing stream during teardown", "error", err)
		}
		if c.group != nil {
			_ = c.group.Wait()
		}
		if c.inflight != nil {
			c.inflight.Shutdown()
		}
		c.correlate.Drain()
		if c.ownsScheduler {
			c.scheduler.Stop()
		}
		c.state.Store(int32(stateClosed))
		close(c.closing)
	})
}

// Send enqueues env on the outgoing queue, blocking until space is
// available or the connection is tearing down. It implements
// dispatch.Sender, so the router's replies and this Connection's own
// SendRequest/SendNotification share one path to the wire.
func (c *Connection) Send(env protocol.Envelope) {
	c.pendingOut.Add(1)
	select {
	case c.outgoing <- env:
	case <-c.closing:
		c.pendingOut.Add(-1)
		c.log.Warn("dropping outgoing envelope: connection closing", "kind", env.Kind())
	}
}

// SendNotification implements Peer.
func (c *Connection) SendNotification(method string, body any) error {
	params, err := marshalParams(body)
	if err != nil {
		return fmt.Errorf("rpcconn: marshal notification params: %w", err)
	}
	c.Send(&protocol.Notification{Method: method, Params: params})
	return nil
}

// SendRequest implements Peer.
func (c *Connection) SendRequest(ctx context.Context, method string, args any) (*correlate.PendingRequest, error) {
	params, err := marshalParams(args)
	if err != nil {
		return nil, fmt.Errorf("rpcconn: marshal request params: %w", err)
	}

	id := protocol.IntID(c.nextID())
	pending := c.correlate.Register(id, func() {
		c.sendCancelSentinel(id)
		if c.metrics != nil {
			c.metrics.RecordCancellation(context.Background(), "outbound")
		}
	})
	if c.metrics != nil {
		c.metrics.RequestRegistered(ctx)
	}

	c.Send(&protocol.Request{ID: id, Method: method, Params: params})
	return pending, nil
}

// RegisterHandler implements Peer.
func (c *Connection) RegisterHandler(rec *registry.HandlerRecord) (*registry.Registration, error) {
	return c.registry.Register(rec)
}

func marshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

// nextID draws from the correlation table's single monotonic counter, shared
// by outgoing request ids, outgoing DAP response/event seqs, and the DAP
// cancel request's own seq — reproducing the source's irregular-but-pinned
// behavior of one counter backing every outgoing message (SPEC_FULL.md §11.3).
func (c *Connection) nextID() int64 {
	return c.correlate.NextID()
}

func (c *Connection) cancelSentinel() (string, func(json.RawMessage) (protocol.ID, bool)) {
	if c.cfg.Protocol == DAP {
		return protocol.CancelMethodDAP, protocol.CancelledIDDAP
	}
	return protocol.CancelMethodLSP, protocol.CancelledIDLSP
}

func (c *Connection) sendCancelSentinel(id protocol.ID) {
	switch c.cfg.Protocol {
	case LSP:
		c.Send(protocol.NewCancelNotificationLSP(id))
	case DAP:
		c.Send(protocol.NewCancelRequestDAP(c.nextID(), id))
	}
}

func (c *Connection) classify(raw json.RawMessage) ([]protocol.Envelope, error) {
	switch c.cfg.Protocol {
	case LSP:
		return protocol.ClassifyLSP(raw)
	case DAP:
		return protocol.ClassifyDAP(raw)
	default:
		return nil, fmt.Errorf("rpcconn: unknown protocol %v", c.cfg.Protocol)
	}
}

func (c *Connection) encode(env protocol.Envelope) ([]byte, error) {
	switch c.cfg.Protocol {
	case LSP:
		return protocol.EncodeLSP(env)
	case DAP:
		var outSeq int64
		if _, isNotification := env.(*protocol.Notification); isNotification {
			outSeq = c.nextID()
		}
		return protocol.EncodeDAP(env, outSeq, c.cfg.DAPNumericHandlerErrors)
	default:
		return nil, fmt.Errorf("rpcconn: unknown protocol %v", c.cfg.Protocol)
	}
}

// sendLoop takes from the outgoing queue until cancelled, serializes, and
// writes via the framing codec. Per spec.md §4.6, a single message's
// encode/write error is logged and does not terminate the loop.
func (c *Connection) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-c.outgoing:
			if !ok {
				return nil
			}
			raw, err := c.encode(env)
			if err != nil {
				c.log.Error("encoding outgoing envelope", "kind", env.Kind(), "error", err)
				c.pendingOut.Add(-1)
				continue
			}
			if err := c.writer.WriteMessage(raw); err != nil {
				c.log.Error("writing outgoing frame", "error", err)
				c.pendingOut.Add(-1)
				continue
			}
			c.pendingOut.Add(-1)
		}
	}
}

// receiveLoop reads frames, classifies them, and either settles a
// PendingRequest directly (Response) or hands the item to the incoming
// queue for the dispatch loop. A framing error with no usable
// Content-Length is logged and the frame skipped (spec.md §4.1); stream
// closure and other transport errors terminate the loop (spec.md §7).
func (c *Connection) receiveLoop(ctx context.Context) error {
	for {
		raw, err := c.reader.ReadMessage()
		if err != nil {
			if errors.Is(err, framing.ErrStreamClosed) {
				return nil
			}
			if errors.Is(err, framing.ErrMissingContentLength) {
				c.log.Warn("dropping frame with missing Content-Length")
				continue
			}
			c.log.Error("transport read error", "error", err)
			return err
		}

		envs, err := c.classify(raw)
		if err != nil {
			c.log.Error("classifying inbound frame", "error", err)
			continue
		}

		for _, env := range envs {
			if resp, ok := env.(*protocol.Response); ok {
				if !c.correlate.Settle(resp.ID, resp.Result, resp.Err) {
					c.log.Warn("response for unknown or already-settled request", "id", resp.ID)
				} else if c.metrics != nil {
					c.metrics.RequestSettled(ctx)
				}
				continue
			}

			select {
			case c.incoming <- env:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// dispatchLoop takes from the incoming queue and hands each item to the
// router.
func (c *Connection) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-c.incoming:
			if !ok {
				return nil
			}
			c.routeWithMetrics(ctx, env)
		}
	}
}

// routeWithMetrics wraps the router call with a span and counters when
// cfg.Metrics is set. The span covers dispatch admission — handing the item
// to the scheduler — not the handler's own execution time, since the router
// intentionally hands work to the scheduler and returns; threading the span
// through to actual handler completion would require the router itself to
// carry a Metrics dependency, which would break dispatch's protocol-agnostic
// design (spec.md §9).
func (c *Connection) routeWithMetrics(ctx context.Context, env protocol.Envelope) {
	if c.metrics == nil {
		c.router.Route(env)
		return
	}

	method, ok := envelopeMethod(env)
	if ok && isCancelMethod(method, c.cfg.Protocol) {
		c.metrics.RecordCancellation(ctx, "inbound")
	}

	if !ok {
		c.router.Route(env)
		return
	}

	processType := "unknown"
	if rec := c.registry.Lookup(method); rec != nil {
		processType = rec.Type.String()
	}
	id := ""
	if req, isReq := env.(*protocol.Request); isReq {
		id = req.ID.String()
	}

	start := time.Now()
	spanCtx, span := c.metrics.StartRequestSpan(ctx, method, processType, id)
	c.router.Route(env)
	c.metrics.EndRequestSpan(spanCtx, span, method, "dispatched", time.Since(start))
}

func envelopeMethod(env protocol.Envelope) (string, bool) {
	switch e := env.(type) {
	case *protocol.Request:
		return e.Method, true
	case *protocol.Notification:
		return e.Method, true
	default:
		return "", false
	}
}

func isCancelMethod(method string, p Protocol) bool {
	if p == DAP {
		return method == protocol.CancelMethodDAP
	}
	return method == protocol.CancelMethodLSP
}

// clientHandshake drives the RoleClient side of spec.md §4.8: send
// "initialize", await the result, then (LSP) send "initialized" ourselves or
// (DAP) wait for the adapter's "initialized" event.
func (c *Connection) clientHandshake(ctx context.Context) {
	pending, err := c.SendRequest(ctx, initializeMethod, c.cfg.InitializeParams)
	if err != nil {
		c.failReady(err)
		return
	}
	result, err := pending.Wait(ctx)
	if err != nil {
		c.failReady(err)
		return
	}

	c.mu.Lock()
	c.initializeResult = result
	c.mu.Unlock()

	if c.cfg.Protocol == LSP {
		if err := c.SendNotification(initializedMethod, nil); err != nil {
			c.failReady(err)
			return
		}
		c.MarkReady()
		return
	}

	// DAP: the adapter originates "initialized" once it's ready.
	c.registerInternalInitializedHandler()
}

// registerInternalInitializedHandler installs a one-shot handler for
// "initialized" that marks the connection ready and releases itself. Used
// by a RoleClient DAP handshake and by a RoleServer LSP connection, which
// both wait for the peer to send this notification/event.
func (c *Connection) registerInternalInitializedHandler() {
	var reg *registry.Registration
	rec := &registry.HandlerRecord{
		Method: initializedMethod,
		Type:   schedule.Parallel,
		Fn: func(_ registry.HandlerContext, _ json.RawMessage) (any, error) {
			c.MarkReady()
			if reg != nil {
				reg.Release()
			}
			return nil, nil
		},
	}
	r, err := c.registry.Register(rec)
	if err != nil {
		// A caller-registered "initialized" handler takes priority; treat
		// the handshake as complete once the peer's response arrived rather
		// than block Ready forever.
		c.log.Warn("could not install internal initialized handler", "error", err)
		c.MarkReady()
		return
	}
	reg = r
}
