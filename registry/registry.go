// Package registry implements the handler registry described in spec.md
// §4.7: one HandlerRecord per method, a release handle for deregistration,
// and the LSP-specific dynamic-registration metadata (registration options,
// a capability-setter hook, and a GUID minted for the registration payload).
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tailbeam/rpcengine/protocol"
	"github.com/tailbeam/rpcengine/schedule"
)

// ErrAlreadyRegistered is returned by Register when method already has a
// handler — the registry enforces exactly one handler per method.
var ErrAlreadyRegistered = errors.New("registry: method already has a handler")

// Handler is invoked by the dispatcher for a decoded request or
// notification/event. params is the raw JSON payload (arguments/body),
// already isolated to this call; result is marshaled into the Response on
// success. For Notification/Event records result is ignored.
type Handler func(ctx HandlerContext, params json.RawMessage) (result any, err error)

// HandlerContext is threaded through to a Handler invocation. It is defined
// here (rather than imported from dispatch) to keep registry free of a
// dependency on the router; dispatch constructs the concrete value.
type HandlerContext interface {
	// Done is closed when this inbound request's cancellation source trips,
	// either because the peer sent a cancel or the connection tore down.
	Done() <-chan struct{}
}

// RegistrationOptions is the LSP document-selector-bearing payload a
// handler may expose so the server can advertise dynamic registration via
// client/registerCapability. Opaque to the registry beyond its presence.
type RegistrationOptions any

// CapabilitySetter receives the peer's capability payload for this handler's
// method each time Registry.NotifyCapability is called for that method. The
// connection driver's initialize handshake does not read the peer's
// capabilities and does not call NotifyCapability.
type CapabilitySetter func(capability json.RawMessage)

// HandlerRecord is everything the registry knows about one registered
// method.
type HandlerRecord struct {
	Method      string
	Type        schedule.ProcessType
	Fn          Handler
	IsEvent     bool // true for Notification/Event-shaped methods (no reply)

	RegistrationOptions RegistrationOptions
	CapabilitySetter    CapabilitySetter
	// RegistrationID is a fresh GUID minted whenever RegistrationOptions is
	// non-nil (spec.md §4.7): "a handler with registration options is
	// always assigned a fresh GUID for the registration payload."
	RegistrationID uuid.UUID
}

// HasRegistrationOptions reports whether this record should be advertised
// via client/registerCapability.
func (r *HandlerRecord) HasRegistrationOptions() bool {
	return r.RegistrationOptions != nil
}

// Registration is the handle returned by Register. Release deregisters the
// handler; it is idempotent.
type Registration struct {
	method string
	reg    *Registry
	once   sync.Once
}

// Release removes the handler from the registry. Safe to call more than
// once; only the first call has effect.
func (r *Registration) Release() {
	r.once.Do(func() {
		r.reg.remove(r.method)
	})
}

// Registry maps method name to HandlerRecord. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*HandlerRecord
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]*HandlerRecord)}
}

// Register enters rec under rec.Method. If rec.RegistrationOptions is
// non-nil, a fresh RegistrationID is minted regardless of any caller-set
// value, per spec.md §4.7. Returns ErrAlreadyRegistered if the method
// already has a handler.
func (reg *Registry) Register(rec *HandlerRecord) (*Registration, error) {
	if rec.Method == "" {
		return nil, fmt.Errorf("registry: cannot register empty method name")
	}
	if rec.HasRegistrationOptions() {
		rec.RegistrationID = uuid.New()
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.handlers[rec.Method]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, rec.Method)
	}
	reg.handlers[rec.Method] = rec
	return &Registration{method: rec.Method, reg: reg}, nil
}

// Lookup returns the HandlerRecord for method, or nil if none is registered.
func (reg *Registry) Lookup(method string) *HandlerRecord {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.handlers[method]
}

// WithRegistrationOptions returns every currently-registered HandlerRecord
// that carries registration options — the set to advertise via
// client/registerCapability. The connection driver does not call it and
// sends no client/registerCapability request of its own.
func (reg *Registry) WithRegistrationOptions() []*HandlerRecord {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var out []*HandlerRecord
	for _, rec := range reg.handlers {
		if rec.HasRegistrationOptions() {
			out = append(out, rec)
		}
	}
	return out
}

// NotifyCapability invokes the CapabilitySetter for method, if one was
// registered, with the peer's capability payload. A no-op if method has no
// handler or no CapabilitySetter.
func (reg *Registry) NotifyCapability(method string, capability json.RawMessage) {
	reg.mu.RLock()
	rec := reg.handlers[method]
	reg.mu.RUnlock()
	if rec != nil && rec.CapabilitySetter != nil {
		rec.CapabilitySetter(capability)
	}
}

func (reg *Registry) remove(method string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.handlers, method)
}

// MethodNotFoundError builds the RPCError the router replies with when no
// HandlerRecord matches an inbound request's method.
func MethodNotFoundError(method string) *protocol.RPCError {
	return protocol.NewRPCError(protocol.ClassMethodNotFound, fmt.Sprintf("method not found: %s", method), nil)
}
