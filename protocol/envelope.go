package protocol

import "encoding/json"

// Kind discriminates the sealed Envelope variant.
type Kind int

const (
	// KindRequest is an envelope expecting exactly one Response.
	KindRequest Kind = iota
	// KindNotification is a fire-and-forget envelope (LSP notification, DAP event).
	KindNotification
	// KindResponse answers a previously sent Request.
	KindResponse
	// KindInvalid is a malformed envelope the Receiver could not classify.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Envelope is the tagged variant described by spec.md §3: every decoded
// message is exactly one of Request, Notification, Response, or Invalid.
// The unexported marker method seals the interface to this package's types.
type Envelope interface {
	Kind() Kind
	sealed()
}

// Request is an inbound or outbound call expecting a Response.
//
// For DAP, Method carries the "command" field and Params carries "arguments";
// the envelope's own seq IS the ID (DAP has no separate request identifier).
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

func (*Request) Kind() Kind { return KindRequest }
func (*Request) sealed()    {}

// Notification is a fire-and-forget message with no ID.
//
// For DAP, Method carries the "event" name and Params carries "body".
type Notification struct {
	Method string
	Params json.RawMessage
}

func (*Notification) Kind() Kind { return KindNotification }
func (*Notification) sealed()    {}

// Response answers a Request. Result and Err are mutually exclusive.
//
// OutSeq is only meaningful for outbound DAP responses, which carry a seq
// distinct from the request_seq they answer (see SPEC_FULL.md Open Question
// #3). LSP responses ignore it.
type Response struct {
	ID     ID
	Result json.RawMessage
	Err    *RPCError
	OutSeq int64

	// Command echoes the originating DAP request's command; LSP ignores it.
	Command string
}

func (*Response) Kind() Kind { return KindResponse }
func (*Response) sealed()    {}

// ErrorResponse builds a Response carrying rpcErr instead of a result, for
// the id being answered. OutSeq/Command (DAP-only) are left zero; callers
// that need them set the fields directly.
func ErrorResponse(id ID, rpcErr *RPCError) *Response {
	return &Response{ID: id, Err: rpcErr}
}

// Invalid represents a message the Receiver rejected outright: wrong
// protocol tag, missing method, malformed params, or an empty batch.
// ID is non-nil only when the offending message carried a recoverable id.
type Invalid struct {
	Reason string
	ID     *ID
}

func (*Invalid) Kind() Kind { return KindInvalid }
func (*Invalid) sealed()    {}
