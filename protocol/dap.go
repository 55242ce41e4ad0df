package protocol

import "encoding/json"

// CancelMethodDAP is the sentinel command a peer sends, as a Request, to ask
// us to cancel one of our in-flight inbound requests. Unlike LSP's
// notification-shaped cancel, DAP's cancel is itself a Request and expects a
// (trivial, empty) success Response — see spec.md §4.5 and SPEC_FULL.md §10.
const CancelMethodDAP = "cancel"

type dapCancelArgs struct {
	RequestID int64 `json:"requestId"`
}

type dapWire struct {
	Seq        int64            `json:"seq"`
	Type       string           `json:"type"`
	Command    *string          `json:"command,omitempty"`
	Arguments  *json.RawMessage `json:"arguments,omitempty"`
	Event      *string          `json:"event,omitempty"`
	Body       *json.RawMessage `json:"body,omitempty"`
	RequestSeq *int64           `json:"request_seq,omitempty"`
	Success    *bool            `json:"success,omitempty"`
	Message    *string          `json:"message,omitempty"`
}

// ClassifyDAP implements the Receiver described in spec.md §4.2 for DAP: it
// switches on the envelope's "type" property. DAP has no batch concept, so
// it always returns exactly one Envelope.
func ClassifyDAP(raw json.RawMessage) ([]Envelope, error) {
	var w dapWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return []Envelope{&Invalid{Reason: "Invalid Request"}}, nil
	}

	switch w.Type {
	case "request":
		if w.Command == nil || *w.Command == "" {
			return []Envelope{&Invalid{Reason: "Method not set"}}, nil
		}
		return []Envelope{&Request{ID: IntID(w.Seq), Method: *w.Command, Params: rawOrNil(w.Arguments)}}, nil

	case "event":
		if w.Event == nil || *w.Event == "" {
			return []Envelope{&Invalid{Reason: "Method not set"}}, nil
		}
		return []Envelope{&Notification{Method: *w.Event, Params: rawOrNil(w.Body)}}, nil

	case "response":
		if w.RequestSeq == nil {
			return []Envelope{&Invalid{Reason: "Invalid Request"}}, nil
		}
		command := ""
		if w.Command != nil {
			command = *w.Command
		}
		resp := &Response{ID: IntID(*w.RequestSeq), OutSeq: w.Seq, Command: command}
		if w.Success != nil && *w.Success {
			resp.Result = rawOrNil(w.Body)
		} else {
			msg := ""
			if w.Message != nil {
				msg = *w.Message
			}
			var data any
			if w.Body != nil {
				data = *w.Body
			}
			resp.Err = NewRPCError(ClassInternalError, msg, data)
		}
		return []Envelope{resp}, nil

	default:
		return []Envelope{&Invalid{Reason: "Unexpected protocol"}}, nil
	}
}

type dapRequestWire struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type dapEventWire struct {
	Seq   int64           `json:"seq"`
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

type dapResponseWire struct {
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	RequestSeq int64           `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command,omitempty"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

type dapErrorBody struct {
	Error dapErrorMessage `json:"error"`
}

type dapErrorMessage struct {
	ID     int    `json:"id"`
	Format string `json:"format"`
}

// EncodeDAP renders an Envelope to its DAP wire form. outSeq supplies the
// envelope's own seq for variants that don't otherwise carry one
// (Notification/event has no ID field); Request and Response already carry
// their seq via ID/OutSeq and ignore outSeq. A failed Response carries the
// textual message plus a structured body {"error":{"id":code,"format":message}}
// whose code is the error's JSON-RPC code (Err.Code()). numericHandlerErrors
// reproduces the legacy behavior pinned by SPEC_FULL.md Open Question #1:
// when true, an internal (handler) error uses id 500 instead.
func EncodeDAP(env Envelope, outSeq int64, numericHandlerErrors bool) ([]byte, error) {
	switch m := env.(type) {
	case *Request:
		return json.Marshal(dapRequestWire{Seq: m.ID.Int(), Type: "request", Command: m.Method, Arguments: m.Params})
	case *Notification:
		return json.Marshal(dapEventWire{Seq: outSeq, Type: "event", Event: m.Method, Body: m.Params})
	case *Response:
		w := dapResponseWire{
			Seq:        m.OutSeq,
			Type:       "response",
			RequestSeq: m.ID.Int(),
			Command:    m.Command,
		}
		if m.Err == nil {
			w.Success = true
			w.Body = m.Result
		} else {
			w.Success = false
			w.Message = m.Err.Message
			code := m.Err.Code()
			if numericHandlerErrors && m.Err.Class == ClassInternalError {
				code = 500
			}
			body, err := json.Marshal(dapErrorBody{Error: dapErrorMessage{ID: code, Format: m.Err.Message}})
			if err == nil {
				w.Body = body
			}
		}
		return json.Marshal(w)
	default:
		return nil, ErrNoWireForm
	}
}

// NewCancelRequestDAP builds the "cancel" Request sent to the peer when a
// caller abandons an outgoing DAP request (spec.md §4.3). seq is this
// connection's next outgoing sequence number.
func NewCancelRequestDAP(seq int64, targetID ID) *Request {
	args, _ := json.Marshal(dapCancelArgs{RequestID: targetID.Int()})
	return &Request{ID: IntID(seq), Method: CancelMethodDAP, Params: args}
}

// CancelledIDDAP extracts the target request id from a "cancel" request's
// arguments.
func CancelledIDDAP(params json.RawMessage) (ID, bool) {
	var a dapCancelArgs
	if err := json.Unmarshal(params, &a); err != nil {
		return ID{}, false
	}
	return IntID(a.RequestID), true
}
