package protocol

import (
	"bytes"
	"encoding/json"
)

// LSPVersion is the JSON-RPC version literal every LSP envelope must carry.
const LSPVersion = "2.0"

// CancelMethodLSP is the sentinel notification method a peer sends to
// request cancellation of one of our in-flight inbound requests.
const CancelMethodLSP = "$/cancelRequest"

// lspWire is the superset JSON shape used to sniff a single object's kind
// before committing to a concrete Request/Notification/Response decode.
type lspWire struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *ID              `json:"id,omitempty"`
	Method  *string          `json:"method,omitempty"`
	Params  *json.RawMessage `json:"params,omitempty"`
	Result  *json.RawMessage `json:"result,omitempty"`
	Error   *RPCError        `json:"error,omitempty"`
}

// cancelParamsLSP is the body of a $/cancelRequest notification.
type cancelParamsLSP struct {
	ID ID `json:"id"`
}

// ClassifyLSP implements the Receiver described in spec.md §4.2: it accepts
// one raw frame (which may itself be a JSON-RPC batch array) and returns one
// Envelope per element, in order. It never returns an error for malformed
// input — malformed input classifies as Invalid, per Testable Property #8.
func ClassifyLSP(raw json.RawMessage) ([]Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []Envelope{&Invalid{Reason: "Invalid Request"}}, nil
	}

	switch trimmed[0] {
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return []Envelope{&Invalid{Reason: "Invalid Request"}}, nil
		}
		if len(elements) == 0 {
			return []Envelope{&Invalid{Reason: "Invalid Request"}}, nil
		}
		out := make([]Envelope, 0, len(elements))
		for _, el := range elements {
			out = append(out, classifyOneLSP(el))
		}
		return out, nil
	case '{':
		return []Envelope{classifyOneLSP(trimmed)}, nil
	default:
		return []Envelope{&Invalid{Reason: "Invalid Request"}}, nil
	}
}

func classifyOneLSP(raw json.RawMessage) Envelope {
	var w lspWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return &Invalid{Reason: "Invalid Request"}
	}

	if w.JSONRPC != LSPVersion {
		return &Invalid{Reason: "Unexpected protocol", ID: w.ID}
	}

	if w.ID != nil && (w.Result != nil || w.Error != nil) {
		return &Response{ID: *w.ID, Result: rawOrNil(w.Result), Err: w.Error}
	}

	if w.Method == nil || *w.Method == "" {
		return &Invalid{Reason: "Method not set", ID: w.ID}
	}

	if w.Params != nil && !isArrayOrObject(*w.Params) {
		return &Invalid{Reason: "Invalid params", ID: w.ID}
	}

	params := rawOrNil(w.Params)
	if w.ID != nil {
		return &Request{ID: *w.ID, Method: *w.Method, Params: params}
	}
	return &Notification{Method: *w.Method, Params: params}
}

func rawOrNil(p *json.RawMessage) json.RawMessage {
	if p == nil {
		return nil
	}
	return *p
}

func isArrayOrObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	if string(trimmed) == "null" {
		return true // absent-equivalent; LSP allows omitting params
	}
	return trimmed[0] == '[' || trimmed[0] == '{'
}

// lspRequestWire / lspNotificationWire / lspResponseWire are the concrete
// encode shapes; unlike lspWire they omit pointer indirection so zero values
// marshal cleanly.
type lspRequestWire struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type lspNotificationWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type lspResponseWire struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// EncodeLSP renders an Envelope to its JSON-RPC 2.0 wire form. Invalid
// envelopes have no wire form and are rejected.
func EncodeLSP(env Envelope) ([]byte, error) {
	switch m := env.(type) {
	case *Request:
		return json.Marshal(lspRequestWire{JSONRPC: LSPVersion, ID: m.ID, Method: m.Method, Params: m.Params})
	case *Notification:
		return json.Marshal(lspNotificationWire{JSONRPC: LSPVersion, Method: m.Method, Params: m.Params})
	case *Response:
		return json.Marshal(lspResponseWire{JSONRPC: LSPVersion, ID: m.ID, Result: m.Result, Error: m.Err})
	default:
		return nil, ErrNoWireForm
	}
}

// EncodeLSPBatch renders several envelopes as one JSON-RPC batch array in a
// single Content-Length frame — see SPEC_FULL.md §10, "batch response
// framing for outgoing batches".
func EncodeLSPBatch(envs []Envelope) ([]byte, error) {
	parts := make([]json.RawMessage, 0, len(envs))
	for _, env := range envs {
		b, err := EncodeLSP(env)
		if err != nil {
			return nil, err
		}
		parts = append(parts, b)
	}
	return json.Marshal(parts)
}

// NewCancelNotificationLSP builds the best-effort $/cancelRequest notification
// sent to the peer when a caller abandons an outgoing request (spec.md §4.3).
func NewCancelNotificationLSP(id ID) *Notification {
	params, _ := json.Marshal(cancelParamsLSP{ID: id})
	return &Notification{Method: CancelMethodLSP, Params: params}
}

// CancelledIDLSP extracts the target request id from a $/cancelRequest
// notification's params. ok is false if params don't match the expected shape.
func CancelledIDLSP(params json.RawMessage) (ID, bool) {
	var p cancelParamsLSP
	if err := json.Unmarshal(params, &p); err != nil {
		return ID{}, false
	}
	return p.ID, true
}
