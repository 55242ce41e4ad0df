package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoWireForm is returned when encoding an Envelope variant that has no
// wire representation (only Invalid, which exists purely for classification).
var ErrNoWireForm = errors.New("protocol: envelope has no wire form")

// ErrorClass names the handling outcome independent of wire encoding; each
// protocol's encoder maps a class to its own wire representation (see
// LSPCode and the DAP response encoder in dap.go).
type ErrorClass int

const (
	// ClassParseError: the payload was not valid JSON.
	ClassParseError ErrorClass = iota
	// ClassInvalidRequest: the envelope failed Receiver validation.
	ClassInvalidRequest
	// ClassMethodNotFound: no handler is registered for the method.
	ClassMethodNotFound
	// ClassInvalidParams: the payload could not be decoded to the handler's type.
	ClassInvalidParams
	// ClassInternalError: the handler returned an error.
	ClassInternalError
	// ClassRequestCancelled: the request was cancelled before or during handling.
	ClassRequestCancelled
	// ClassContentModified: the request target was invalidated by a concurrent edit.
	ClassContentModified
)

// LSPCode returns the JSON-RPC 2.0 / LSP reserved error code for a class.
func (c ErrorClass) LSPCode() int {
	switch c {
	case ClassParseError:
		return -32700
	case ClassInvalidRequest:
		return -32600
	case ClassMethodNotFound:
		return -32601
	case ClassInvalidParams:
		return -32602
	case ClassInternalError:
		return -32603
	case ClassRequestCancelled:
		return -32800
	case ClassContentModified:
		return -32801
	default:
		return -32603
	}
}

// RPCError is the engine's internal typed error. It carries enough
// information for either protocol's encoder to render a wire-accurate
// Response.Err, and exposes predicate methods mirroring the teacher's
// *LSPError (IsParseError, IsMethodNotFound, ...).
type RPCError struct {
	Class   ErrorClass
	Message string
	Data    any

	// wireCode is the exact code a decoded peer error carried on the wire.
	// UnmarshalJSON sets it for every decoded error, so Code() reports the
	// peer's original code. For a code outside the reserved range
	// classFromLSPCode recognizes (a server-specific code the peer invented,
	// e.g. DAP's legacy 500), Class still collapses to ClassInternalError
	// for predicate purposes, while Code() keeps the original code rather
	// than masking it behind -32603.
	wireCode    int
	hasWireCode bool
}

// NewRPCError builds an RPCError of the given class.
func NewRPCError(class ErrorClass, message string, data any) *RPCError {
	return &RPCError{Class: class, Message: message, Data: data}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code(), e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code(), e.Message)
}

// Code exposes the wire code for JSON marshaling of a Response. For an
// error decoded off the wire it's the exact code the peer sent, even if
// that code falls outside the reserved JSON-RPC/LSP range; for a locally
// constructed RPCError it's the class's reserved code.
func (e *RPCError) Code() int {
	if e.hasWireCode {
		return e.wireCode
	}
	return e.Class.LSPCode()
}

// IsParseError reports whether this is a JSON-RPC parse error.
func (e *RPCError) IsParseError() bool { return e.Class == ClassParseError }

// IsMethodNotFound reports whether the method was unregistered.
func (e *RPCError) IsMethodNotFound() bool { return e.Class == ClassMethodNotFound }

// IsInvalidParams reports whether params failed to decode.
func (e *RPCError) IsInvalidParams() bool { return e.Class == ClassInvalidParams }

// IsRequestCancelled reports whether the request was cancelled.
func (e *RPCError) IsRequestCancelled() bool { return e.Class == ClassRequestCancelled }

// IsInternalError reports whether a handler returned an error.
func (e *RPCError) IsInternalError() bool { return e.Class == ClassInternalError }

// wireError is the JSON-RPC 2.0 error object shape.
type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// MarshalJSON renders the LSP wire shape: {code, message, data?}.
func (e *RPCError) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireError{Code: e.Code(), Message: e.Message, Data: e.Data})
}

// UnmarshalJSON parses the LSP wire shape. The resulting Class is inferred
// from the code for the reserved range and defaults to ClassInternalError
// for server-specific codes the peer invented.
func (e *RPCError) UnmarshalJSON(data []byte) error {
	var w wireError
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Class = classFromLSPCode(w.Code)
	e.Message = w.Message
	e.Data = w.Data
	e.wireCode = w.Code
	e.hasWireCode = true
	return nil
}

func classFromLSPCode(code int) ErrorClass {
	switch code {
	case -32700:
		return ClassParseError
	case -32600:
		return ClassInvalidRequest
	case -32601:
		return ClassMethodNotFound
	case -32602:
		return ClassInvalidParams
	case -32800:
		return ClassRequestCancelled
	case -32801:
		return ClassContentModified
	default:
		return ClassInternalError
	}
}
