package protocol

import (
	"encoding/json"
	"testing"
)

func TestErrorClass_LSPCode(t *testing.T) {
	tests := []struct {
		class ErrorClass
		code  int
	}{
		{ClassParseError, -32700},
		{ClassInvalidRequest, -32600},
		{ClassMethodNotFound, -32601},
		{ClassInvalidParams, -32602},
		{ClassInternalError, -32603},
		{ClassRequestCancelled, -32800},
		{ClassContentModified, -32801},
	}
	for _, tt := range tests {
		if got := tt.class.LSPCode(); got != tt.code {
			t.Errorf("%v.LSPCode() = %d, want %d", tt.class, got, tt.code)
		}
	}
}

func TestRPCError_Predicates(t *testing.T) {
	err := NewRPCError(ClassMethodNotFound, "no such method", nil)
	if !err.IsMethodNotFound() {
		t.Error("IsMethodNotFound() = false")
	}
	if err.IsParseError() || err.IsInvalidParams() || err.IsRequestCancelled() || err.IsInternalError() {
		t.Error("unrelated predicates should be false")
	}
}

func TestRPCError_JSONRoundTrip(t *testing.T) {
	err := NewRPCError(ClassInvalidParams, "bad params", map[string]any{"field": "x"})
	raw, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Marshal: %v", marshalErr)
	}

	var got RPCError
	if unmarshalErr := json.Unmarshal(raw, &got); unmarshalErr != nil {
		t.Fatalf("Unmarshal: %v", unmarshalErr)
	}
	if got.Class != ClassInvalidParams || got.Message != "bad params" {
		t.Errorf("got %+v", got)
	}
}

func TestRPCError_UnmarshalPreservesServerSpecificCode(t *testing.T) {
	raw := []byte(`{"code":500,"message":"handler failed"}`)

	var got RPCError
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Class != ClassInternalError {
		t.Errorf("Class = %v, want ClassInternalError", got.Class)
	}
	if got.Code() != 500 {
		t.Errorf("Code() = %d, want 500 (the peer's original wire code)", got.Code())
	}
}
