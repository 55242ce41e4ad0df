// Package protocol defines the wire-agnostic message model shared by the LSP
// and DAP transports: a sealed Envelope variant (Request, Notification,
// Response, Invalid) plus the per-protocol Receivers that classify raw JSON
// into one of those variants.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID identifies a Request and the Response that answers it. LSP ids may be
// a JSON number or a JSON string; DAP ids are always integers (the envelope's
// seq field doubles as the request id). ID is comparable so it can key the
// correlation table directly.
type ID struct {
	str      string
	num      int64
	isString bool
	isSet    bool
}

// IntID builds a numeric ID.
func IntID(v int64) ID {
	return ID{num: v, isSet: true}
}

// StringID builds a string ID.
func StringID(v string) ID {
	return ID{str: v, isString: true, isSet: true}
}

// IsZero reports whether the ID was never set (the zero value).
func (id ID) IsZero() bool {
	return !id.isSet
}

// IsString reports whether the ID is a JSON string rather than a number.
func (id ID) IsString() bool {
	return id.isString
}

// Int returns the numeric value. Only meaningful when IsString is false.
func (id ID) Int() int64 {
	return id.num
}

// String renders the ID for logging; it is not the JSON encoding.
func (id ID) String() string {
	if !id.isSet {
		return "<none>"
	}
	if id.isString {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON encodes the ID the way the peer sent it: a bare number or a
// quoted string.
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.isSet {
		return []byte("null"), nil
	}
	if id.isString {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

// UnmarshalJSON accepts either a JSON number or a JSON string, matching the
// JSON-RPC 2.0 id production.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*id = StringID(asString)
		return nil
	}
	var asNum int64
	if err := json.Unmarshal(data, &asNum); err == nil {
		*id = IntID(asNum)
		return nil
	}
	return fmt.Errorf("protocol: id must be a string or integer, got %s", data)
}
