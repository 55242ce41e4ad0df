package framing

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// TestRoundTrip pins Testable Property #1: writing then reading a message
// yields the payload byte-identical.
func TestRoundTrip(t *testing.T) {
	payloads := []string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		"unicode: éè中文",
		"",
	}
	for _, p := range payloads {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteMessage([]byte(p)); err != nil {
			t.Fatalf("WriteMessage(%q): %v", p, err)
		}

		r := NewReader(&buf)
		got, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		if string(got) != p {
			t.Errorf("got %q, want %q", got, p)
		}
	}
}

func TestHeaderCaseInsensitive(t *testing.T) {
	raw := "content-LENGTH: 5\r\nX-Other: ignored\r\n\r\nhello"
	r := NewReader(strings.NewReader(raw))
	got, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

// TestTwoMessagesOneStream pins E2E-2: the peer writes two messages in one
// logical stream; the reader yields both in order.
func TestTwoMessagesOneStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteMessage([]byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteMessage([]byte(`{"b":2}`)); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	first, err := r.ReadMessage()
	if err != nil || string(first) != `{"a":1}` {
		t.Fatalf("first = %q, err = %v", first, err)
	}
	second, err := r.ReadMessage()
	if err != nil || string(second) != `{"b":2}` {
		t.Fatalf("second = %q, err = %v", second, err)
	}
}

func TestMissingContentLength(t *testing.T) {
	// At least headerMinBytes long, so the reader reaches the terminator.
	raw := "X-Other-Header: some value\r\n\r\n"
	r := NewReader(strings.NewReader(raw))
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrMissingContentLength) {
		t.Fatalf("err = %v, want ErrMissingContentLength", err)
	}
}

func TestUnparseableContentLength(t *testing.T) {
	raw := "Content-Length: notanumber\r\n\r\n"
	r := NewReader(strings.NewReader(raw))
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrMissingContentLength) {
		t.Fatalf("err = %v, want ErrMissingContentLength", err)
	}
}

func TestStreamClosedAtBoundary(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("err = %v, want ErrStreamClosed", err)
	}
}

func TestTruncatedPayloadIsStreamClosed(t *testing.T) {
	raw := "Content-Length: 10\r\n\r\nabc"
	r := NewReader(strings.NewReader(raw))
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("err = %v, want ErrStreamClosed", err)
	}
}
