package rpctransport

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPair_ReadsAndWritesIndependently(t *testing.T) {
	readSide, writeIntoReadSide := io.Pipe()
	_, discardWriter := io.Pipe()

	p := Pair(readSide, discardWriter)
	defer p.Close()

	go func() { _, _ = writeIntoReadSide.Write([]byte("hello")) }()

	buf := make([]byte, 5)
	n, err := p.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q, want hello", buf[:n])
	}
}

func TestConn_IdentityAdapter(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	adapted := Conn(client)
	go func() { _, _ = server.Write([]byte("ping")) }()

	buf := make([]byte, 4)
	n, err := adapted.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("got %q, want ping", buf[:n])
	}
}

func TestNamedPipe_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpc.fifo")
	rw, err := NamedPipe(path)
	if err != nil {
		t.Fatalf("NamedPipe: %v", err)
	}
	defer rw.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = rw.Write([]byte("hi"))
	}()

	buf := make([]byte, 2)
	n, err := rw.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hi" {
		t.Fatalf("got %q, want hi", buf[:n])
	}
	<-done
}

// TestWebSocket_AdaptsFramesToAByteStream exercises a real client/server
// websocket connection end to end: writes on one side, split arbitrarily
// across frames, must be readable as one continuous byte stream on the
// other — the property the framing codec depends on.
func TestWebSocket_AdaptsFramesToAByteStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConnCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}
	defer clientConn.Close()

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverConnCh:
	case <-time.After(time.Second):
		t.Fatal("server never accepted connection")
	}
	defer serverConn.Close()

	serverStream := WebSocket(serverConn)
	clientStream := WebSocket(clientConn)
	defer serverStream.Close()
	defer clientStream.Close()

	payload := "Content-Length: 11\r\n\r\nhello world"
	// Split the write across two frames to prove the reader reassembles them.
	if _, err := clientStream.Write([]byte(payload[:10])); err != nil {
		t.Fatalf("Write part 1: %v", err)
	}
	if _, err := clientStream.Write([]byte(payload[10:])); err != nil {
		t.Fatalf("Write part 2: %v", err)
	}

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(serverStream, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("got %q, want %q", got, payload)
	}
}
