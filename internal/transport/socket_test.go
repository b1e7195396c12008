package transport

import (
	"net"
	"testing"
	"time"
)

func TestSocketSendReceiveRoundTrip(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Close()

	client, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer client.Close()

	want := []byte("hello-transport")
	if err := client.Send(want, server.LocalAddr()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, from, err := server.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Receive payload = %q, want %q", got, want)
	}
	if from.String() != client.LocalAddr().String() {
		t.Errorf("Receive from = %v, want %v", from, client.LocalAddr())
	}
}

func TestSocketReceiveTimesOutWithoutError(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Close()

	start := time.Now()
	buf, addr, err := server.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if buf != nil || addr != nil {
		t.Errorf("Receive on idle socket = (%v, %v), want (nil, nil)", buf, addr)
	}
	if elapsed := time.Since(start); elapsed < PollTimeout {
		t.Errorf("Receive returned after %v, want at least PollTimeout (%v)", elapsed, PollTimeout)
	}
}

func TestSocketSendToUnreachableAddrWrapsError(t *testing.T) {
	client, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer client.Close()

	// Port 0 is never a valid destination.
	bad := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	err = client.Send([]byte("x"), bad)
	if err == nil {
		t.Skip("platform accepted a write to port 0; nothing to assert")
	}
	var unreachable *UnreachableError
	if !asUnreachable(err, &unreachable) {
		t.Errorf("err = %v (%T), want *UnreachableError", err, err)
	}
}

func asUnreachable(err error, target **UnreachableError) bool {
	u, ok := err.(*UnreachableError)
	if ok {
		*target = u
	}
	return ok
}
