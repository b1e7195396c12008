// Package transport wraps a non-blocking UDP endpoint behind the
// single contract the rest of the core relies on: a short read
// deadline plus a net.Error timeout check, the same pattern used
// throughout this repo's receive loops.
package transport

import (
	"errors"
	"net"
	"time"
)

// PollTimeout is the read deadline applied to every receive.
const PollTimeout = 100 * time.Millisecond

// MaxDatagramSize is large enough for any packet this protocol ever
// sends (protocol.PacketSize), with headroom for the UDP/IP layer.
const MaxDatagramSize = 2048

// UnreachableError is raised when a send or receive names a specific
// endpoint and fails terminally, so the Registry can evict that
// endpoint without a second lookup.
type UnreachableError struct {
	Addr net.Addr
	Err  error
}

func (e *UnreachableError) Error() string {
	return "transport: endpoint " + e.Addr.String() + " unreachable: " + e.Err.Error()
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Socket is a non-blocking datagram endpoint. It wraps net.PacketConn
// rather than *net.UDPConn so tests can substitute an in-process fake
// lossy/reordering conn instead of a real UDP socket.
type Socket struct {
	conn net.PacketConn
	buf  []byte
}

// Listen opens a UDP socket bound to addr (":3773" for the sender's
// well-known port, ":0" for the receiver's ephemeral one).
func Listen(addr string) (*Socket, error) {
	conn, err := ListenConn(addr)
	if err != nil {
		return nil, err
	}
	return newSocket(conn), nil
}

// ListenConn opens a raw UDP net.PacketConn bound to addr, for callers
// that need the conn itself before wrapping it in a Socket (e.g. to
// resolve the local ephemeral port a ":0" bind picked).
func ListenConn(addr string) (net.PacketConn, error) {
	return net.ListenPacket("udp", addr)
}

// NewSocket wraps an already-open net.PacketConn, e.g. a test fake.
func NewSocket(conn net.PacketConn) *Socket { return newSocket(conn) }

func newSocket(conn net.PacketConn) *Socket {
	return &Socket{conn: conn, buf: make([]byte, MaxDatagramSize)}
}

// LocalAddr returns the socket's bound local address.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the underlying file descriptor.
func (s *Socket) Close() error { return s.conn.Close() }

// Receive returns the next datagram and its sender, or (nil, nil, nil)
// if the PollTimeout elapsed with nothing to read ("would block").
// Any other error is wrapped in UnreachableError naming addr when the
// underlying error identifies one.
func (s *Socket) Receive() ([]byte, net.Addr, error) {
	s.conn.SetReadDeadline(time.Now().Add(PollTimeout))
	n, addr, err := s.conn.ReadFrom(s.buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, nil
		}
		target := addr
		var opErr *net.OpError
		if target == nil && errors.As(err, &opErr) {
			target = opErr.Addr
		}
		if target != nil {
			return nil, nil, &UnreachableError{Addr: target, Err: err}
		}
		return nil, nil, err
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, addr, nil
}

// Send writes b to addr. A failure is wrapped in UnreachableError so
// callers can evict that specific endpoint.
func (s *Socket) Send(b []byte, addr net.Addr) error {
	_, err := s.conn.WriteTo(b, addr)
	if err != nil {
		return &UnreachableError{Addr: addr, Err: err}
	}
	return nil
}
