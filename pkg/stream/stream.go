// Package stream provides the cross-platform stream-socket abstraction
// (spec.md §4.2, component C2): DNS-resolving connect with a timeout,
// per-operation read/write timeouts, and a uniform error taxonomy. It is
// adapted from the teacher repository's pkg/transport connect path, with
// connection pooling and upstream-proxy dialing removed — spec.md's
// Non-goals explicitly exclude connection reuse, and there is no
// SSRF-validated proxy component in this spec.
package stream

import (
	"context"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/driftwave/go-netstack/pkg/errors"
)

// Conn is the byte-stream contract shared by plain and TLS sockets
// (spec.md §4.3: the TLS adapter "presents the same byte-stream contract
// as C2"). Both *Socket and *pkg/tlsclient.Socket satisfy it.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	WriteAll(p []byte) error
	SetTimeout(timeout time.Duration)
	Fd() (uintptr, bool)
	Addr() string
	Close() error
}

// Socket wraps a single TCP connection with a sticky last error and a
// configured timeout, matching the "stream socket handle" of spec.md §3.
// A Socket is used single-threadedly except by the streaming HTTP
// producer goroutine, which takes exclusive ownership after construction.
type Socket struct {
	conn      net.Conn
	addr      string
	timeout   time.Duration
	lastError error
}

// Connect resolves host to one or more addresses and dials the first that
// succeeds, matching spec.md §4.2's connect algorithm. timeout bounds both
// DNS resolution and the TCP handshake.
func Connect(ctx context.Context, host string, port int, timeout time.Duration) (*Socket, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	if ip := net.ParseIP(host); ip != nil {
		conn, err := dialOne(dialCtx, addr)
		if err != nil {
			return nil, classifyDialError(addr, err)
		}
		return newSocket(conn, addr, timeout), nil
	}

	resolver := net.DefaultResolver
	ips, err := resolver.LookupIPAddr(dialCtx, host)
	if err != nil {
		return nil, errors.NewResolveError(host, err)
	}
	if len(ips) == 0 {
		return nil, errors.NewResolveError(host, nil)
	}

	var lastErr error
	for _, ipAddr := range ips {
		candidate := net.JoinHostPort(ipAddr.IP.String(), strconv.Itoa(port))
		conn, err := dialOne(dialCtx, candidate)
		if err == nil {
			return newSocket(conn, candidate, timeout), nil
		}
		lastErr = err
	}
	return nil, classifyDialError(addr, lastErr)
}

func dialOne(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return conn, nil
}

func classifyDialError(addr string, err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return errors.NewStreamTimeoutError("connect", addr)
	}
	return errors.NewConnectError(addr, err)
}

func newSocket(conn net.Conn, addr string, timeout time.Duration) *Socket {
	s := &Socket{conn: conn, addr: addr, timeout: timeout}
	s.applyDeadlines()
	return s
}

func (s *Socket) applyDeadlines() {
	if s.timeout <= 0 {
		_ = s.conn.SetDeadline(time.Time{})
		return
	}
	_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
}

// SetTimeout changes the per-operation timeout applied to subsequent reads
// and writes (spec.md §4.2 set_timeout).
func (s *Socket) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// SetNonBlocking toggles the non-blocking mode named by spec.md §4.2. Go's
// network poller already multiplexes every net.Conn read/write behind the
// runtime scheduler, so there is no fcntl-style mode to flip; blocking is
// approximated with SetTimeout(0) instead, and non-blocking with a timeout
// short enough that a stalled peer surfaces as TIMEOUT rather than hanging
// the caller's goroutine.
func (s *Socket) SetNonBlocking(nonBlocking bool) {
	if !nonBlocking {
		s.SetTimeout(0)
		return
	}
	if s.timeout <= 0 {
		s.timeout = nonBlockingPollTimeout
	}
}

// nonBlockingPollTimeout is the per-operation deadline SetNonBlocking(true)
// installs when no timeout is already configured.
const nonBlockingPollTimeout = 10 * time.Millisecond

// Read returns 0 with a sticky CLOSED error on orderly shutdown, a
// positive count on data, or a TIMEOUT/IO error otherwise (spec.md §4.2).
func (s *Socket) Read(p []byte) (int, error) {
	s.applyDeadlines()
	n, err := s.conn.Read(p)
	if err != nil {
		s.lastError = classifyIOError(s.addr, err)
		return n, s.lastError
	}
	return n, nil
}

// Write returns the number of bytes actually transmitted; callers must
// loop (see WriteAll) since a short write is not an error.
func (s *Socket) Write(p []byte) (int, error) {
	s.applyDeadlines()
	n, err := s.conn.Write(p)
	if err != nil {
		s.lastError = classifyIOError(s.addr, err)
		return n, s.lastError
	}
	return n, nil
}

// WriteAll loops Write until all of p is transmitted or an error occurs.
func (s *Socket) WriteAll(p []byte) error {
	written := 0
	for written < len(p) {
		n, err := s.Write(p[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

func classifyIOError(addr string, err error) error {
	if err.Error() == "EOF" || err.Error() == "io: read/write on closed pipe" {
		return errors.NewClosedError(errors.LayerStream, addr)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return errors.NewStreamTimeoutError("io", addr)
	}
	return errors.NewIOError(errors.LayerStream, "io", err)
}

// LastError returns the most recent failing operation's error.
func (s *Socket) LastError() error {
	return s.lastError
}

// Addr returns the remote address this socket is connected to.
func (s *Socket) Addr() string {
	return s.addr
}

// Conn exposes the underlying net.Conn for layers (TLS) that need to wrap it.
func (s *Socket) Conn() net.Conn {
	return s.conn
}

// Fd exposes the underlying file descriptor for readiness polling, per
// spec.md §4.2/§9 ("polymorphism over transports ... the adapter must
// expose the descriptor"). Returns ok=false if the descriptor could not be
// obtained (e.g. non-TCP conn).
func (s *Socket) Fd() (fd uintptr, ok bool) {
	sc, okType := s.conn.(syscall.Conn)
	if !okType {
		return 0, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var outFd uintptr
	err = raw.Control(func(f uintptr) { outFd = f })
	if err != nil {
		return 0, false
	}
	return outFd, true
}

// Close releases the underlying connection. Idempotent.
func (s *Socket) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
