// Package tlsclient wraps pkg/stream.Socket with a TLS record layer
// (spec.md §4.2, component C3). The "pluggable cryptographic engine"
// spec.md §1 asks for is filled by crypto/tls itself; there is no
// alternative pure-Go TLS stack anywhere in the retrieved example corpus
// to swap in instead.
package tlsclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"time"

	"github.com/driftwave/go-netstack/pkg/errors"
	"github.com/driftwave/go-netstack/pkg/stream"
	"github.com/driftwave/go-netstack/pkg/tlsconfig"
)

// Config controls how the TLS handshake is performed, adapted from the
// teacher's Transport.Config TLS-related fields with proxy and mTLS
// client-certificate support removed (spec.md Non-goals).
type Config struct {
	// ServerName overrides SNI; if empty, Host is used unless DisableSNI.
	ServerName string
	DisableSNI bool

	InsecureSkipVerify bool

	// CustomCACerts are PEM-encoded certificates; when set, they replace the
	// system pool and only these roots are trusted.
	CustomCACerts [][]byte

	MinVersion   uint16
	MaxVersion   uint16
	CipherSuites []uint16

	// HandshakeTimeout bounds the handshake; defaults to 10s.
	HandshakeTimeout time.Duration
}

// Socket is a TLS-wrapped stream.Socket. Once constructed, all reads and
// writes flow through the TLS record layer; the underlying plaintext
// stream must not be used directly.
type Socket struct {
	raw      *stream.Socket
	conn     *tls.Conn
	addr     string
	metadata ConnectionMetadata
}

// ConnectionMetadata reports the negotiated session parameters, carried
// over from the teacher's ConnectionMetadata (spec.md §5 supplemented
// features — the spec's C3 doesn't require it, but it costs nothing to
// expose and every caller of a TLS client wants it for diagnostics).
type ConnectionMetadata struct {
	Version            string
	CipherSuite        string
	NegotiatedProtocol string
	ServerName         string
	Resumed            bool
}

func tlsVersionString(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "unknown"
	}
}

// Upgrade performs a client TLS handshake over an already-connected
// stream.Socket, matching spec.md §4.2/§4.3's layering: TCP connect
// happens in pkg/stream, TLS is layered on top here.
func Upgrade(ctx context.Context, host string, raw *stream.Socket, cfg Config) (*Socket, error) {
	handshakeTimeout := cfg.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		NextProtos:         []string{"http/1.1"},
	}

	if len(cfg.CustomCACerts) > 0 {
		pool := x509.NewCertPool()
		for i, cert := range cfg.CustomCACerts {
			if !pool.AppendCertsFromPEM(cert) {
				return nil, errors.NewCertificateError(raw.Addr(),
					errors.NewValidationError(errors.LayerTLS, "failed to parse CA certificate at index "+itoa(i)))
			}
		}
		tlsConfig.RootCAs = pool
	}

	configureSNI(tlsConfig, cfg.ServerName, cfg.DisableSNI, host)

	if cfg.MinVersion != 0 {
		tlsConfig.MinVersion = cfg.MinVersion
	}
	if cfg.MaxVersion != 0 {
		tlsConfig.MaxVersion = cfg.MaxVersion
	}
	if len(cfg.CipherSuites) > 0 {
		tlsConfig.CipherSuites = cfg.CipherSuites
	} else {
		tlsconfig.ApplyCipherSuites(tlsConfig, tlsConfig.MinVersion)
	}

	tlsConn := tls.Client(raw.Conn(), tlsConfig)
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		raw.Close()
		if hsCtx.Err() != nil {
			return nil, errors.NewStreamTimeoutError("tls handshake", raw.Addr())
		}
		if isCertificateError(err) {
			return nil, errors.NewCertificateError(raw.Addr(), err)
		}
		return nil, errors.NewHandshakeError(raw.Addr(), err)
	}

	state := tlsConn.ConnectionState()
	meta := ConnectionMetadata{
		Version:            tlsVersionString(state.Version),
		CipherSuite:        tls.CipherSuiteName(state.CipherSuite),
		NegotiatedProtocol: state.NegotiatedProtocol,
		ServerName:         tlsConfig.ServerName,
		Resumed:            state.DidResume,
	}
	if meta.NegotiatedProtocol == "" {
		meta.NegotiatedProtocol = "http/1.1"
	}

	return &Socket{raw: raw, conn: tlsConn, addr: raw.Addr(), metadata: meta}, nil
}

// isCertificateError reports whether err's chain is one of the X.509
// validation failures spec.md §4.3 calls out for the CERTIFICATE kind,
// as opposed to a generic negotiation failure (protocol mismatch, no
// shared cipher suite, etc.) which stays HANDSHAKE.
func isCertificateError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	var certInvalid x509.CertificateInvalidError
	var hostnameErr x509.HostnameError
	switch {
	case stderrors.As(err, &unknownAuthority):
		return true
	case stderrors.As(err, &certInvalid):
		return true
	case stderrors.As(err, &hostnameErr):
		return true
	}
	return false
}

// configureSNI mirrors the teacher's ConfigureSNI precedence: explicit
// ServerName wins, then DisableSNI leaves it empty, then fallbackHost.
func configureSNI(cfg *tls.Config, serverName string, disableSNI bool, fallbackHost string) {
	if serverName != "" {
		cfg.ServerName = serverName
		return
	}
	if disableSNI {
		return
	}
	cfg.ServerName = fallbackHost
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Metadata returns the negotiated TLS session parameters.
func (s *Socket) Metadata() ConnectionMetadata {
	return s.metadata
}

// SetTimeout sets a single deadline, timeout from now, on the underlying
// connection (zero clears it). Read and Write do not re-arm it; call
// SetTimeout again before each operation that needs a fresh deadline.
func (s *Socket) SetTimeout(timeout time.Duration) {
	s.raw.SetTimeout(timeout)
	if timeout <= 0 {
		_ = s.conn.SetDeadline(time.Time{})
		return
	}
	_ = s.conn.SetDeadline(time.Now().Add(timeout))
}

func (s *Socket) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	if err != nil {
		return n, classifyTLSError(s.addr, err)
	}
	return n, nil
}

func (s *Socket) Write(p []byte) (int, error) {
	n, err := s.conn.Write(p)
	if err != nil {
		return n, classifyTLSError(s.addr, err)
	}
	return n, nil
}

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

func classifyTLSError(addr string, err error) error {
	if err.Error() == "EOF" {
		return errors.NewClosedError(errors.LayerTLS, addr)
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return errors.NewStreamTimeoutError("tls io", addr)
	}
	return errors.NewIOError(errors.LayerTLS, "tls io", err)
}

// Fd passes through the underlying stream socket's descriptor for
// readiness polling, per spec.md §4.2/§4.3.
func (s *Socket) Fd() (uintptr, bool) {
	return s.raw.Fd()
}

// Addr returns the remote address.
func (s *Socket) Addr() string {
	return s.addr
}

func (s *Socket) Close() error {
	err := s.conn.Close()
	return err
}
