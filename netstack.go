// Package netstack is a client-side networking stack for HTTP/1.1,
// WebSocket (RFC 6455), and Server-Sent Events over plaintext and TLS
// transports. It composes byte-oriented protocol engines — pkg/stream,
// pkg/tlsclient, pkg/httpparser, pkg/httpclient, pkg/websocket, and
// pkg/sse — above a cross-platform stream-socket abstraction, gated by
// the SSRF-defensive URL validator in pkg/urlutil.
package netstack

import (
	"context"

	"github.com/driftwave/go-netstack/pkg/errors"
	"github.com/driftwave/go-netstack/pkg/httpclient"
	"github.com/driftwave/go-netstack/pkg/sse"
	"github.com/driftwave/go-netstack/pkg/timing"
	"github.com/driftwave/go-netstack/pkg/tlsclient"
	"github.com/driftwave/go-netstack/pkg/urlutil"
	"github.com/driftwave/go-netstack/pkg/websocket"
)

// Version identifies this build of the stack.
const Version = "1.0.0"

// Re-export the most commonly used types for callers that only need the
// root package.
type (
	// Config controls SSRF policy, timeouts, and TLS overrides shared by
	// every request.
	Config = httpclient.Config

	// Request is a caller-constructed HTTP/1.1 request.
	Request = httpclient.Request

	// Header is a single request or response header.
	Header = httpclient.Header

	// Response is the result of a one-shot request.
	Response = httpclient.Response

	// Stream is a background-driven streaming HTTP response handle.
	Stream = httpclient.Stream

	// Metrics captures per-request phase timings.
	Metrics = timing.Metrics

	// Error is the structured error type shared by every layer.
	Error = errors.Error

	// TLSConfig carries TLS adapter overrides (SNI, CA bundle, versions).
	TLSConfig = tlsclient.Config

	// WebSocketConn is an established WebSocket connection.
	WebSocketConn = websocket.Conn

	// WebSocketMessage is a reassembled WebSocket message.
	WebSocketMessage = websocket.Message

	// SSEEvent is one dispatched Server-Sent Event.
	SSEEvent = sse.Event
)

// ParseURL parses a URL string, folding ws/wss onto http/https (spec.md §4.1).
func ParseURL(rawURL string) (*urlutil.URL, error) {
	return urlutil.Parse(rawURL)
}

// Get issues a one-shot GET request.
func Get(ctx context.Context, rawURL string, headers []Header, cfg Config) (*Response, error) {
	u, err := urlutil.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return httpclient.Do(ctx, Request{Method: "GET", URL: u, Headers: headers}, cfg)
}

// Post issues a one-shot POST request with the given body.
func Post(ctx context.Context, rawURL string, body []byte, headers []Header, cfg Config) (*Response, error) {
	u, err := urlutil.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return httpclient.Do(ctx, Request{Method: "POST", URL: u, Headers: headers, Body: body}, cfg)
}

// Do issues a one-shot request built entirely by the caller.
func Do(ctx context.Context, req Request, cfg Config) (*Response, error) {
	return httpclient.Do(ctx, req, cfg)
}

// StartStream issues a request in streaming mode: the caller drains the
// returned Stream with Stream.Read instead of waiting for the full body.
func StartStream(ctx context.Context, req Request, cfg Config) (*Stream, error) {
	return httpclient.StartStream(ctx, req, cfg)
}

// DialWebSocket performs the RFC 6455 opening handshake and returns an
// established connection.
func DialWebSocket(ctx context.Context, rawURL string, cfg websocket.Config) (*WebSocketConn, error) {
	return websocket.Dial(ctx, rawURL, cfg)
}

// NewSSEEventParser returns a fresh Server-Sent Events field parser.
func NewSSEEventParser() *sse.Parser {
	return sse.New()
}
