// Package httpclient implements the one-shot and streaming HTTP/1.1
// request engines (spec.md §4.5, component C5), grounded on the teacher's
// pkg/client/client.go Do method and its request/response serialization,
// stripped of connection pooling, HTTP/2, and proxying (Non-goals) and
// rebuilt on top of pkg/stream, pkg/tlsclient, and pkg/httpparser.
package httpclient

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/driftwave/go-netstack/pkg/errors"
	"github.com/driftwave/go-netstack/pkg/urlutil"
)

// userAgent identifies the stack in every outbound request (spec.md §4.5).
const userAgent = "go-netstack/1.0"

// Request is a caller-constructed HTTP/1.1 request.
type Request struct {
	Method  string
	URL     *urlutil.URL
	Headers []Header
	Body    []byte
}

// Header is a single caller-supplied request header, emitted verbatim.
type Header struct {
	Name  string
	Value string
}

// serialize builds the request-line + header block + body exactly as
// spec.md §4.5 describes: request line, Host, User-Agent, Connection:
// close, caller headers verbatim, Content-Length when a body is present.
// Caller-supplied header names and values are validated with the same
// httpguts rules pkg/httpparser applies on the read side, rejecting any
// CR/LF or other control bytes that would otherwise let a header value
// inject extra request lines onto the wire.
func serialize(req Request) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, req.URL.RequestPath())
	fmt.Fprintf(&b, "Host: %s\r\n", req.URL.HostHeader())
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("Connection: close\r\n")
	for _, h := range req.Headers {
		if !httpguts.ValidHeaderFieldName(h.Name) {
			return nil, errors.NewValidationError(errors.LayerHTTP, fmt.Sprintf("invalid header name %q", h.Name))
		}
		if !httpguts.ValidHeaderFieldValue(h.Value) {
			return nil, errors.NewValidationError(errors.LayerHTTP, fmt.Sprintf("invalid header value for %q", h.Name))
		}
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	if len(req.Body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(req.Body))
	}
	b.WriteString("\r\n")

	out := make([]byte, 0, b.Len()+len(req.Body))
	out = append(out, []byte(b.String())...)
	out = append(out, req.Body...)
	return out, nil
}
