// Package urlutil parses the restricted URL grammar this client accepts
// (http/https, with ws/wss folded onto them) and classifies literal hosts
// for SSRF defense. It deliberately does not use net/url for the host
// scan: net/url has no notion of octal/hex/decimal-integer IPv4 literals,
// which real HTTP clients and embedded libcurl-style SSRF filters must
// both understand.
package urlutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/idna"

	"github.com/driftwave/go-netstack/pkg/errors"
)

// URL is a parsed, validated request target.
type URL struct {
	Scheme string // "http" or "https"
	Host   string // hostname or unbracketed IP literal
	Port   int
	Path   string // always begins with "/"
	Query  string // without leading "?"; empty when absent or empty (see HasQuery)

	hasQuery bool
}

// defaultPort returns the scheme's default port.
func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}

// Parse splits a URL string into its components. ws/wss are folded onto
// http/https before parsing, per spec.md §4.1.
func Parse(raw string) (*URL, error) {
	scheme, rest, err := splitScheme(raw)
	if err != nil {
		return nil, err
	}

	hostPort, pathQuery := splitAuthorityFromPath(rest)

	host, port, err := splitHostPort(hostPort, scheme)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, errors.NewValidationError(errors.LayerURL, "host cannot be empty")
	}

	asciiHost, err := idna.Lookup.ToASCII(host)
	if err == nil && asciiHost != "" {
		host = asciiHost
	}

	path, query, hasQuery := splitPathQuery(pathQuery)

	return &URL{
		Scheme:   scheme,
		Host:     host,
		Port:     port,
		Path:     path,
		Query:    query,
		hasQuery: hasQuery,
	}, nil
}

// HasQuery reports whether the original URL included a (possibly empty) query string.
func (u *URL) HasQuery() bool {
	return u.hasQuery
}

func splitScheme(raw string) (scheme, rest string, err error) {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return "", "", errors.NewValidationError(errors.LayerURL, "missing scheme separator")
	}
	scheme = strings.ToLower(raw[:idx])
	rest = raw[idx+len("://"):]

	switch scheme {
	case "ws":
		scheme = "http"
	case "wss":
		scheme = "https"
	case "http", "https":
		// already canonical
	default:
		return "", "", errors.NewValidationError(errors.LayerURL, fmt.Sprintf("unsupported scheme %q", scheme))
	}
	return scheme, rest, nil
}

// splitAuthorityFromPath finds the boundary between "host[:port]" and the
// path+query that follows, respecting bracketed IPv6 literals.
func splitAuthorityFromPath(rest string) (authority, pathQuery string) {
	if len(rest) > 0 && rest[0] == '[' {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return rest, ""
		}
		tail := rest[end+1:]
		slash := strings.IndexByte(tail, '/')
		if slash < 0 {
			return rest, ""
		}
		return rest[:end+1+slash], tail[slash:]
	}

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return rest, ""
	}
	return rest[:slash], rest[slash:]
}

func splitHostPort(authority, scheme string) (host string, port int, err error) {
	if authority == "" {
		return "", 0, nil
	}

	if authority[0] == '[' {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return "", 0, errors.NewValidationError(errors.LayerURL, "unterminated IPv6 literal")
		}
		host = authority[1:end]
		remainder := authority[end+1:]
		if remainder == "" {
			return host, defaultPort(scheme), nil
		}
		if remainder[0] != ':' {
			return "", 0, errors.NewValidationError(errors.LayerURL, "invalid text after IPv6 literal")
		}
		p, err := parsePort(remainder[1:])
		if err != nil {
			return "", 0, err
		}
		return host, p, nil
	}

	colon := strings.IndexByte(authority, ':')
	if colon < 0 {
		return authority, defaultPort(scheme), nil
	}
	p, err := parsePort(authority[colon+1:])
	if err != nil {
		return "", 0, err
	}
	return authority[:colon], p, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewValidationError(errors.LayerURL, fmt.Sprintf("invalid port %q", s))
	}
	if p < 1 || p > 65535 {
		return 0, errors.NewValidationError(errors.LayerURL, fmt.Sprintf("port %d out of range", p))
	}
	return p, nil
}

func splitPathQuery(pathQuery string) (path, query string, hasQuery bool) {
	if pathQuery == "" {
		return "/", "", false
	}
	if q := strings.IndexByte(pathQuery, '?'); q >= 0 {
		path = pathQuery[:q]
		query = pathQuery[q+1:]
		hasQuery = true
	} else {
		path = pathQuery
	}
	if path == "" {
		path = "/"
	}
	return path, query, hasQuery
}

// HostHeader returns the value to send as the Host header: "host" alone if
// Port is the scheme default, else "host:port" (spec.md §4.1).
func (u *URL) HostHeader() string {
	if u.Port == defaultPort(u.Scheme) {
		return u.Host
	}
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// RequestPath returns Path optionally followed by "?"+Query.
func (u *URL) RequestPath() string {
	if u.hasQuery {
		return u.Path + "?" + u.Query
	}
	return u.Path
}

// unreservedByte reports whether b is in the RFC 3986 unreserved set.
func unreservedByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	}
	return false
}

// Encode percent-encodes every octet outside the unreserved set as
// uppercase-hex "%HH" (spec.md §4.1).
func Encode(s string) string {
	needsEscape := false
	for i := 0; i < len(s); i++ {
		if !unreservedByte(s[i]) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) * 3)
	const hex = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreservedByte(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}
