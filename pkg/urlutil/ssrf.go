package urlutil

import (
	"net"
	"strconv"
	"strings"

	"github.com/driftwave/go-netstack/pkg/errors"
)

// loopbackNames are literal hostnames treated as loopback without resolution.
var loopbackNames = map[string]bool{
	"localhost":             true,
	"localhost.localdomain": true,
}

// Validate rejects URLs whose scheme or literal host make them unsafe for
// an SSRF-sensitive caller to dial, per spec.md §4.1. It never performs DNS
// resolution — see spec.md §9 for that known limitation.
func Validate(u *URL, allowPrivate bool) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewValidationError(errors.LayerURL, "scheme must be http or https")
	}
	if u.Host == "" {
		return errors.NewValidationError(errors.LayerURL, "host cannot be empty")
	}
	if u.Port < 1 || u.Port > 65535 {
		return errors.NewValidationError(errors.LayerURL, "port out of range")
	}

	if allowPrivate {
		return nil
	}

	host := strings.ToLower(u.Host)
	if loopbackNames[host] {
		return errors.NewValidationError(errors.LayerURL, "loopback hostname not allowed")
	}

	if ip := parseIPv6Literal(host); ip != nil {
		if isDisallowedIP(ip) {
			return errors.NewValidationError(errors.LayerURL, "private/loopback IPv6 literal not allowed")
		}
		return nil
	}

	if ip := parseIPv4Literal(host); ip != nil {
		if isDisallowedIP(ip) {
			return errors.NewValidationError(errors.LayerURL, "private/loopback/broadcast IPv4 literal not allowed")
		}
		return nil
	}

	return nil
}

// parseIPv6Literal parses a textual IPv6 address (net.ParseIP already
// handles "::1" and IPv6-mapped-IPv4 forms like "::ffff:127.0.0.1").
func parseIPv6Literal(host string) net.IP {
	if !strings.Contains(host, ":") {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	return ip
}

// isDisallowedIP classifies a decoded IP per spec.md §4.1: loopback,
// link-local, RFC1918 private, the 0.0.0.0/8 "this network" block, and the
// broadcast address. net.IP's own classification methods cover IPv4,
// IPv6, and IPv4-in-IPv6 forms uniformly.
func isDisallowedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		if v4[0] == 0 {
			return true // 0.0.0.0/8
		}
		if v4[0] == 255 && v4[1] == 255 && v4[2] == 255 && v4[3] == 255 {
			return true // 255.255.255.255
		}
	}
	return false
}

// parseIPv4Literal decodes an IPv4 literal written in decimal-dotted,
// octal ("0..."), hex ("0x..."), or single-integer form, matching the
// forms browsers and curl historically accept and that naive regex-based
// SSRF filters miss (spec.md §4.1).
func parseIPv4Literal(host string) net.IP {
	parts := strings.Split(host, ".")
	if len(parts) > 4 || len(parts) == 0 {
		return nil
	}

	values := make([]uint64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil
		}
		v, ok := parseUintLiteral(p)
		if !ok {
			return nil
		}
		values = append(values, v)
	}

	// Each non-final part must fit in a byte; the final part absorbs the
	// remaining bits (e.g. "127.1" == 127.0.0.1, "0x7f000001" == 127.0.0.1).
	for i := 0; i < len(values)-1; i++ {
		if values[i] > 0xFF {
			return nil
		}
	}
	maxFinal := uint64(1) << (8 * uint(5-len(values)))
	if values[len(values)-1] >= maxFinal {
		return nil
	}

	var packed uint32
	for i := 0; i < len(values)-1; i++ {
		packed |= uint32(values[i]) << (8 * uint(3-i))
	}
	packed |= uint32(values[len(values)-1])

	return net.IPv4(byte(packed>>24), byte(packed>>16), byte(packed>>8), byte(packed))
}

// parseUintLiteral parses a single IPv4-address component in decimal,
// octal (leading "0"), or hexadecimal (leading "0x"/"0X") form.
func parseUintLiteral(s string) (uint64, bool) {
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base = 16
		s = s[2:]
	case len(s) > 1 && s[0] == '0':
		base = 8
	}
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
