package websocket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/driftwave/go-netstack/pkg/cryptoutil"
	"github.com/driftwave/go-netstack/pkg/errors"
	"github.com/driftwave/go-netstack/pkg/httpparser"
	"github.com/driftwave/go-netstack/pkg/stream"
	"github.com/driftwave/go-netstack/pkg/timing"
	"github.com/driftwave/go-netstack/pkg/tlsclient"
	"github.com/driftwave/go-netstack/pkg/urlutil"
)

// defaultTimeout matches the connect-and-I/O default of spec.md §6.
const defaultTimeout = 30 * time.Second

// Config mirrors httpclient.Config's connection-establishment knobs; kept
// separate so this package does not depend on pkg/httpclient.
type Config struct {
	Timeout      time.Duration
	AllowPrivate bool
	TLS          tlsclient.Config
}

// Dial performs the WebSocket opening handshake per spec.md §4.6: rewrite
// ws/wss onto http/https (already done by urlutil.Parse), connect, send
// the upgrade request, and validate the 101 response and accept key.
func Dial(ctx context.Context, rawURL string, cfg Config) (*Conn, error) {
	u, err := urlutil.Parse(rawURL)
	if err != nil {
		return nil, errors.NewURLError(err.Error())
	}
	if err := urlutil.Validate(u, cfg.AllowPrivate); err != nil {
		return nil, errors.NewURLError(err.Error())
	}

	timer := timing.NewTimer()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	timer.StartTCP()
	raw, err := stream.Connect(ctx, u.Host, u.Port, timeout)
	timer.EndTCP()
	if err != nil {
		return nil, err
	}

	var conn stream.Conn = raw
	if u.Scheme == "https" {
		tlsCfg := cfg.TLS
		if tlsCfg.HandshakeTimeout <= 0 {
			tlsCfg.HandshakeTimeout = timeout
		}
		timer.StartTLS()
		tlsSock, err := tlsclient.Upgrade(ctx, u.Host, raw, tlsCfg)
		timer.EndTLS()
		if err != nil {
			return nil, err
		}
		conn = tlsSock
	}

	key, err := cryptoutil.SecWebSocketKey()
	if err != nil {
		conn.Close()
		return nil, err
	}

	request := fmt.Sprintf(
		"GET %s HTTP/1.1\r\n"+
			"Host: %s\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Key: %s\r\n"+
			"Sec-WebSocket-Version: 13\r\n"+
			"\r\n",
		u.RequestPath(), u.HostHeader(), key)

	if err := conn.WriteAll([]byte(request)); err != nil {
		conn.Close()
		return nil, err
	}

	if err := readHandshakeResponse(conn, key); err != nil {
		conn.Close()
		return nil, err
	}

	return newConn(conn), nil
}

// readHandshakeResponse drives pkg/httpparser on the upgrade response and
// validates status 101 plus the Sec-WebSocket-Accept value (spec.md §4.6).
func readHandshakeResponse(conn stream.Conn, clientKey string) error {
	parser := httpparser.New()
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			events, feedErr := parser.Feed(buf[:n])
			for _, ev := range events {
				if ev.Type == httpparser.HeadersDone {
					return validateHandshake(conn.Addr(), ev, clientKey)
				}
			}
			if feedErr != nil {
				return errors.NewLayerHandshakeError(errors.LayerWebSocket, conn.Addr(), feedErr)
			}
		}
		if err != nil {
			return errors.NewLayerHandshakeError(errors.LayerWebSocket, conn.Addr(), err)
		}
	}
}

// validateHandshake enforces spec.md §4.6: "any deviation ⇒ HANDSHAKE".
func validateHandshake(addr string, ev httpparser.Event, clientKey string) error {
	if ev.StatusCode != 101 {
		return errors.NewLayerHandshakeError(errors.LayerWebSocket, addr,
			fmt.Errorf("expected status 101, got %d", ev.StatusCode))
	}
	var upgrade, accept string
	for _, h := range ev.Headers {
		switch {
		case strings.EqualFold(h.Name, "Upgrade"):
			upgrade = h.Value
		case strings.EqualFold(h.Name, "Sec-WebSocket-Accept"):
			accept = h.Value
		}
	}
	if !strings.EqualFold(upgrade, "websocket") {
		return errors.NewLayerHandshakeError(errors.LayerWebSocket, addr, fmt.Errorf("missing Upgrade: websocket header"))
	}
	want := cryptoutil.AcceptKey(clientKey)
	if accept != want {
		return errors.NewLayerHandshakeError(errors.LayerWebSocket, addr, fmt.Errorf("Sec-WebSocket-Accept mismatch"))
	}
	return nil
}
