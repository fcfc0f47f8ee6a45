package websocket

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/driftwave/go-netstack/pkg/cryptoutil"
	"github.com/driftwave/go-netstack/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startHandshakeServer accepts one connection, reads the HTTP upgrade
// request, extracts Sec-WebSocket-Key, and replies with a correct (or
// deliberately wrong, if wrongAccept) 101 response.
func startHandshakeServer(t *testing.T, wrongAccept bool) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		var clientKey string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			if strings.HasPrefix(strings.ToLower(line), "sec-websocket-key:") {
				clientKey = strings.TrimSpace(line[len("sec-websocket-key:"):])
			}
		}

		accept := cryptoutil.AcceptKey(clientKey)
		if wrongAccept {
			accept = "wrong"
		}
		resp := fmt.Sprintf("HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: %s\r\n\r\n", accept)
		conn.Write([]byte(resp))
		time.Sleep(50 * time.Millisecond)
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestDialSucceedsOnValidHandshake(t *testing.T) {
	host, port := startHandshakeServer(t, false)
	url := fmt.Sprintf("ws://%s:%d/chat", host, port)

	conn, err := Dial(context.Background(), url, Config{Timeout: time.Second, AllowPrivate: true})
	require.NoError(t, err)
	defer conn.Close(1000, "")
	assert.True(t, conn.Connected())
}

func TestDialFailsOnBadAcceptKey(t *testing.T) {
	host, port := startHandshakeServer(t, true)
	url := fmt.Sprintf("ws://%s:%d/chat", host, port)

	_, err := Dial(context.Background(), url, Config{Timeout: time.Second, AllowPrivate: true})
	require.Error(t, err)
	assert.Equal(t, errors.KindHandshake, errors.GetKind(err))
	assert.Equal(t, errors.LayerWebSocket, errors.GetLayer(err))
}

func TestDialFailsOnBadURLYieldsURLKind(t *testing.T) {
	_, err := Dial(context.Background(), "not-a-url", Config{Timeout: time.Second})
	require.Error(t, err)
	assert.Equal(t, errors.KindURL, errors.GetKind(err))
}
