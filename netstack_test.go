package netstack

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLFoldsWebSocketScheme(t *testing.T) {
	u, err := ParseURL("ws://example.com/chat")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
}

func TestGetAgainstLocalServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
	}()

	url := "http://" + ln.Addr().String()
	resp, err := Get(context.Background(), url, nil, Config{Timeout: time.Second, AllowPrivate: true})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []byte("ok"), resp.Body)
}
