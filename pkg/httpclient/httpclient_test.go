package httpclient

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/driftwave/go-netstack/pkg/urlutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeBuildsRequestLineAndHeaders(t *testing.T) {
	u, err := urlutil.Parse("http://example.com/path?x=1")
	require.NoError(t, err)
	req := Request{
		Method:  "POST",
		URL:     u,
		Headers: []Header{{Name: "X-Custom", Value: "yes"}},
		Body:    []byte("abc"),
	}
	raw, err := serialize(req)
	require.NoError(t, err)
	wire := string(raw)

	assert.Contains(t, wire, "POST /path?x=1 HTTP/1.1\r\n")
	assert.Contains(t, wire, "Host: example.com\r\n")
	assert.Contains(t, wire, "User-Agent: go-netstack/1.0\r\n")
	assert.Contains(t, wire, "Connection: close\r\n")
	assert.Contains(t, wire, "X-Custom: yes\r\n")
	assert.Contains(t, wire, "Content-Length: 3\r\n")
	assert.Contains(t, wire, "\r\n\r\nabc")
}

func TestSerializeOmitsContentLengthWithoutBody(t *testing.T) {
	u, err := urlutil.Parse("http://example.com/")
	require.NoError(t, err)
	raw, err := serialize(Request{Method: "GET", URL: u})
	require.NoError(t, err)
	wire := string(raw)
	assert.NotContains(t, wire, "Content-Length")
}

func TestSerializeRejectsHeaderValueInjection(t *testing.T) {
	u, err := urlutil.Parse("http://example.com/")
	require.NoError(t, err)
	req := Request{
		Method:  "GET",
		URL:     u,
		Headers: []Header{{Name: "X-Evil", Value: "yes\r\nX-Injected: true"}},
	}
	_, err = serialize(req)
	assert.Error(t, err)
}

func TestSerializeRejectsInvalidHeaderName(t *testing.T) {
	u, err := urlutil.Parse("http://example.com/")
	require.NoError(t, err)
	req := Request{
		Method:  "GET",
		URL:     u,
		Headers: []Header{{Name: "X-Bad Name", Value: "yes"}},
	}
	_, err = serialize(req)
	assert.Error(t, err)
}

func startHTTPServer(t *testing.T, response string) (string, int) {
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
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte(response))
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestDoOneShotRequest(t *testing.T) {
	host, port := startHTTPServer(t,
		"HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")

	u := &urlutil.URL{Scheme: "http", Host: host, Port: port, Path: "/"}
	resp, err := Do(context.Background(), Request{Method: "GET", URL: u}, Config{Timeout: time.Second, AllowPrivate: true})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []byte("hello"), resp.Body)
}

func TestDoOneShotRequestEmptyBodyIsNil(t *testing.T) {
	host, port := startHTTPServer(t,
		"HTTP/1.1 204 No Content\r\nContent-Length: 0\r\n\r\n")

	u := &urlutil.URL{Scheme: "http", Host: host, Port: port, Path: "/"}
	resp, err := Do(context.Background(), Request{Method: "GET", URL: u}, Config{Timeout: time.Second, AllowPrivate: true})
	require.NoError(t, err)
	assert.Nil(t, resp.Body)
}

func TestStartStreamDeliversChunksThenDone(t *testing.T) {
	host, port := startHTTPServer(t,
		"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n")

	u := &urlutil.URL{Scheme: "http", Host: host, Port: port, Path: "/"}
	s, err := StartStream(context.Background(), Request{Method: "GET", URL: u}, Config{Timeout: time.Second, AllowPrivate: true})
	require.NoError(t, err)
	defer s.Close()

	var collected []byte
	for {
		chunk, done, err := s.Read()
		require.NoError(t, err)
		collected = append(collected, chunk...)
		if done {
			break
		}
	}
	assert.Equal(t, "hello", string(collected))
	assert.False(t, s.Failed())
	assert.True(t, s.Done())
	assert.Equal(t, 200, s.StatusCode())
}
