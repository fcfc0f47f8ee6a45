package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageFormat(t *testing.T) {
	err := NewConnectError("example.com:80", fmt.Errorf("refused"))
	assert.Equal(t, "[stream:CONNECT] connect example.com:80: failed to connect: refused", err.Error())
}

func TestErrorIsMatchesLayerAndKind(t *testing.T) {
	a := NewStreamTimeoutError("read", "1.2.3.4:80")
	b := NewStreamTimeoutError("write", "5.6.7.8:443")
	assert.True(t, a.Is(b))
	assert.False(t, a.Is(NewConnectError("x", nil)))
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewIOError(LayerHTTP, "read", cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestGetKindAndLayer(t *testing.T) {
	err := NewProtocolError(LayerWebSocket, "bad frame", nil)
	assert.Equal(t, KindProtocol, GetKind(err))
	assert.Equal(t, LayerWebSocket, GetLayer(err))
	assert.Equal(t, Kind(""), GetKind(fmt.Errorf("plain")))
}

func TestIsClosedError(t *testing.T) {
	assert.True(t, IsClosedError(NewClosedError(LayerStream, "addr")))
	assert.False(t, IsClosedError(NewConnectError("addr", nil)))
}

func TestIsTimeoutError(t *testing.T) {
	assert.True(t, IsTimeoutError(NewStreamTimeoutError("io", "addr")))
	assert.False(t, IsTimeoutError(NewConnectError("addr", nil)))
}

func TestIsContextCanceled(t *testing.T) {
	assert.True(t, IsContextCanceled(context.Canceled))
	assert.False(t, IsContextCanceled(fmt.Errorf("other")))
}

func TestNewLayerHandshakeErrorUsesGivenLayer(t *testing.T) {
	err := NewLayerHandshakeError(LayerWebSocket, "addr", fmt.Errorf("bad status"))
	assert.Equal(t, LayerWebSocket, err.Layer)
	assert.Equal(t, KindHandshake, err.Kind)
}

func TestNewURLErrorIsWebSocketLayer(t *testing.T) {
	err := NewURLError("bad url")
	assert.Equal(t, LayerWebSocket, err.Layer)
	assert.Equal(t, KindURL, err.Kind)
}
