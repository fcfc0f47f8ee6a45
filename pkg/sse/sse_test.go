package sse

import (
	"fmt"
	"testing"

	"github.com/driftwave/go-netstack/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicEventDispatch(t *testing.T) {
	p := New()
	n := p.Feed([]byte("event: update\ndata: hello\n\n"))
	assert.Equal(t, 1, n)

	ev, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "update", ev.Type)
	assert.Equal(t, "hello", ev.Data)
}

func TestDefaultEventTypeIsMessage(t *testing.T) {
	p := New()
	p.Feed([]byte("data: hi\n\n"))
	ev, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "message", ev.Type)
}

func TestMultiLineDataIsJoinedWithNewline(t *testing.T) {
	p := New()
	p.Feed([]byte("data: line1\ndata: line2\n\n"))
	ev, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "line1\nline2", ev.Data)
}

func TestCommentLinesAreIgnored(t *testing.T) {
	p := New()
	p.Feed([]byte(": this is a comment\ndata: visible\n\n"))
	ev, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "visible", ev.Data)
}

func TestLastIDPersistsAcrossEvents(t *testing.T) {
	p := New()
	p.Feed([]byte("id: 42\ndata: first\n\n"))
	first, _ := p.Next()
	assert.Equal(t, "42", first.ID)

	p.Feed([]byte("data: second\n\n"))
	second, _ := p.Next()
	assert.Equal(t, "42", second.ID, "id carries over when not re-specified")
}

func TestIDContainingNulIsRejected(t *testing.T) {
	p := New()
	p.Feed([]byte("id: 1\ndata: a\n\n"))
	first, _ := p.Next()
	assert.Equal(t, "1", first.ID)

	p.Feed([]byte("id: bad\x00id\ndata: b\n\n"))
	second, _ := p.Next()
	assert.Equal(t, "1", second.ID, "malformed id leaves lastID unchanged")
}

func TestRetryFieldParsed(t *testing.T) {
	p := New()
	p.Feed([]byte("retry: 5000\ndata: x\n\n"))
	ev, _ := p.Next()
	assert.Equal(t, 5000, ev.Retry)
}

func TestRetryDefaultsToNegativeOne(t *testing.T) {
	p := New()
	p.Feed([]byte("data: x\n\n"))
	ev, _ := p.Next()
	assert.Equal(t, -1, ev.Retry)
}

func TestEventWithoutDataIsNotDispatched(t *testing.T) {
	p := New()
	n := p.Feed([]byte("event: ping\n\n"))
	assert.Equal(t, 0, n)
}

func TestCRLFAndBareCRLineTermination(t *testing.T) {
	p := New()
	p.Feed([]byte("data: crlf\r\n\r\n"))
	ev, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "crlf", ev.Data)

	p2 := New()
	p2.Feed([]byte("data: cr\rdata: more\r\r"))
	ev2, ok := p2.Next()
	require.True(t, ok)
	assert.Equal(t, "cr\nmore", ev2.Data)
}

func TestCRLFSplitAcrossFeedCalls(t *testing.T) {
	p := New()
	p.Feed([]byte("data: x\r"))
	assert.Equal(t, 0, p.Pending())
	p.Feed([]byte("\n\r\n"))
	ev, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "x", ev.Data)
}

func TestRingBufferDropsSilentlyOnOverflow(t *testing.T) {
	p := New()
	for i := 0; i < constants.SSERingCapacity+5; i++ {
		p.Feed([]byte(fmt.Sprintf("data: %d\n\n", i)))
	}
	assert.Equal(t, constants.SSERingCapacity, p.Pending())
}
