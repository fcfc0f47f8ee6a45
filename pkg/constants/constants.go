// Package constants defines the magic numbers and default values shared
// across the netstack client.
package constants

import "time"

// Timeouts and limits (spec.md §6 Configuration).
const (
	// DefaultTimeout is the default connect-and-I/O timeout.
	DefaultTimeout = 30000 * time.Millisecond
	// DefaultConnTimeout is used when only a connect-phase timeout is needed.
	DefaultConnTimeout = 10 * time.Second
)

// HTTP limits.
const (
	// MaxHeaderCount is the maximum number of header entries the HTTP/1.1
	// parser will accept before failing (spec.md §3).
	MaxHeaderCount = 64
	// MaxStatusTextLen truncates the HTTP status line's reason phrase.
	MaxStatusTextLen = 127
	// MaxOneShotBodySize caps the one-shot response body (spec.md §4.5/§6).
	MaxOneShotBodySize = 10 * 1024 * 1024
	// StreamReadBufferSize is the suggested producer read-buffer size
	// (spec.md §4.5).
	StreamReadBufferSize = 8 * 1024
	// StreamChunkQueueSize bounds the streaming chunk channel.
	StreamChunkQueueSize = 64
)

// WebSocket limits.
const (
	// MaxWebSocketFrameSize is the 100 MiB incoming-frame ceiling (spec.md §1/§6).
	MaxWebSocketFrameSize = 100 * 1024 * 1024
	// MaxControlFramePayload is the RFC 6455 control-frame payload cap.
	MaxControlFramePayload = 125
)

// SSE limits.
const (
	// SSERingCapacity is the fixed event-ring capacity (spec.md §3/§9).
	SSERingCapacity = 16
)
