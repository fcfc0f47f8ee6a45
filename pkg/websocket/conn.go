package websocket

import (
	"context"
	"encoding/binary"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/driftwave/go-netstack/pkg/errors"
	"github.com/driftwave/go-netstack/pkg/stream"
)

// Message is a complete, reassembled WebSocket message.
type Message struct {
	Opcode  Opcode // OpText or OpBinary
	Payload []byte
}

// Conn is an established WebSocket connection (spec.md §3 "WebSocket
// handle"). A Conn is not safe for concurrent use by multiple goroutines:
// Recv writes PONG and CLOSE replies to the same transport that SendText,
// SendBinary, Ping and Close write to, and those writes are not serialized.
type Conn struct {
	conn stream.Conn

	mu        sync.Mutex
	connected bool
	closeCode int
	closeMsg  string

	readBuf []byte // unconsumed bytes from the last Read

	// pending fragment reassembly state (spec.md §3 fragment-reassembly buffer).
	fragOpcode Opcode
	fragData   []byte
	fragActive bool
}

func newConn(c stream.Conn) *Conn {
	return &Conn{conn: c, connected: true}
}

// Connected reports whether the connection is still open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// CloseCode and CloseReason return the code/reason captured from a
// received CLOSE frame, valid once Recv has returned a CLOSED error.
func (c *Conn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

func (c *Conn) CloseReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeMsg
}

// SendText sends a single unfragmented TEXT message.
func (c *Conn) SendText(payload string) error {
	return c.sendFrame(OpText, []byte(payload))
}

// SendBinary sends a single unfragmented BINARY message.
func (c *Conn) SendBinary(payload []byte) error {
	return c.sendFrame(OpBinary, payload)
}

func (c *Conn) sendFrame(opcode Opcode, payload []byte) error {
	if !c.Connected() {
		return errors.NewClosedError(errors.LayerWebSocket, c.conn.Addr())
	}
	wire, err := encodeFrame(opcode, payload, true)
	if err != nil {
		return err
	}
	return c.conn.WriteAll(wire)
}

func (c *Conn) writePing(payload []byte) error {
	if len(payload) > 125 {
		payload = payload[:125]
	}
	return c.sendFrame(OpPing, payload)
}

func (c *Conn) writePong(payload []byte) error {
	if len(payload) > 125 {
		payload = payload[:125]
	}
	return c.sendFrame(OpPong, payload)
}

// Ping sends a PING frame carrying payload (truncated to 125 bytes).
func (c *Conn) Ping(payload []byte) error {
	return c.writePing(payload)
}

// Recv waits up to timeout for one complete message, handling PING/PONG
// transparently and reassembling fragmented messages, per spec.md §4.6's
// message-reassembly algorithm. A timeout returns a TIMEOUT error without
// altering connection state.
func (c *Conn) Recv(ctx context.Context, timeout time.Duration) (*Message, error) {
	for {
		f, err := c.nextFrame(ctx, timeout)
		if err != nil {
			return nil, err
		}

		switch {
		case f.Opcode == OpText || f.Opcode == OpBinary:
			if f.Fin && !c.fragActive {
				return &Message{Opcode: f.Opcode, Payload: f.Payload}, nil
			}
			c.fragActive = true
			c.fragOpcode = f.Opcode
			c.fragData = append([]byte(nil), f.Payload...)
			if f.Fin {
				msg := &Message{Opcode: c.fragOpcode, Payload: c.fragData}
				c.fragActive = false
				c.fragData = nil
				return msg, nil
			}

		case f.Opcode == OpContinuation:
			if !c.fragActive {
				return nil, errors.NewProtocolError(errors.LayerWebSocket, "continuation frame without pending fragment", nil)
			}
			c.fragData = append(c.fragData, f.Payload...)
			if f.Fin {
				msg := &Message{Opcode: c.fragOpcode, Payload: c.fragData}
				c.fragActive = false
				c.fragData = nil
				return msg, nil
			}

		case f.Opcode == OpPing:
			if err := c.writePong(f.Payload); err != nil {
				return nil, err
			}

		case f.Opcode == OpPong:
			// discard

		case f.Opcode == OpClose:
			code, reason := parseClosePayload(f.Payload)
			c.mu.Lock()
			c.closeCode = code
			c.closeMsg = reason
			c.connected = false
			c.mu.Unlock()
			_ = c.sendCloseFrame(code, reason)
			c.conn.Close()
			return nil, errors.NewClosedError(errors.LayerWebSocket, c.conn.Addr())

		default:
			// unknown opcode: drop and continue
		}
	}
}

func parseClosePayload(payload []byte) (code int, reason string) {
	if len(payload) < 2 {
		return 0, "" // empty CLOSE payload yields close_code 0, not the RFC 7.1.5 default
	}
	code = int(binary.BigEndian.Uint16(payload[:2]))
	reasonBytes := payload[2:]
	if utf8.Valid(reasonBytes) {
		reason = string(reasonBytes)
	}
	return code, reason
}

// nextFrame reads until a complete frame is available, applying timeout
// as a per-call read deadline. This is the Go-idiomatic equivalent of
// spec.md §4.6's "poll the descriptor for readability before each frame
// read": the runtime network poller already multiplexes readiness behind
// net.Conn's deadline, so a literal select/poll call would be redundant
// (the underlying stream.Conn still has Fd(), but Conn does not expose its
// transport, so a caller cannot poll a WebSocket connection's descriptor).
func (c *Conn) nextFrame(ctx context.Context, timeout time.Duration) (frame, error) {
	for {
		f, consumed, ok, err := parseFrame(c.readBuf)
		if err != nil {
			return frame{}, err
		}
		if ok {
			c.readBuf = c.readBuf[consumed:]
			return f, nil
		}

		if timeout > 0 {
			c.conn.SetTimeout(timeout)
		}

		chunk := make([]byte, 64*1024)
		n, readErr := c.conn.Read(chunk)
		if n > 0 {
			c.readBuf = append(c.readBuf, chunk[:n]...)
		}
		if readErr != nil {
			if errors.IsClosedError(readErr) {
				c.mu.Lock()
				c.connected = false
				c.mu.Unlock()
			}
			return frame{}, readErr
		}
		if ctx.Err() != nil {
			return frame{}, errors.NewStreamTimeoutError("recv", c.conn.Addr())
		}
	}
}

// sendCloseFrame emits the CLOSE response frame, best-effort.
func (c *Conn) sendCloseFrame(code int, reason string) error {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	wire, err := encodeFrame(OpClose, payload, true)
	if err != nil {
		return err
	}
	return c.conn.WriteAll(wire)
}

// Close sends a CLOSE frame with the given code and reason, marks the
// connection disconnected, and tears down the transport. Safe to call on
// an already-closed handle (spec.md §4.6).
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if !wasConnected {
		return nil
	}
	err := c.sendCloseFrame(code, reason)
	closeErr := c.conn.Close()
	if err != nil {
		return err
	}
	return closeErr
}
