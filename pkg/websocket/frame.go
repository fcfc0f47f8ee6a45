// Package websocket implements the RFC 6455 client: the HTTP upgrade
// handshake (reusing pkg/httpparser), client-masked frame codec, fragment
// reassembly, and control-frame handling (spec.md §4.6, component C6).
// The codec is grounded on pepnova-9-go-websocket-server/server.go's
// parseFrames/buildFrame, inverted for client-side masking (the teacher
// parses masked client frames and builds unmasked server frames; a client
// does the opposite of both).
package websocket

import (
	"encoding/binary"

	"github.com/driftwave/go-netstack/pkg/constants"
	"github.com/driftwave/go-netstack/pkg/cryptoutil"
	"github.com/driftwave/go-netstack/pkg/errors"
)

// Opcode identifies a frame's payload interpretation (RFC 6455 §5.2).
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (o Opcode) isControl() bool {
	return o >= OpClose
}

// frame is a single decoded WebSocket frame.
type frame struct {
	Fin     bool
	Opcode  Opcode
	Payload []byte
}

// encodeFrame builds a client-to-server frame: always masked, per spec.md
// §4.6. Control frames must carry at most 125 bytes of payload; callers
// (writePing) truncate before calling this.
func encodeFrame(opcode Opcode, payload []byte, fin bool) ([]byte, error) {
	mask, err := cryptoutil.FrameMask()
	if err != nil {
		return nil, err
	}

	firstByte := byte(0)
	if fin {
		firstByte = 0x80
	}
	firstByte |= byte(opcode) & 0x0F

	length := len(payload)
	var header []byte
	switch {
	case length < 126:
		header = []byte{firstByte, 0x80 | byte(length)}
	case length <= 0xFFFF:
		header = make([]byte, 4)
		header[0] = firstByte
		header[1] = 0x80 | 126
		binary.BigEndian.PutUint16(header[2:], uint16(length))
	default:
		header = make([]byte, 10)
		header[0] = firstByte
		header[1] = 0x80 | 127
		binary.BigEndian.PutUint64(header[2:], uint64(length))
	}

	out := make([]byte, 0, len(header)+4+length)
	out = append(out, header...)
	out = append(out, mask[:]...)

	masked := make([]byte, length)
	for i := 0; i < length; i++ {
		masked[i] = payload[i] ^ mask[i%4]
	}
	out = append(out, masked...)
	return out, nil
}

// parseFrame decodes a single frame from the front of buf. It returns
// ok=false if buf does not yet contain a complete frame, in which case
// the caller must read more bytes and retry (spec.md §4.6 frame decoding).
// The receive path tolerates incoming masked frames even though RFC 6455
// forbids servers from sending them.
func parseFrame(buf []byte) (f frame, consumed int, ok bool, err error) {
	if len(buf) < 2 {
		return frame{}, 0, false, nil
	}

	firstByte := buf[0]
	fin := firstByte&0x80 != 0
	opcode := Opcode(firstByte & 0x0F)

	secondByte := buf[1]
	masked := secondByte&0x80 != 0
	length := int64(secondByte & 0x7F)
	pos := 2

	switch length {
	case 126:
		if len(buf)-pos < 2 {
			return frame{}, 0, false, nil
		}
		length = int64(binary.BigEndian.Uint16(buf[pos : pos+2]))
		pos += 2
	case 127:
		if len(buf)-pos < 8 {
			return frame{}, 0, false, nil
		}
		length = int64(binary.BigEndian.Uint64(buf[pos : pos+8]))
		pos += 8
	}

	if length > constants.MaxWebSocketFrameSize {
		return frame{}, 0, false, errors.NewProtocolError(errors.LayerWebSocket, "frame exceeds maximum size", nil)
	}
	if opcode.isControl() && length > constants.MaxControlFramePayload {
		return frame{}, 0, false, errors.NewProtocolError(errors.LayerWebSocket, "control frame payload too large", nil)
	}

	var maskKey [4]byte
	if masked {
		if len(buf)-pos < 4 {
			return frame{}, 0, false, nil
		}
		copy(maskKey[:], buf[pos:pos+4])
		pos += 4
	}

	if int64(len(buf)-pos) < length {
		return frame{}, 0, false, nil
	}

	payload := make([]byte, length)
	copy(payload, buf[pos:int64(pos)+length])
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}

	consumed = pos + int(length)
	return frame{Fin: fin, Opcode: opcode, Payload: payload}, consumed, true, nil
}
