// Package httpparser implements an incremental, push-based HTTP/1.1
// response parser (spec.md §3/§4.4, component C4). It is grounded on the
// teacher's pkg/client/client.go readHeaders/readChunkedBody/readFixedBody
// trio, restructured from a blocking bufio.Reader consumer into a
// Feed([]byte) state machine: both the WebSocket upgrade handshake (C6)
// and the streaming HTTP producer (C5) need to hand the parser bytes from
// a non-blocking read loop rather than own a dedicated blocking reader.
package httpparser

import (
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/driftwave/go-netstack/pkg/constants"
	"github.com/driftwave/go-netstack/pkg/errors"
)

type state int

const (
	stateStatusLine state = iota
	stateHeaders
	stateContentLengthBody
	stateReadUntilClose
	stateChunkedSize
	stateChunkedData
	stateChunkedDataCRLF
	stateChunkedTrailer
	stateDone
	stateError
)

// EventType classifies what a Feed call produced, mirroring the parser
// outcome set of spec.md §7: {NEED_MORE, HEADERS_DONE, CHUNK_READY, DONE, ERROR}.
type EventType int

const (
	NeedMore EventType = iota
	HeadersDone
	ChunkReady
	Done
)

// Header is one parsed response header; Name retains its original case,
// lookups against it are case-insensitive (spec.md §3).
type Header struct {
	Name  string
	Value string
}

// Event is emitted from Feed; only the fields relevant to Type are populated.
type Event struct {
	Type       EventType
	StatusCode int
	StatusText string
	Headers    []Header
	Chunk      []byte
}

// Parser is a single response's incremental HTTP/1.1 state machine. It is
// not safe for concurrent use.
type Parser struct {
	st state

	line []byte // accumulates a partial line across Feed calls

	statusCode int
	statusText string
	headers    []Header

	contentLength int64 // -1 means read-until-close
	remaining     int64 // bytes left in the current body/chunk window
}

// New returns a fresh parser positioned at STATUS_LINE.
func New() *Parser {
	return &Parser{st: stateStatusLine, contentLength: -1}
}

// Feed consumes as much of data as the current state allows and returns
// every event produced, in order. A single call can yield HEADERS_DONE,
// one or more CHUNK_READY, and DONE (spec.md §8 worked example 4).
func (p *Parser) Feed(data []byte) ([]Event, error) {
	var events []Event
	for {
		if p.st == stateDone || p.st == stateError {
			return events, nil
		}
		ev, rest, progressed, err := p.step(data)
		if err != nil {
			p.st = stateError
			return events, err
		}
		if ev != nil {
			events = append(events, *ev)
		}
		if !progressed {
			return events, nil
		}
		data = rest
	}
}

func (p *Parser) step(data []byte) (ev *Event, rest []byte, progressed bool, err error) {
	switch p.st {
	case stateStatusLine:
		return p.stepStatusLine(data)
	case stateHeaders:
		return p.stepHeaderLine(data)
	case stateContentLengthBody:
		return p.stepLengthBody(data)
	case stateReadUntilClose:
		return p.stepReadUntilClose(data)
	case stateChunkedSize:
		return p.stepChunkSize(data)
	case stateChunkedData:
		return p.stepChunkData(data)
	case stateChunkedDataCRLF:
		return p.stepChunkDataCRLF(data)
	case stateChunkedTrailer:
		return p.stepTrailerLine(data)
	default:
		return nil, data, false, nil
	}
}

// Finish notifies the parser of EOF. For length-delimited or chunked
// bodies mid-stream this is a protocol error; for read-until-close mode
// it completes the response (spec.md §3: "for read-until-close... EOF
// signals completion").
func (p *Parser) Finish() (*Event, error) {
	switch p.st {
	case stateDone:
		return nil, nil
	case stateReadUntilClose:
		p.st = stateDone
		return &Event{Type: Done}, nil
	default:
		p.st = stateError
		return nil, errors.NewProtocolError(errors.LayerHTTP, "connection closed before response completed", nil)
	}
}

// IsDone reports whether the parser has reached the DONE state.
func (p *Parser) IsDone() bool {
	return p.st == stateDone
}

// StatusCode returns the parsed status code (valid after HEADERS_DONE).
func (p *Parser) StatusCode() int {
	return p.statusCode
}

// StatusText returns the parsed reason phrase (valid after HEADERS_DONE).
func (p *Parser) StatusText() string {
	return p.statusText
}

// Headers returns the parsed header list (valid after HEADERS_DONE).
func (p *Parser) Headers() []Header {
	return p.headers
}

// HeaderValue looks up a header case-insensitively, returning ("", false)
// if absent.
func (p *Parser) HeaderValue(name string) (string, bool) {
	for _, h := range p.headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// bufferedLine returns the next CRLF-terminated line, buffering any
// partial line across Feed calls.
func (p *Parser) bufferedLine(data []byte) (line []byte, rest []byte, found bool) {
	combined := data
	if len(p.line) > 0 {
		combined = append(append([]byte{}, p.line...), data...)
	}
	idx := indexCRLF(combined)
	if idx < 0 {
		p.line = append(p.line[:0], combined...)
		return nil, nil, false
	}
	p.line = p.line[:0]
	return combined[:idx], combined[idx+2:], true
}

func indexCRLF(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == '\r' && data[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func (p *Parser) stepStatusLine(data []byte) (*Event, []byte, bool, error) {
	line, rest, found := p.bufferedLine(data)
	if !found {
		return nil, nil, false, nil
	}
	code, text, err := parseStatusLine(line)
	if err != nil {
		return nil, nil, false, err
	}
	p.statusCode = code
	p.statusText = text
	p.st = stateHeaders
	return nil, rest, true, nil
}

// parseStatusLine validates "HTTP/1.x SP status SP [reason]" per spec.md
// §3: prefix "HTTP/1." followed by any single character, a three-digit
// status code in [100,599], and a reason phrase truncated to 127 bytes.
func parseStatusLine(line []byte) (int, string, error) {
	s := string(line)
	if len(s) < len("HTTP/1.x ") || !strings.HasPrefix(s, "HTTP/1.") {
		return 0, "", errors.NewProtocolError(errors.LayerHTTP, "malformed status line", nil)
	}
	rest := s[len("HTTP/1.x"):]
	rest = strings.TrimPrefix(rest, " ")
	if len(rest) < 3 {
		return 0, "", errors.NewProtocolError(errors.LayerHTTP, "malformed status line", nil)
	}
	codeStr := rest[:3]
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 || code > 599 {
		return 0, "", errors.NewProtocolError(errors.LayerHTTP, "invalid status code", nil)
	}
	reason := strings.TrimPrefix(rest[3:], " ")
	if len(reason) > constants.MaxStatusTextLen {
		reason = reason[:constants.MaxStatusTextLen]
	}
	return code, reason, nil
}

func (p *Parser) stepHeaderLine(data []byte) (*Event, []byte, bool, error) {
	line, rest, found := p.bufferedLine(data)
	if !found {
		return nil, nil, false, nil
	}
	if len(line) == 0 {
		return p.finishHeaders(rest)
	}
	if len(p.headers) >= constants.MaxHeaderCount {
		return nil, nil, false, errors.NewProtocolError(errors.LayerHTTP, "too many header entries", nil)
	}
	name, value, err := parseHeaderLine(line)
	if err != nil {
		return nil, nil, false, err
	}
	p.headers = append(p.headers, Header{Name: name, Value: value})
	return nil, rest, true, nil
}

func parseHeaderLine(line []byte) (name, value string, err error) {
	s := string(line)
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return "", "", errors.NewProtocolError(errors.LayerHTTP, "malformed header line", nil)
	}
	name = strings.TrimRight(s[:idx], " \t")
	value = strings.TrimLeft(s[idx+1:], " \t")
	if !httpguts.ValidHeaderFieldName(name) {
		return "", "", errors.NewProtocolError(errors.LayerHTTP, "invalid header field name", nil)
	}
	return name, value, nil
}

func (p *Parser) finishHeaders(rest []byte) (*Event, []byte, bool, error) {
	isChunked := false
	if te, ok := p.HeaderValue("Transfer-Encoding"); ok && strings.EqualFold(strings.TrimSpace(te), "chunked") {
		isChunked = true
	}

	if isChunked {
		p.st = stateChunkedSize
		p.contentLength = -1
	} else if cl, ok := p.HeaderValue("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			return nil, nil, false, errors.NewProtocolError(errors.LayerHTTP, "invalid Content-Length", nil)
		}
		p.contentLength = n
		p.remaining = n
		p.st = stateContentLengthBody
	} else {
		p.contentLength = -1
		p.st = stateReadUntilClose
	}

	ev := &Event{
		Type:       HeadersDone,
		StatusCode: p.statusCode,
		StatusText: p.statusText,
		Headers:    p.headers,
	}
	return ev, rest, true, nil
}

func (p *Parser) stepLengthBody(data []byte) (*Event, []byte, bool, error) {
	if p.remaining == 0 {
		p.st = stateDone
		return &Event{Type: Done}, data, true, nil
	}
	if len(data) == 0 {
		return nil, nil, false, nil
	}
	n := int64(len(data))
	if n > p.remaining {
		n = p.remaining
	}
	chunk := append([]byte(nil), data[:n]...)
	p.remaining -= n
	rest := data[n:]
	return &Event{Type: ChunkReady, Chunk: chunk}, rest, true, nil
}

func (p *Parser) stepReadUntilClose(data []byte) (*Event, []byte, bool, error) {
	if len(data) == 0 {
		return nil, nil, false, nil
	}
	chunk := append([]byte(nil), data...)
	return &Event{Type: ChunkReady, Chunk: chunk}, nil, true, nil
}

func (p *Parser) stepChunkSize(data []byte) (*Event, []byte, bool, error) {
	line, rest, found := p.bufferedLine(data)
	if !found {
		return nil, nil, false, nil
	}
	sizeStr := string(line)
	if idx := strings.IndexByte(sizeStr, ';'); idx >= 0 {
		sizeStr = sizeStr[:idx] // discard chunk extensions
	}
	sizeStr = strings.TrimSpace(sizeStr)
	size, err := strconv.ParseInt(sizeStr, 16, 64)
	if err != nil || size < 0 {
		return nil, nil, false, errors.NewProtocolError(errors.LayerHTTP, "invalid chunk size", nil)
	}
	if size > constants.MaxOneShotBodySize*8 {
		return nil, nil, false, errors.NewMemoryError(errors.LayerHTTP, "chunk size exceeds limit", nil)
	}
	if size == 0 {
		p.st = stateChunkedTrailer
		return nil, rest, true, nil
	}
	p.remaining = size
	p.st = stateChunkedData
	return nil, rest, true, nil
}

func (p *Parser) stepChunkData(data []byte) (*Event, []byte, bool, error) {
	if len(data) == 0 {
		return nil, nil, false, nil
	}
	n := int64(len(data))
	if n > p.remaining {
		n = p.remaining
	}
	chunk := append([]byte(nil), data[:n]...)
	p.remaining -= n
	rest := data[n:]
	if p.remaining == 0 {
		p.st = stateChunkedDataCRLF
	}
	return &Event{Type: ChunkReady, Chunk: chunk}, rest, true, nil
}

func (p *Parser) stepChunkDataCRLF(data []byte) (*Event, []byte, bool, error) {
	combined := data
	if len(p.line) > 0 {
		combined = append(append([]byte{}, p.line...), data...)
	}
	if len(combined) < 2 {
		p.line = append(p.line[:0], combined...)
		return nil, nil, false, nil
	}
	if combined[0] != '\r' || combined[1] != '\n' {
		return nil, nil, false, errors.NewProtocolError(errors.LayerHTTP, "missing chunk trailing CRLF", nil)
	}
	p.line = p.line[:0]
	p.st = stateChunkedSize
	return nil, combined[2:], true, nil
}

func (p *Parser) stepTrailerLine(data []byte) (*Event, []byte, bool, error) {
	line, rest, found := p.bufferedLine(data)
	if !found {
		return nil, nil, false, nil
	}
	if len(line) == 0 {
		p.st = stateDone
		return &Event{Type: Done}, rest, true, nil
	}
	// Trailer headers are parsed for validity but otherwise ignored
	// (spec.md §3: "ignoring any trailer headers").
	if _, _, err := parseHeaderLine(line); err != nil {
		return nil, nil, false, err
	}
	return nil, rest, true, nil
}
