// Package sse implements the WHATWG EventSource field parser (spec.md
// §4.7, component C7): a line-oriented state machine that turns a raw
// byte stream into discrete dispatched events.
package sse

import (
	"strconv"
	"strings"

	"github.com/driftwave/go-netstack/pkg/constants"
)

// Event is one dispatched Server-Sent Event.
type Event struct {
	Type  string // defaults to "message" if never set
	Data  string
	ID    string
	Retry int // -1 if not set on this event
}

// building accumulates field values for the event currently in progress.
type building struct {
	eventType string
	data      string
	hasData   bool
	id        string
	hasID     bool
	retry     int
}

func newBuilding() building {
	return building{retry: -1}
}

// Parser is an incremental SSE decoder. It is not safe for concurrent use.
type Parser struct {
	residual []byte
	cur      building
	lastID   string
	ring     []Event
	skipLF   bool // previous Feed ended on a CR; a leading LF completes that CRLF
}

// New returns a fresh parser.
func New() *Parser {
	return &Parser{cur: newBuilding()}
}

// Feed appends raw bytes, extracts complete lines, and dispatches events
// on blank lines. It returns the number of events now available via Next.
func (p *Parser) Feed(data []byte) int {
	p.residual = append(p.residual, data...)

	for {
		if p.skipLF && len(p.residual) > 0 {
			if p.residual[0] == '\n' {
				p.residual = p.residual[1:]
			}
			p.skipLF = false
		}
		line, rest, found := splitLine(p.residual)
		if !found {
			n := len(p.residual)
			if n == 0 || p.residual[n-1] != '\r' {
				break
			}
			// A CR at the end of the input ends the line now.
			line, rest = p.residual[:n-1], nil
			p.skipLF = true
		}
		p.residual = rest
		p.processLine(line)
	}
	return len(p.ring)
}

// Next pops and returns the oldest buffered event, or ok=false if none
// remain.
func (p *Parser) Next() (Event, bool) {
	if len(p.ring) == 0 {
		return Event{}, false
	}
	ev := p.ring[0]
	p.ring = p.ring[1:]
	return ev, true
}

// Pending reports how many events are currently buffered.
func (p *Parser) Pending() int {
	return len(p.ring)
}

// splitLine extracts the next line, where CR, LF, and CRLF all terminate
// a line (spec.md §4.7).
func splitLine(buf []byte) (line []byte, rest []byte, found bool) {
	for i, b := range buf {
		switch b {
		case '\n':
			return buf[:i], buf[i+1:], true
		case '\r':
			if i+1 < len(buf) && buf[i+1] == '\n' {
				return buf[:i], buf[i+2:], true
			}
			if i+1 == len(buf) {
				return nil, nil, false // might be CRLF split across feeds
			}
			return buf[:i], buf[i+1:], true
		}
	}
	return nil, nil, false
}

func (p *Parser) processLine(line []byte) {
	if len(line) == 0 {
		p.dispatch()
		return
	}
	if line[0] == ':' {
		return // comment
	}

	s := string(line)
	name := s
	value := ""
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		name = s[:idx]
		value = strings.TrimPrefix(s[idx+1:], " ")
	}

	switch name {
	case "event":
		p.cur.eventType = value
	case "data":
		if p.cur.hasData {
			p.cur.data += "\n" + value
		} else {
			p.cur.data = value
			p.cur.hasData = true
		}
	case "id":
		if !strings.Contains(value, "\x00") {
			p.cur.id = value
			p.cur.hasID = true
		}
	case "retry":
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			p.cur.retry = n
		}
	default:
		// unknown field names are ignored
	}
}

func (p *Parser) dispatch() {
	defer func() { p.cur = newBuilding() }()

	if !p.cur.hasData {
		return
	}

	eventType := p.cur.eventType
	if eventType == "" {
		eventType = "message"
	}
	id := p.lastID
	if p.cur.hasID {
		id = p.cur.id
		p.lastID = id
	}

	if len(p.ring) >= constants.SSERingCapacity {
		return // ring full: additional events are silently dropped
	}
	p.ring = append(p.ring, Event{
		Type:  eventType,
		Data:  p.cur.data,
		ID:    id,
		Retry: p.cur.retry,
	})
}
