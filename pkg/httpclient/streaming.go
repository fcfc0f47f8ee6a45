package httpclient

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/driftwave/go-netstack/pkg/constants"
	"github.com/driftwave/go-netstack/pkg/errors"
	"github.com/driftwave/go-netstack/pkg/httpparser"
	"github.com/driftwave/go-netstack/pkg/stream"
	"github.com/driftwave/go-netstack/pkg/timing"
)

// Stream is the streaming HTTP handle of spec.md §3/§4.5: a background
// producer goroutine owns the socket and parser, feeding a bounded FIFO
// that the caller drains with Read. The "mutex + condition variable" the
// specification calls for is the Go-idiomatic buffered channel plus
// sync/atomic flags for done/error/status_code (spec.md §9: "on platforms
// without native threads this maps to a runtime-provided task with
// bounded channel").
type Stream struct {
	conn   stream.Conn
	chunks chan []byte

	done       atomic.Bool
	failed     atomic.Bool
	statusCode atomic.Int32

	mu       sync.Mutex
	headers  []httpparser.Header
	statusTx string
	lastErr  error
	timings  timing.Metrics

	closeOnce sync.Once
}

// StartStream validates, connects, sends the request, and spawns the
// background producer, returning immediately once the request is on the
// wire (spec.md §4.5 "On start, after handshake and request emission,
// spawn a background producer").
func StartStream(ctx context.Context, req Request, cfg Config) (*Stream, error) {
	timer := timing.NewTimer()

	conn, err := openConn(ctx, req.URL, cfg, timer)
	if err != nil {
		return nil, err
	}

	wire, err := serialize(req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteAll(wire); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Stream{
		conn:   conn,
		chunks: make(chan []byte, constants.StreamChunkQueueSize),
	}
	go s.produce(timer)
	return s, nil
}

func (s *Stream) produce(timer *timing.Timer) {
	defer close(s.chunks)

	parser := httpparser.New()
	buf := make([]byte, constants.StreamReadBufferSize)
	timer.StartTTFB()
	gotFirstByte := false

	finish := func(err error) {
		s.mu.Lock()
		s.lastErr = err
		s.timings = timer.GetMetrics()
		s.mu.Unlock()
		if err != nil {
			s.failed.Store(true)
		}
		s.done.Store(true)
	}

	for {
		n, readErr := s.conn.Read(buf)
		if n > 0 {
			if !gotFirstByte {
				timer.EndTTFB()
				gotFirstByte = true
			}
			events, feedErr := parser.Feed(buf[:n])
			for _, ev := range events {
				switch ev.Type {
				case httpparser.HeadersDone:
					s.mu.Lock()
					s.headers = ev.Headers
					s.statusTx = ev.StatusText
					s.mu.Unlock()
					s.statusCode.Store(int32(ev.StatusCode))
				case httpparser.ChunkReady:
					s.chunks <- append([]byte(nil), ev.Chunk...)
				case httpparser.Done:
					finish(nil)
					return
				}
			}
			if feedErr != nil {
				finish(feedErr)
				return
			}
		}
		if readErr != nil {
			if errors.IsClosedError(readErr) {
				if _, finErr := parser.Finish(); finErr != nil {
					finish(finErr)
					return
				}
				finish(nil)
				return
			}
			finish(readErr)
			return
		}
	}
}

// Read blocks until a chunk is available, the stream is done, or it
// failed, matching spec.md §4.5's consumer contract: "done as seen by the
// consumer is true only when the producer is done AND the queue is empty."
func (s *Stream) Read() (chunk []byte, done bool, err error) {
	c, ok := <-s.chunks
	if ok {
		return c, false, nil
	}
	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()
	return nil, true, lastErr
}

// StatusCode returns the response status code, valid once the first
// HEADERS_DONE event has been observed (0 until then).
func (s *Stream) StatusCode() int {
	return int(s.statusCode.Load())
}

// Headers returns the parsed response header list, valid after the first
// chunk or Done/error observation.
func (s *Stream) Headers() []httpparser.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers
}

// Timings returns the request's phase timings, valid once Done.
func (s *Stream) Timings() timing.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timings
}

// Failed reports whether the stream terminated with an error.
func (s *Stream) Failed() bool {
	return s.failed.Load()
}

// Done reports whether the producer has finished, without blocking.
func (s *Stream) Done() bool {
	return s.done.Load()
}

// Close tears down the underlying connection. It is idempotent and safe
// to call before the producer observes EOF (spec.md §4.5: "close sets
// done, joins the producer, drains and frees any residual chunks, and
// tears down sockets").
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.done.Store(true)
		err = s.conn.Close()
		for range s.chunks {
			// drain any chunks the producer enqueued before observing done
		}
	})
	return err
}
