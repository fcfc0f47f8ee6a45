package httpclient

import (
	"context"
	"strings"

	"github.com/driftwave/go-netstack/pkg/buffer"
	"github.com/driftwave/go-netstack/pkg/constants"
	"github.com/driftwave/go-netstack/pkg/errors"
	"github.com/driftwave/go-netstack/pkg/httpparser"
	"github.com/driftwave/go-netstack/pkg/timing"
)

// Response is the result of a one-shot request. Body is nil when the
// response had no body, never an empty non-nil slice (spec.md
// §4.5: "absence of a body is represented by a null pointer and zero
// length, not an empty string").
type Response struct {
	StatusCode int
	StatusText string
	Headers    []httpparser.Header
	Body       []byte
	Timings    timing.Metrics
	Error      error
}

// HeaderValue looks up a response header case-insensitively.
func (r *Response) HeaderValue(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Do executes a one-shot request: validate, connect, write, read the full
// response into a capped in-memory buffer, and return it (spec.md §4.5).
// All error surfaces are reported via the returned Response's Error field
// rather than by returning a nil Response, except for failures before any
// connection state exists (URL validation, connect, TLS handshake).
func Do(ctx context.Context, req Request, cfg Config) (*Response, error) {
	timer := timing.NewTimer()

	conn, err := openConn(ctx, req.URL, cfg, timer)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	wire, err := serialize(req)
	if err != nil {
		return &Response{Error: err, Timings: timer.GetMetrics()}, err
	}
	if err := conn.WriteAll(wire); err != nil {
		return &Response{Error: err, Timings: timer.GetMetrics()}, err
	}

	limit := cfg.BodyMemLimit
	if limit <= 0 {
		limit = constants.MaxOneShotBodySize
	}

	parser := httpparser.New()
	body := buffer.New(limit)
	defer body.Close()

	resp := &Response{}
	readBuf := make([]byte, constants.StreamReadBufferSize)
	timer.StartTTFB()
	gotFirstByte := false
	var bodyBytes int64

	for {
		n, readErr := conn.Read(readBuf)
		if n > 0 {
			if !gotFirstByte {
				timer.EndTTFB()
				gotFirstByte = true
			}
			events, feedErr := parser.Feed(readBuf[:n])
			for _, ev := range events {
				switch ev.Type {
				case httpparser.HeadersDone:
					resp.StatusCode = ev.StatusCode
					resp.StatusText = ev.StatusText
					resp.Headers = ev.Headers
				case httpparser.ChunkReady:
					bodyBytes += int64(len(ev.Chunk))
					if bodyBytes > limit {
						resp.Error = errors.NewMemoryError(errors.LayerHTTP, "response body exceeds limit", nil)
						resp.Timings = timer.GetMetrics()
						return resp, resp.Error
					}
					if _, werr := body.Write(ev.Chunk); werr != nil {
						resp.Error = werr
						resp.Timings = timer.GetMetrics()
						return resp, werr
					}
				case httpparser.Done:
					resp.Timings = timer.GetMetrics()
					resp.Body = bodyOrNil(body)
					return resp, nil
				}
			}
			if feedErr != nil {
				resp.Error = feedErr
				resp.Timings = timer.GetMetrics()
				return resp, feedErr
			}
		}
		if readErr != nil {
			if errors.IsClosedError(readErr) {
				ev, finErr := parser.Finish()
				if finErr != nil {
					resp.Error = finErr
					resp.Timings = timer.GetMetrics()
					return resp, finErr
				}
				if ev != nil && ev.Type == httpparser.Done {
					resp.Timings = timer.GetMetrics()
					resp.Body = bodyOrNil(body)
					return resp, nil
				}
				resp.Timings = timer.GetMetrics()
				resp.Body = bodyOrNil(body)
				return resp, nil
			}
			resp.Error = readErr
			resp.Timings = timer.GetMetrics()
			return resp, readErr
		}
	}
}

func bodyOrNil(b *buffer.Buffer) []byte {
	if b.Size() == 0 {
		return nil
	}
	return append([]byte(nil), b.Bytes()...)
}
