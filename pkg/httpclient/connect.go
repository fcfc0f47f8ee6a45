package httpclient

import (
	"context"
	"time"

	"github.com/driftwave/go-netstack/pkg/stream"
	"github.com/driftwave/go-netstack/pkg/timing"
	"github.com/driftwave/go-netstack/pkg/tlsclient"
	"github.com/driftwave/go-netstack/pkg/urlutil"
)

// Config controls validation and transport behavior shared by one-shot
// and streaming requests (spec.md §6 Configuration).
type Config struct {
	// Timeout bounds connect and each I/O operation; default 30s.
	Timeout time.Duration
	// AllowPrivate disables SSRF-defensive literal-host rejection.
	AllowPrivate bool
	// TLS carries adapter-level TLS overrides; zero value uses defaults.
	TLS tlsclient.Config
	// BodyMemLimit caps the one-shot response body; default 10 MiB.
	BodyMemLimit int64
}

func defaultTimeout(cfg Config) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 30 * time.Second
}

// openConn validates u against SSRF policy, then connects a plain or TLS
// stream depending on scheme, per spec.md §4.1/§4.2/§4.3 layering.
func openConn(ctx context.Context, u *urlutil.URL, cfg Config, timer *timing.Timer) (stream.Conn, error) {
	if err := urlutil.Validate(u, cfg.AllowPrivate); err != nil {
		return nil, err
	}

	timeout := defaultTimeout(cfg)

	timer.StartTCP()
	raw, err := stream.Connect(ctx, u.Host, u.Port, timeout)
	timer.EndTCP()
	if err != nil {
		return nil, err
	}

	if u.Scheme != "https" {
		return raw, nil
	}

	tlsCfg := cfg.TLS
	if tlsCfg.HandshakeTimeout <= 0 {
		tlsCfg.HandshakeTimeout = timeout
	}
	timer.StartTLS()
	tlsSock, err := tlsclient.Upgrade(ctx, u.Host, raw, tlsCfg)
	timer.EndTLS()
	if err != nil {
		return nil, err
	}
	return tlsSock, nil
}
