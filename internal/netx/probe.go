// Package netx provides the connectivity probe the sync engine consults
// before spending a network call.
package netx

import (
	"context"
	"net"
	"net/url"
	"time"
)

// Probe reports whether the server currently looks reachable. Implementations
// must be cheap: the engine calls this at the top of every sync operation.
type Probe interface {
	Connected(ctx context.Context) bool
}

// DialProbe checks reachability with a short TCP dial against the server
// host. A failed dial means "offline" and the engine skips the cycle.
type DialProbe struct {
	addr    string
	timeout time.Duration
}

// NewDialProbe derives the dial target from the server base URL. Default
// ports are filled in from the scheme.
func NewDialProbe(baseURL string, timeout time.Duration) (*DialProbe, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &DialProbe{addr: net.JoinHostPort(host, port), timeout: timeout}, nil
}

func (p *DialProbe) Connected(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Always is a Probe that reports a fixed answer; handy in tests and for
// deployments that want to skip probing.
type Always bool

func (a Always) Connected(ctx context.Context) bool { return bool(a) }
