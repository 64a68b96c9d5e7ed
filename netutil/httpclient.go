package netutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/RowanDark/subhawk/ratelimit"
)

type limitingRoundTripper struct {
	base    http.RoundTripper
	limiter *ratelimit.Limiter
}

func (l *limitingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if l == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	base := l.base
	if base == nil {
		base = http.DefaultTransport
	}
	if l.limiter != nil {
		if err := l.limiter.Acquire(req.Context()); err != nil {
			return nil, err
		}
	}
	return base.RoundTrip(req)
}

// NewHTTPClient builds the client used by passive discovery sources. The
// transport keeps connections alive: sources hit the same API host many
// times during retries.
func NewHTTPClient(timeout time.Duration, limiter *ratelimit.Limiter) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	rt := http.RoundTripper(transport)
	if limiter != nil {
		rt = &limitingRoundTripper{base: rt, limiter: limiter}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

// NewProbeClient builds the client used for takeover probes. Certificate
// verification is off: candidates routinely present invalid or absent
// certificates and an invalid certificate is itself a signal. Keep-alives
// are off as well since each host is probed at most twice.
func NewProbeClient(timeout time.Duration, limiter *ratelimit.Limiter) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
		MaxIdleConns:          0,
	}

	rt := http.RoundTripper(transport)
	if limiter != nil {
		rt = &limitingRoundTripper{base: rt, limiter: limiter}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}
