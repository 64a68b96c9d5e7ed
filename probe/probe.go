// Package probe fetches HTTP evidence from takeover candidates. A candidate
// is tried over HTTPS first and once more over plain HTTP when the TLS
// attempt fails; abandoned third-party endpoints routinely serve broken or
// absent certificates, so a TLS failure is a data point rather than an error.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RowanDark/subhawk/netutil"
	"github.com/RowanDark/subhawk/ratelimit"
)

// Status classifies how probing a candidate ended.
type Status int

const (
	// StatusOK means a response was received on one of the schemes.
	StatusOK Status = iota
	// StatusConnError means neither scheme produced a response.
	StatusConnError
	// StatusTimeout means the probe ran out of time on both schemes.
	StatusTimeout
	// StatusTLSError means the TLS handshake failed and the plain-HTTP
	// fallback failed as well.
	StatusTLSError
)

var statusStrings = map[Status]string{
	StatusOK:        "OK",
	StatusConnError: "CONN_ERROR",
	StatusTimeout:   "TIMEOUT",
	StatusTLSError:  "TLS_ERROR",
}

func (s Status) String() string {
	if name, ok := statusStrings[s]; ok {
		return name
	}
	return "CONN_ERROR"
}

// maxBodyBytes caps how much of a response body is retained. Fingerprint
// signatures sit in error pages well under this size.
const maxBodyBytes = 64 * 1024

// Result carries the HTTP evidence captured for one candidate. Body holds at
// most maxBodyBytes of the response. Err records the underlying fault for
// logging; classification uses Status.
type Result struct {
	Subdomain  string
	HTTPStatus int
	Body       string
	Scheme     string
	Status     Status
	Err        error
}

// Options configures a probe Client.
type Options struct {
	Timeout     time.Duration
	RateLimiter *ratelimit.Limiter
	// HTTPClient overrides the default insecure probe client. Tests inject
	// httptest clients here.
	HTTPClient *http.Client
}

// Client probes candidates over HTTPS and HTTP.
type Client struct {
	http    *http.Client
	timeout time.Duration
	limiter *ratelimit.Limiter
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = netutil.NewProbeClient(timeout, opts.RateLimiter)
	}

	return &Client{
		http:    httpClient,
		timeout: timeout,
		limiter: opts.RateLimiter,
	}
}

// Probe requests https://<hostname>/ and falls back to http:// on failure.
// Every fault normalizes into Result.Status; nothing propagates.
func (c *Client) Probe(ctx context.Context, hostname string) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	hostname = strings.ToLower(strings.TrimSpace(hostname))
	result := Result{Subdomain: hostname}
	if hostname == "" {
		result.Status = StatusConnError
		result.Err = errors.New("empty hostname")
		return result
	}

	var (
		lastErr error
		sawTLS  bool
	)

	for _, scheme := range []string{"https", "http"} {
		status, body, err := c.fetch(ctx, scheme, hostname)
		if err == nil {
			result.Scheme = scheme
			result.HTTPStatus = status
			result.Body = body
			result.Status = StatusOK
			return result
		}

		lastErr = err
		if isTLSError(err) {
			sawTLS = true
		}
		if ctx.Err() != nil {
			break
		}
	}

	result.Err = lastErr
	switch {
	case sawTLS:
		result.Status = StatusTLSError
	case isTimeout(lastErr):
		result.Status = StatusTimeout
	default:
		result.Status = StatusConnError
	}
	return result
}

func (c *Client) fetch(ctx context.Context, scheme, hostname string) (int, string, error) {
	if err := c.acquire(ctx); err != nil {
		return 0, "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := fmt.Sprintf("%s://%s/", scheme, hostname)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", "subhawk/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	// The context deadline keeps a slow or endless body from stalling the
	// worker past the candidate's timeout.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil && len(body) == 0 {
		return 0, "", err
	}

	return resp.StatusCode, string(body), nil
}

func (c *Client) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Acquire(ctx)
}

func isTLSError(err error) bool {
	if err == nil {
		return false
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		msg := strings.ToLower(urlErr.Err.Error())
		if strings.Contains(msg, "tls") || strings.Contains(msg, "handshake") || strings.Contains(msg, "certificate") {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
