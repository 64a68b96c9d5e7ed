// Package resolver walks the CNAME chain of takeover candidates and
// classifies the outcome. Classification never surfaces as an error to the
// caller; every fault folds into the returned Result.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/RowanDark/subhawk/ratelimit"
)

// Status classifies how resolution of a candidate ended.
type Status int

const (
	// StatusResolved means the candidate carries at least one CNAME hop.
	StatusResolved Status = iota
	// StatusNoRecord means the name exists but has no CNAME record.
	StatusNoRecord
	// StatusNXDomain means the name does not exist at all.
	StatusNXDomain
	// StatusTimeout means no resolver answered within the timeout.
	StatusTimeout
	// StatusError covers every other resolver-level fault, including chains
	// that exceed the depth bound or loop.
	StatusError
)

var statusStrings = map[Status]string{
	StatusResolved: "RESOLVED",
	StatusNoRecord: "NO_RECORD",
	StatusNXDomain: "NXDOMAIN",
	StatusTimeout:  "TIMEOUT",
	StatusError:    "ERROR",
}

func (s Status) String() string {
	if name, ok := statusStrings[s]; ok {
		return name
	}
	return "ERROR"
}

var (
	ErrChainTooDeep = errors.New("cname chain exceeds depth bound")
	ErrChainLoop    = errors.New("cname chain loops back on itself")
)

// Options controls Resolver instantiation behaviour.
type Options struct {
	// Server is an optional custom upstream in host[:port] form. It is
	// queried alongside the default public resolvers.
	Server      string
	Timeout     time.Duration
	RateLimiter *ratelimit.Limiter
	CacheSize   int
	// MaxDepth bounds the CNAME chain walk. Zero means the default of 10.
	MaxDepth int
}

var defaultDNSServers = []string{
	"8.8.8.8:53",
	"1.1.1.1:53",
	"9.9.9.9:53",
}

const (
	defaultCacheSize = 10000
	defaultMaxDepth  = 10
)

// cnameQuerier captures the single DNS operation the chain walk relies on.
type cnameQuerier interface {
	queryCNAME(ctx context.Context, host string) (cnameAnswer, error)
}

// Resolver follows CNAME chains against a set of upstream DNS servers.
type Resolver struct {
	querier  cnameQuerier
	timeout  time.Duration
	limiter  *ratelimit.Limiter
	maxDepth int
	server   string
}

// Result records the full CNAME chain discovered for a candidate and how the
// walk ended. Err carries the underlying fault for logging; classification
// decisions use Status only.
type Result struct {
	Subdomain string
	Chain     []string
	Status    Status
	Err       error
}

// ChainString renders the chain as a single arrow-joined value for evidence
// and log lines.
func (r Result) ChainString() string {
	return strings.Join(r.Chain, " -> ")
}

// New instantiates a Resolver using the provided options.
func New(options Options) (*Resolver, error) {
	r := &Resolver{
		timeout:  options.Timeout,
		limiter:  options.RateLimiter,
		maxDepth: options.MaxDepth,
	}
	if r.timeout <= 0 {
		r.timeout = 5 * time.Second
	}
	if r.maxDepth <= 0 {
		r.maxDepth = defaultMaxDepth
	}

	servers, err := resolveServers(options.Server)
	if err != nil {
		return nil, err
	}

	cacheSize := options.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	client, err := newDNSClient(dnsClientOptions{
		Servers:   servers,
		Timeout:   r.timeout,
		CacheSize: cacheSize,
	})
	if err != nil {
		return nil, err
	}

	r.querier = client
	r.server = strings.Join(servers, ",")

	return r, nil
}

// Resolve walks the CNAME chain for hostname. The first query classifies the
// candidate itself; faults on later hops keep the partial chain, since a
// recorded alias is exactly what fingerprinting needs even when the tail of
// the chain cannot be retrieved.
func (r *Resolver) Resolve(ctx context.Context, hostname string) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	hostname = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(hostname, ".")))
	result := Result{Subdomain: hostname}
	if hostname == "" {
		result.Status = StatusError
		result.Err = errors.New("empty hostname")
		return result
	}

	seen := map[string]struct{}{hostname: {}}
	current := hostname

	for depth := 0; depth < r.maxDepth; depth++ {
		if err := r.acquire(ctx); err != nil {
			return r.faulted(result, err)
		}

		callCtx, cancel := r.withTimeout(ctx)
		answer, err := r.querier.queryCNAME(callCtx, current)
		cancel()

		if err != nil {
			return r.faulted(result, err)
		}

		if answer.NXDomain {
			if len(result.Chain) == 0 {
				result.Status = StatusNXDomain
				return result
			}
			// The chain ends on a name that no longer exists: the classic
			// dangling CNAME. The recorded chain is what matters.
			result.Status = StatusResolved
			return result
		}

		if answer.Target == "" {
			if len(result.Chain) == 0 {
				result.Status = StatusNoRecord
				return result
			}
			result.Status = StatusResolved
			return result
		}

		if _, loop := seen[answer.Target]; loop {
			result.Status = StatusError
			result.Err = ErrChainLoop
			return result
		}
		seen[answer.Target] = struct{}{}
		result.Chain = append(result.Chain, answer.Target)
		current = answer.Target
	}

	result.Status = StatusError
	result.Err = ErrChainTooDeep
	return result
}

// faulted normalizes a query fault. With part of the chain already walked the
// candidate still counts as resolved; otherwise the fault decides between
// TIMEOUT and ERROR.
func (r *Resolver) faulted(result Result, err error) Result {
	if len(result.Chain) > 0 {
		result.Status = StatusResolved
		result.Err = err
		return result
	}
	if isTimeout(err) {
		result.Status = StatusTimeout
	} else {
		result.Status = StatusError
	}
	result.Err = err
	return result
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

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Resolver) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.limiter.Acquire(ctx)
}

// Server returns the configured upstream DNS server addresses.
//
//go:inline
func (r *Resolver) Server() string {
	return r.server
}

// Timeout returns the configured per-query timeout duration.
//
//go:inline
func (r *Resolver) Timeout() time.Duration {
	return r.timeout
}

// ParseServer normalises DNS server host[:port] strings to host:port form.
//
//go:inline
func ParseServer(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", nil
	}
	if strings.Count(address, ":") == 0 {
		return net.JoinHostPort(address, "53"), nil
	}
	if strings.HasPrefix(address, "[") && strings.HasSuffix(address, "]") {
		host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
		if host == "" {
			return "", fmt.Errorf("invalid dns server host")
		}
		return net.JoinHostPort(host, "53"), nil
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", err
	}
	if port == "" {
		port = "53"
	} else {
		if _, err := strconv.Atoi(port); err != nil {
			return "", fmt.Errorf("invalid dns server port: %w", err)
		}
	}
	return net.JoinHostPort(host, port), nil
}

func resolveServers(custom string) ([]string, error) {
	servers := make([]string, 0, len(defaultDNSServers)+1)
	trimmed := strings.TrimSpace(custom)
	if trimmed != "" {
		parsed, err := ParseServer(trimmed)
		if err != nil {
			return nil, err
		}
		servers = append(servers, parsed)
	}

	for _, candidate := range defaultDNSServers {
		if !containsServer(servers, candidate) {
			servers = append(servers, candidate)
		}
	}

	return servers, nil
}

//go:inline
func containsServer(servers []string, candidate string) bool {
	for _, server := range servers {
		if strings.EqualFold(server, candidate) {
			return true
		}
	}
	return false
}
