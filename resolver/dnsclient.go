package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"

	"github.com/RowanDark/subhawk/internal/dnspool"
)

type dnsClientOptions struct {
	Servers   []string
	Timeout   time.Duration
	CacheSize int
}

// cnameAnswer is the distilled outcome of one CNAME query. Target is the
// canonical target for the queried name (lowercased, no trailing dot) or
// empty when the name carries no CNAME. NXDomain distinguishes a missing
// name from a name that exists without a CNAME.
type cnameAnswer struct {
	Target   string
	NXDomain bool
}

// negativeTTL caches NXDOMAIN and no-CNAME outcomes, which carry no record
// TTL of their own.
const negativeTTL = 60 * time.Second

type dnsClient struct {
	udp     *dns.Client
	tcp     *dns.Client
	servers []string
	timeout time.Duration
	cache   *answerCache
	group   singleflight.Group

	poolMu    sync.Mutex
	connPools map[string]chan *dns.Conn
	poolSize  int
}

func newDNSClient(opts dnsClientOptions) (*dnsClient, error) {
	if len(opts.Servers) == 0 {
		return nil, fmt.Errorf("at least one DNS server must be configured")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	udp := &dns.Client{
		Net:          "udp",
		Timeout:      timeout,
		Dialer:       &net.Dialer{Timeout: timeout},
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	tcp := &dns.Client{
		Net:     "tcp",
		Timeout: timeout,
		Dialer:  &net.Dialer{Timeout: timeout},
	}

	var cache *answerCache
	if opts.CacheSize > 0 {
		cache = newAnswerCache(opts.CacheSize)
	}

	return &dnsClient{
		udp:       udp,
		tcp:       tcp,
		servers:   append([]string(nil), opts.Servers...),
		timeout:   timeout,
		cache:     cache,
		connPools: make(map[string]chan *dns.Conn),
		poolSize:  64,
	}, nil
}

// queryCNAME asks the configured servers for the CNAME of host. Concurrent
// queries for the same name collapse into a single upstream exchange;
// results are cached with the record TTL.
func (c *dnsClient) queryCNAME(ctx context.Context, host string) (cnameAnswer, error) {
	normalized := normalizeHost(host)
	if normalized == "" {
		return cnameAnswer{}, fmt.Errorf("empty hostname")
	}

	if answer, ok := c.cache.Get(normalized); ok {
		return answer, nil
	}

	v, err, _ := c.group.Do(normalized, func() (any, error) {
		answer, ttl, err := c.raceServers(ctx, normalized)
		if err != nil {
			return cnameAnswer{}, err
		}
		c.cache.Set(normalized, answer, ttl)
		return answer, nil
	})
	if err != nil {
		return cnameAnswer{}, err
	}
	return v.(cnameAnswer), nil
}

// raceServers queries every upstream concurrently and returns the first
// usable response. NXDOMAIN counts as a response, not a failure.
func (c *dnsClient) raceServers(ctx context.Context, host string) (cnameAnswer, time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		answer cnameAnswer
		ttl    time.Duration
		err    error
	}

	responses := make(chan result, len(c.servers))
	var wg sync.WaitGroup

	for _, server := range c.servers {
		wg.Add(1)
		go func(server string) {
			defer wg.Done()
			answer, ttl, err := c.queryServer(ctx, server, host)
			select {
			case responses <- result{answer: answer, ttl: ttl, err: err}:
			case <-ctx.Done():
			}
		}(server)
	}

	go func() {
		wg.Wait()
		close(responses)
	}()

	var combinedErr error
	for res := range responses {
		if res.err == nil {
			cancel()
			return res.answer, res.ttl, nil
		}
		combinedErr = combineErrors(combinedErr, res.err)
	}

	if combinedErr == nil {
		combinedErr = fmt.Errorf("no dns response for %s", host)
	}

	return cnameAnswer{}, 0, combinedErr
}

func (c *dnsClient) queryServer(ctx context.Context, server, host string) (cnameAnswer, time.Duration, error) {
	conn, err := c.getConn(ctx, server)
	if err != nil {
		return cnameAnswer{}, 0, err
	}

	success := false
	defer func() {
		if success {
			c.putConn(server, conn)
		} else {
			_ = conn.Close()
		}
	}()

	msg := dnspool.AcquireQuestion(host, dns.TypeCNAME)
	defer dnspool.ReleaseMsg(msg)

	resp, err := c.exchange(ctx, conn, msg)
	if err != nil {
		return cnameAnswer{}, 0, err
	}
	if resp.Truncated {
		resp, _, err = c.tcp.ExchangeContext(ctx, msg, server)
		if err != nil {
			return cnameAnswer{}, 0, err
		}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
	default:
		return cnameAnswer{}, 0, fmt.Errorf("CNAME lookup failed with %s", dns.RcodeToString[resp.Rcode])
	}

	answer := cnameAnswer{NXDomain: resp.Rcode == dns.RcodeNameError}
	var ttl time.Duration

	// Recursive resolvers may return the whole chain in one answer section;
	// only the record owned by the queried name belongs to this step.
	fqdn := dns.Fqdn(host)
	for _, rr := range resp.Answer {
		cname, ok := rr.(*dns.CNAME)
		if !ok || !strings.EqualFold(cname.Header().Name, fqdn) {
			continue
		}
		target := strings.TrimSuffix(strings.ToLower(cname.Target), ".")
		if target == "" || strings.EqualFold(target, host) {
			continue
		}
		answer.Target = target
		ttl = time.Duration(cname.Header().Ttl) * time.Second
		break
	}

	success = true
	return answer, ttl, nil
}

func (c *dnsClient) exchange(ctx context.Context, conn *dns.Conn, msg *dns.Msg) (*dns.Msg, error) {
	deadline := time.Time{}
	if ctx != nil {
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
	}
	if deadline.IsZero() && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if !deadline.IsZero() {
		_ = conn.SetDeadline(deadline)
	}

	resp, _, err := c.udp.ExchangeWithConn(msg, conn)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *dnsClient) getConn(ctx context.Context, server string) (*dns.Conn, error) {
	pool := c.getPool(server)
	select {
	case conn := <-pool:
		return conn, nil
	default:
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return c.udp.DialContext(ctx, server)
}

func (c *dnsClient) putConn(server string, conn *dns.Conn) {
	if conn == nil {
		return
	}
	_ = conn.SetDeadline(time.Time{})
	pool := c.getPool(server)
	select {
	case pool <- conn:
	default:
		_ = conn.Close()
	}
}

func (c *dnsClient) getPool(server string) chan *dns.Conn {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	if pool, ok := c.connPools[server]; ok {
		return pool
	}
	pool := make(chan *dns.Conn, c.poolSize)
	c.connPools[server] = pool
	return pool
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	fqdn := dns.Fqdn(host)
	return strings.TrimSuffix(strings.ToLower(fqdn), ".")
}

func combineErrors(existing, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%v; %w", existing, next)
}

type answerCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	maxEntries int
}

type cacheEntry struct {
	answer cnameAnswer
	expiry time.Time
}

func newAnswerCache(size int) *answerCache {
	if size <= 0 {
		size = 1
	}
	return &answerCache{
		entries:    make(map[string]cacheEntry, size),
		maxEntries: size,
	}
}

func (c *answerCache) Get(host string) (cnameAnswer, bool) {
	if c == nil {
		return cnameAnswer{}, false
	}

	now := time.Now()
	c.mu.RLock()
	entry, ok := c.entries[host]
	c.mu.RUnlock()
	if !ok {
		return cnameAnswer{}, false
	}
	if now.After(entry.expiry) {
		c.mu.Lock()
		if current, ok := c.entries[host]; ok && now.After(current.expiry) {
			delete(c.entries, host)
		}
		c.mu.Unlock()
		return cnameAnswer{}, false
	}
	return entry.answer, true
}

func (c *answerCache) Set(host string, answer cnameAnswer, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = negativeTTL
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictExpiredLocked()
		if len(c.entries) >= c.maxEntries {
			c.evictOneLocked()
		}
	}

	c.entries[host] = cacheEntry{answer: answer, expiry: time.Now().Add(ttl)}
}

func (c *answerCache) evictExpiredLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
		}
	}
}

func (c *answerCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		break
	}
}
