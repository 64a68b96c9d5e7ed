package resolver

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
)

type stubQuerier struct {
	answers map[string]cnameAnswer
	errs    map[string]error
}

func (s *stubQuerier) queryCNAME(ctx context.Context, host string) (cnameAnswer, error) {
	if err, ok := s.errs[host]; ok {
		return cnameAnswer{}, err
	}
	return s.answers[host], nil
}

func startTestDNSServer(t *testing.T, responses map[string][]string) (string, func()) {
	t.Helper()
	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		msg := new(dns.Msg)
		msg.SetReply(r)
		hostname := strings.ToLower(r.Question[0].Name)
		if answers, ok := responses[hostname]; ok {
			for _, ans := range answers {
				if ip := net.ParseIP(ans); ip != nil {
					rr := &dns.A{Hdr: dns.RR_Header{Name: hostname, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: ip}
					msg.Answer = append(msg.Answer, rr)
				} else {
					rr := &dns.CNAME{Hdr: dns.RR_Header{Name: hostname, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60}, Target: dns.Fqdn(ans)}
					msg.Answer = append(msg.Answer, rr)
				}
			}
		} else {
			msg.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(msg)
	})

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start test dns server: %v", err)
	}

	server := &dns.Server{PacketConn: conn, Handler: mux}
	go func() {
		_ = server.ActivateAndServe()
	}()

	cleanup := func() {
		_ = server.Shutdown()
		_ = conn.Close()
	}
	return conn.LocalAddr().String(), cleanup
}

func testResolver(t *testing.T, addr string) *Resolver {
	t.Helper()
	client, err := newDNSClient(dnsClientOptions{Servers: []string{addr}, Timeout: time.Second, CacheSize: 100})
	if err != nil {
		t.Fatalf("failed to build dns client: %v", err)
	}
	return &Resolver{querier: client, timeout: time.Second, maxDepth: defaultMaxDepth}
}

func TestNewResolverDefaults(t *testing.T) {
	r, err := New(Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedServers := strings.Join(defaultDNSServers, ",")
	if r.Server() != expectedServers {
		t.Fatalf("expected default servers %q, got %q", expectedServers, r.Server())
	}
	if r.Timeout() != 5*time.Second {
		t.Fatalf("expected default timeout, got %s", r.Timeout())
	}
}

func TestNewResolverCustomServer(t *testing.T) {
	r, err := New(Options{Server: "1.1.1.1", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := strings.Join([]string{"1.1.1.1:53", "8.8.8.8:53", "9.9.9.9:53"}, ",")
	if got := r.Server(); got != expected {
		t.Fatalf("expected server list %q, got %q", expected, got)
	}
}

func TestResolveFollowsChain(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, map[string][]string{
		"old.example.com.":   {"stage.example.net"},
		"stage.example.net.": {"example.github.io"},
		"example.github.io.": {"192.0.2.1"},
	})
	defer cleanup()

	r := testResolver(t, addr)
	result := r.Resolve(context.Background(), "old.example.com")
	if result.Status != StatusResolved {
		t.Fatalf("expected RESOLVED, got %s (err %v)", result.Status, result.Err)
	}
	expected := []string{"stage.example.net", "example.github.io"}
	if len(result.Chain) != len(expected) {
		t.Fatalf("unexpected chain: %v", result.Chain)
	}
	for i := range expected {
		if result.Chain[i] != expected[i] {
			t.Fatalf("unexpected chain hop %d: %v", i, result.Chain)
		}
	}
	if got := result.ChainString(); got != "stage.example.net -> example.github.io" {
		t.Fatalf("unexpected chain string: %q", got)
	}
}

func TestResolveDanglingTarget(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, map[string][]string{
		"old.example.com.": {"gone.s3.amazonaws.com"},
	})
	defer cleanup()

	r := testResolver(t, addr)
	result := r.Resolve(context.Background(), "old.example.com")
	if result.Status != StatusResolved {
		t.Fatalf("expected RESOLVED for dangling chain, got %s", result.Status)
	}
	if len(result.Chain) != 1 || result.Chain[0] != "gone.s3.amazonaws.com" {
		t.Fatalf("unexpected chain: %v", result.Chain)
	}
}

func TestResolveNoRecord(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, map[string][]string{
		"www.example.com.": {"192.0.2.10"},
	})
	defer cleanup()

	r := testResolver(t, addr)
	result := r.Resolve(context.Background(), "www.example.com")
	if result.Status != StatusNoRecord {
		t.Fatalf("expected NO_RECORD, got %s", result.Status)
	}
	if len(result.Chain) != 0 {
		t.Fatalf("expected empty chain, got %v", result.Chain)
	}
}

func TestResolveNXDomain(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, map[string][]string{})
	defer cleanup()

	r := testResolver(t, addr)
	result := r.Resolve(context.Background(), "missing.example.com")
	if result.Status != StatusNXDomain {
		t.Fatalf("expected NXDOMAIN, got %s", result.Status)
	}
}

func TestResolveChainLoop(t *testing.T) {
	addr, cleanup := startTestDNSServer(t, map[string][]string{
		"a.example.com.": {"b.example.com"},
		"b.example.com.": {"a.example.com"},
	})
	defer cleanup()

	r := testResolver(t, addr)
	result := r.Resolve(context.Background(), "a.example.com")
	if result.Status != StatusError {
		t.Fatalf("expected ERROR for loop, got %s", result.Status)
	}
	if !errors.Is(result.Err, ErrChainLoop) {
		t.Fatalf("expected loop error, got %v", result.Err)
	}
}

func TestResolveChainDepthBound(t *testing.T) {
	stub := &stubQuerier{answers: map[string]cnameAnswer{
		"h0.example.com": {Target: "h1.example.com"},
		"h1.example.com": {Target: "h2.example.com"},
		"h2.example.com": {Target: "h3.example.com"},
		"h3.example.com": {Target: "h4.example.com"},
	}}
	r := &Resolver{querier: stub, timeout: time.Second, maxDepth: 3}

	result := r.Resolve(context.Background(), "h0.example.com")
	if result.Status != StatusError {
		t.Fatalf("expected ERROR past depth bound, got %s", result.Status)
	}
	if !errors.Is(result.Err, ErrChainTooDeep) {
		t.Fatalf("expected depth error, got %v", result.Err)
	}
}

func TestResolveTimeout(t *testing.T) {
	stub := &stubQuerier{errs: map[string]error{
		"slow.example.com": context.DeadlineExceeded,
	}}
	r := &Resolver{querier: stub, timeout: time.Second, maxDepth: defaultMaxDepth}

	result := r.Resolve(context.Background(), "slow.example.com")
	if result.Status != StatusTimeout {
		t.Fatalf("expected TIMEOUT, got %s", result.Status)
	}
}

func TestResolveFaultAfterFirstHopKeepsChain(t *testing.T) {
	stub := &stubQuerier{
		answers: map[string]cnameAnswer{
			"old.example.com": {Target: "alias.herokuapp.com"},
		},
		errs: map[string]error{
			"alias.herokuapp.com": errors.New("SERVFAIL"),
		},
	}
	r := &Resolver{querier: stub, timeout: time.Second, maxDepth: defaultMaxDepth}

	result := r.Resolve(context.Background(), "old.example.com")
	if result.Status != StatusResolved {
		t.Fatalf("expected RESOLVED with partial chain, got %s", result.Status)
	}
	if len(result.Chain) != 1 || result.Chain[0] != "alias.herokuapp.com" {
		t.Fatalf("unexpected chain: %v", result.Chain)
	}
}

func TestQueryCNAMEUsesCache(t *testing.T) {
	var hits int32
	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		atomic.AddInt32(&hits, 1)
		msg := new(dns.Msg)
		msg.SetReply(r)
		rr := &dns.CNAME{
			Hdr:    dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 300},
			Target: "alias.ghost.io.",
		}
		msg.Answer = append(msg.Answer, rr)
		_ = w.WriteMsg(msg)
	})

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start test dns server: %v", err)
	}
	server := &dns.Server{PacketConn: conn, Handler: mux}
	go func() { _ = server.ActivateAndServe() }()
	defer func() {
		_ = server.Shutdown()
		_ = conn.Close()
	}()

	client, err := newDNSClient(dnsClientOptions{Servers: []string{conn.LocalAddr().String()}, Timeout: time.Second, CacheSize: 10})
	if err != nil {
		t.Fatalf("failed to build dns client: %v", err)
	}

	for i := 0; i < 3; i++ {
		answer, err := client.queryCNAME(context.Background(), "cached.example.com")
		if err != nil {
			t.Fatalf("query %d failed: %v", i, err)
		}
		if answer.Target != "alias.ghost.io" {
			t.Fatalf("unexpected target: %q", answer.Target)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected a single upstream query, got %d", got)
	}
}

func TestParseServer(t *testing.T) {
	tests := map[string]string{
		"8.8.8.8":      "8.8.8.8:53",
		"8.8.8.8:53":   "8.8.8.8:53",
		"[2001::1]":    "[2001::1]:53",
		"[2001::1]:53": "[2001::1]:53",
	}
	for input, expected := range tests {
		got, err := ParseServer(input)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", input, err)
		}
		if got != expected {
			t.Fatalf("expected %q for %q, got %q", expected, input, got)
		}
	}
}

func TestParseServerInvalid(t *testing.T) {
	if _, err := ParseServer("bad::port::value"); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}
