// Package hackertarget enumerates takeover candidates from the HackerTarget
// hostsearch API, a second passive source alongside certificate transparency.
package hackertarget

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrQuotaExceeded reports the API's plain-text quota response. Callers treat
// it like any other source failure: logged, never fatal.
var ErrQuotaExceeded = errors.New("hackertarget api quota exceeded")

const (
	defaultBaseURL = "https://api.hackertarget.com/hostsearch/"
	defaultTimeout = 20 * time.Second
)

type Option func(*Client)

type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 0},
		baseURL:    defaultBaseURL,
		timeout:    defaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/") + "/"
		}
	}
}

func (c *Client) Name() string {
	return "HackerTarget"
}

func (c *Client) Enumerate(ctx context.Context, domain string) ([]string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, errors.New("domain cannot be empty")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?q=%s", strings.TrimRight(c.baseURL, "/"), url.QueryEscape(domain))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "subhawk/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("hackertarget request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hackertarget unexpected status: %d", resp.StatusCode)
	}

	// Successful responses are host,ip CSV lines; faults and quota refusals
	// arrive as plain text with a 200 status.
	domain = strings.ToLower(domain)
	suffix := "." + strings.TrimPrefix(domain, ".")

	scanner := bufio.NewScanner(resp.Body)
	subdomains := make(map[string]struct{})
	firstLine := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if firstLine {
			firstLine = false
			lower := strings.ToLower(line)
			if strings.Contains(lower, "api count exceeded") {
				return nil, ErrQuotaExceeded
			}
			if strings.HasPrefix(lower, "error") {
				return nil, fmt.Errorf("hackertarget error response: %s", line)
			}
		}
		name, _, _ := strings.Cut(line, ",")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name != domain && !strings.HasSuffix(name, suffix) {
			continue
		}
		subdomains[name] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading hackertarget response: %w", err)
	}

	results := make([]string, 0, len(subdomains))
	for subdomain := range subdomains {
		results = append(results, subdomain)
	}
	sort.Strings(results)
	return results, nil
}
