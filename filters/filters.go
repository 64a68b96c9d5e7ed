// Package filters detects wildcard DNS zones before a scan starts. A zone
// that answers every name poisons takeover classification: wordlist
// candidates all "exist" and may all alias to the same catch-all target.
package filters

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/RowanDark/subhawk/resolver"
)

// DNSResolver captures the subset of resolver.Resolver required for wildcard
// detection.
type DNSResolver interface {
	Resolve(context.Context, string) resolver.Result
}

// WildcardProfile records the CNAME targets the zone hands out for random
// names. The zero value is an inactive profile that matches nothing.
type WildcardProfile struct {
	active bool
	cnames map[string]struct{}
}

var wildcardCache sync.Map

// DetectWildcard resolves a handful of random labels under domain. If any of
// them come back with a CNAME, the zone serves wildcard records and the
// observed targets form the profile. Results are cached per domain.
func DetectWildcard(ctx context.Context, r DNSResolver, domain string, samples int) (WildcardProfile, error) {
	profile := WildcardProfile{}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if r == nil || domain == "" {
		return profile, nil
	}

	if cached, ok := wildcardCache.Load(domain); ok {
		return cached.(WildcardProfile), nil
	}

	if samples < 3 {
		samples = 3
	} else if samples > 5 {
		samples = 5
	}

	cnames := make(map[string]struct{})

	results := make(chan resolver.Result, samples)
	var wg sync.WaitGroup

	for i := 0; i < samples; i++ {
		if ctx != nil && ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			hostname := randomLabel() + "." + domain
			res := r.Resolve(ctx, hostname)
			if res.Status != resolver.StatusResolved || len(res.Chain) == 0 {
				return
			}
			results <- res
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		for _, target := range res.Chain {
			cleaned := strings.ToLower(strings.TrimSpace(target))
			if cleaned == "" {
				continue
			}
			cnames[cleaned] = struct{}{}
		}
	}

	if len(cnames) > 0 {
		profile.active = true
		profile.cnames = cnames
	}

	wildcardCache.Store(domain, profile)
	return profile, nil
}

// Active indicates whether the zone answered random names with CNAMEs.
//
//go:inline
func (p WildcardProfile) Active() bool {
	return p.active
}

// Matches reports whether a resolution looks like the zone's wildcard answer
// rather than a deliberately provisioned record.
func (p WildcardProfile) Matches(res resolver.Result) bool {
	if !p.active || len(p.cnames) == 0 {
		return false
	}
	for _, target := range res.Chain {
		if _, ok := p.cnames[strings.ToLower(strings.TrimSpace(target))]; ok {
			return true
		}
	}
	return false
}

//go:inline
func randomLabel() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return strings.ToLower(time.Now().UTC().Format("150405"))
	}
	return "subhawk-" + hex.EncodeToString(buf)
}

func resetWildcardCache() {
	wildcardCache = sync.Map{}
}
