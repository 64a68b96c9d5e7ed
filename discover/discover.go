// Package discover aggregates candidate subdomains from every configured
// origin: passive sources, wordlist generation, and zone transfers. It owns
// normalization and deduplication so the scan pool downstream sees each name
// exactly once.
package discover

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/idna"
	"golang.org/x/sync/errgroup"

	"github.com/RowanDark/subhawk/internal/intern"
	"github.com/RowanDark/subhawk/logging"
	"github.com/RowanDark/subhawk/passive"
)

// Options configures a discovery run.
type Options struct {
	// Sources are queried concurrently. A failing source contributes an
	// empty set and a logged warning, never an aborted scan.
	Sources []passive.Source
	// Extra holds pre-generated name sets keyed by origin label, e.g.
	// "wordlist" or "zonetransfer". These skip source fan-out but share
	// normalization and dedup.
	Extra map[string][]string
	// Limit bounds concurrent source queries. Zero means all at once.
	Limit  int
	Logger *logging.Logger
}

// Result is the merged discovery outcome.
type Result struct {
	// Candidates is the sorted, deduplicated, normalized union.
	Candidates []string
	// Counts records how many candidates each origin contributed,
	// post-normalization (overlapping names count for every origin that
	// produced them).
	Counts map[string]int
	// Errors holds per-source failures, for reporting only.
	Errors map[string]error
}

// Run gathers candidates for domain from all configured origins.
func Run(ctx context.Context, domain string, opts Options) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	result := Result{
		Counts: make(map[string]int),
		Errors: make(map[string]error),
	}

	domain = normalizeDomain(domain)
	if domain == "" {
		return result
	}

	var mu sync.Mutex
	seen := make(map[string]struct{})

	merge := func(origin string, names []string) {
		mu.Lock()
		defer mu.Unlock()
		for _, name := range names {
			candidate := Normalize(name, domain)
			if candidate == "" {
				continue
			}
			result.Counts[origin]++
			if _, ok := seen[candidate]; ok {
				continue
			}
			seen[candidate] = struct{}{}
			result.Candidates = append(result.Candidates, intern.Intern(candidate))
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if opts.Limit > 0 {
		group.SetLimit(opts.Limit)
	}

	for _, src := range opts.Sources {
		if src == nil {
			continue
		}
		src := src
		group.Go(func() error {
			names, err := src.Enumerate(groupCtx, domain)
			if err != nil {
				mu.Lock()
				result.Errors[src.Name()] = err
				mu.Unlock()
				if opts.Logger != nil {
					opts.Logger.Warnf("Passive source %s failed: %v", src.Name(), err)
				}
				return nil
			}
			merge(src.Name(), names)
			return nil
		})
	}

	// Sources absorb their own failures, so the group never errors.
	_ = group.Wait()

	for origin, names := range opts.Extra {
		merge(origin, names)
	}

	sort.Strings(result.Candidates)
	return result
}

// Normalize canonicalizes a discovered name: lower-case, trailing dot
// stripped, Unicode labels converted to punycode, and scoped to the target
// domain. Returns "" for names that cannot identify a candidate.
func Normalize(name, domain string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ".")
	if name == "" || strings.Contains(name, "*") {
		return ""
	}

	if ascii, err := idna.Lookup.ToASCII(name); err == nil {
		name = ascii
	}

	if name != domain && !strings.HasSuffix(name, "."+domain) {
		return ""
	}
	return name
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(domain); err == nil {
		domain = ascii
	}
	return domain
}
