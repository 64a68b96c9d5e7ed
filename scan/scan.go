// Package scan drives the takeover pipeline: a fixed worker pool runs
// resolve, probe, and match for each candidate, and a single collector
// goroutine owns the report while the scan is live.
package scan

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/RowanDark/subhawk/filters"
	"github.com/RowanDark/subhawk/fingerprint"
	"github.com/RowanDark/subhawk/logging"
	"github.com/RowanDark/subhawk/probe"
	"github.com/RowanDark/subhawk/resolver"
	"github.com/RowanDark/subhawk/stats"
)

// Resolver is the DNS dependency of the pipeline.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) resolver.Result
}

// Prober is the HTTP dependency of the pipeline.
type Prober interface {
	Probe(ctx context.Context, hostname string) probe.Result
}

// Options wires the pipeline dependencies into a scan run.
type Options struct {
	Concurrency int
	Resolver    Resolver
	Prober      Prober
	Matcher     *fingerprint.Matcher
	Wildcard    filters.WildcardProfile
	Logger      *logging.Logger
	Tracker     *stats.Tracker
	// Progress fires once per completed candidate, from the collector
	// goroutine. Drives the CLI progress bar and finding notifications.
	Progress func(fingerprint.Finding)
}

const defaultConcurrency = 10

// Run processes candidates to completion and returns the report. Candidates
// are deduplicated case-insensitively before any work starts, so each name
// passes through the pipeline at most once. Cancellation stops workers
// between candidates; an abandoned candidate contributes no finding.
func Run(ctx context.Context, domain string, candidates []string, opts Options) *Report {
	if ctx == nil {
		ctx = context.Background()
	}

	report := &Report{
		Domain:    strings.ToLower(strings.TrimSpace(domain)),
		Timestamp: time.Now().UTC(),
	}

	unique := dedupe(candidates)
	report.Candidates = unique
	if opts.Tracker != nil {
		opts.Tracker.RecordCandidates(len(unique))
	}
	if len(unique) == 0 {
		return report
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if concurrency > len(unique) {
		concurrency = len(unique)
	}

	jobs := make(chan string, concurrency*2)
	results := make(chan fingerprint.Finding, concurrency)
	workersDone := make(chan struct{})
	collectorDone := make(chan struct{})

	for i := 0; i < concurrency; i++ {
		go worker(ctx, jobs, results, workersDone, opts)
	}

	// Single writer: all appends to the report funnel through here.
	go func() {
		defer close(collectorDone)
		for finding := range results {
			report.Findings = append(report.Findings, finding)
			if opts.Tracker != nil {
				opts.Tracker.RecordFinding(finding.Vulnerable)
			}
			if opts.Progress != nil {
				opts.Progress(finding)
			}
		}
	}()

	go func() {
		defer close(jobs)
		for _, candidate := range unique {
			select {
			case <-ctx.Done():
				return
			case jobs <- candidate:
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		<-workersDone
	}
	close(results)
	<-collectorDone

	return report
}

// worker runs one candidate at a time to completion: resolve, probe when a
// CNAME exists, match. Either a full finding reaches the collector or, on
// cancellation, none does.
func worker(ctx context.Context, jobs <-chan string, results chan<- fingerprint.Finding, done chan<- struct{}, opts Options) {
	defer func() { done <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return
		case candidate, ok := <-jobs:
			if !ok {
				return
			}

			finding, ok := process(ctx, candidate, opts)
			if !ok {
				return
			}

			select {
			case results <- finding:
			case <-ctx.Done():
				return
			}
		}
	}
}

func process(ctx context.Context, candidate string, opts Options) (fingerprint.Finding, bool) {
	if opts.Logger != nil {
		opts.Logger.Debugf("Checking %s", candidate)
	}

	res := opts.Resolver.Resolve(ctx, candidate)
	if ctx.Err() != nil {
		return fingerprint.Finding{}, false
	}
	if opts.Tracker != nil {
		opts.Tracker.RecordResolution(res.Status)
	}
	if res.Err != nil && opts.Logger != nil {
		opts.Logger.Debugf("Resolution %s: %v", candidate, res.Err)
	}

	var pr *probe.Result
	if res.Status == resolver.StatusResolved && len(res.Chain) > 0 && opts.Prober != nil {
		probed := opts.Prober.Probe(ctx, candidate)
		if ctx.Err() != nil {
			return fingerprint.Finding{}, false
		}
		pr = &probed
		if opts.Tracker != nil {
			opts.Tracker.RecordProbe()
		}
		if probed.Err != nil && opts.Logger != nil {
			opts.Logger.Debugf("Probe %s: %v", candidate, probed.Err)
		}
	}

	finding := opts.Matcher.Match(res, pr)
	if opts.Wildcard.Active() && opts.Wildcard.Matches(res) {
		finding.Evidence = append(finding.Evidence, "Matches wildcard DNS response")
	}
	return finding, true
}

func dedupe(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(candidate, ".")))
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		unique = append(unique, candidate)
	}
	sort.Strings(unique)
	return unique
}
