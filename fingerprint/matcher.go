package fingerprint

import (
	"fmt"
	"strings"

	"github.com/RowanDark/subhawk/probe"
	"github.com/RowanDark/subhawk/resolver"
)

// Finding is the terminal classification for one candidate. Every candidate
// that enters matching produces exactly one Finding, vulnerable or not.
type Finding struct {
	Subdomain  string   `json:"subdomain"`
	Vulnerable bool     `json:"vulnerable"`
	Service    string   `json:"service,omitempty"`
	CNAME      []string `json:"cname"`
	Evidence   []string `json:"evidence"`
}

// Matcher classifies candidates against a fingerprint table. It holds no
// mutable state and is safe for concurrent use.
type Matcher struct {
	table Table
}

func NewMatcher(table Table) *Matcher {
	if len(table) == 0 {
		table = DefaultTable()
	}
	return &Matcher{table: table}
}

// candidateMatch pairs an entry with the chain hostname that matched one of
// its CNAME patterns.
type candidateMatch struct {
	entry Entry
	cname string
}

// Match combines DNS and HTTP evidence into a Finding. A CNAME landing on a
// known service is the placing signal; the service's error page in the HTTP
// body is the confirming one. When the probe could not confirm, a single
// CNAME candidate still classifies, labeled as lower confidence.
//
// Deterministic: identical inputs yield identical Findings, and ties between
// entries resolve to table order.
func (m *Matcher) Match(res resolver.Result, pr *probe.Result) Finding {
	finding := Finding{
		Subdomain: res.Subdomain,
		CNAME:     append([]string(nil), res.Chain...),
	}

	if res.Status != resolver.StatusResolved || len(res.Chain) == 0 {
		finding.Evidence = []string{resolutionEvidence(res.Status)}
		return finding
	}

	candidates := m.cnameCandidates(res.Chain)
	if len(candidates) == 0 {
		finding.Evidence = []string{
			"CNAME points to: " + res.ChainString(),
			"No matching service fingerprint",
		}
		return finding
	}

	var confirmed []candidateMatch
	if pr != nil && pr.Status == probe.StatusOK {
		body := strings.ToLower(pr.Body)
		for _, cand := range candidates {
			if matchesAny(body, cand.entry.HTTP) {
				confirmed = append(confirmed, cand)
			}
		}
	}

	switch {
	case len(confirmed) > 0:
		chosen := confirmed[0]
		finding.Vulnerable = chosen.entry.Vulnerable
		finding.Service = chosen.entry.Service
		finding.Evidence = []string{
			"CNAME points to: " + chosen.cname,
			"Service identified: " + chosen.entry.Service,
			fmt.Sprintf("HTTP Status: %d", pr.HTTPStatus),
		}
		if len(confirmed) > 1 {
			finding.Evidence = append(finding.Evidence, ambiguityEvidence(confirmed[1:]))
		}
	default:
		chosen := candidates[0]
		finding.Vulnerable = chosen.entry.Vulnerable
		finding.Service = chosen.entry.Service
		finding.Evidence = []string{
			"CNAME points to: " + chosen.cname,
			"Service identified: " + chosen.entry.Service,
			"CNAME-only match (HTTP fingerprint not confirmed)",
		}
		if pr != nil && pr.Status == probe.StatusOK {
			finding.Evidence = append(finding.Evidence, fmt.Sprintf("HTTP Status: %d", pr.HTTPStatus))
		}
		if len(candidates) > 1 {
			finding.Evidence = append(finding.Evidence, ambiguityEvidence(candidates[1:]))
		}
	}

	return finding
}

// cnameCandidates returns the entries whose CNAME patterns match any hostname
// in the chain, preserving table order.
func (m *Matcher) cnameCandidates(chain []string) []candidateMatch {
	var matches []candidateMatch
	for _, entry := range m.table {
		for _, hostname := range chain {
			lower := strings.ToLower(hostname)
			if matchesAny(lower, entry.CNAMEs) {
				matches = append(matches, candidateMatch{entry: entry, cname: lower})
				break
			}
		}
	}
	return matches
}

func matchesAny(value string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(value, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func ambiguityEvidence(others []candidateMatch) string {
	names := make([]string, 0, len(others))
	for _, other := range others {
		names = append(names, other.entry.Service)
	}
	return "Ambiguous fingerprint: also matched " + strings.Join(names, ", ")
}

func resolutionEvidence(status resolver.Status) string {
	switch status {
	case resolver.StatusNoRecord:
		return "No CNAME record"
	case resolver.StatusNXDomain:
		return "Subdomain does not resolve (NXDOMAIN)"
	case resolver.StatusTimeout:
		return "DNS resolution timed out"
	default:
		return "DNS resolution error"
	}
}
