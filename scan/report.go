package scan

import (
	"time"

	"github.com/RowanDark/subhawk/fingerprint"
)

// Report aggregates everything a scan learned about a domain. The orchestrator
// is its only writer while the scan runs; afterwards it is read-only.
type Report struct {
	Domain     string
	Timestamp  time.Time
	Candidates []string
	Findings   []fingerprint.Finding
}

// Vulnerable returns the findings classified as takeover-exposed, in the
// order they were appended.
func (r *Report) Vulnerable() []fingerprint.Finding {
	if r == nil {
		return nil
	}
	var vulnerable []fingerprint.Finding
	for _, finding := range r.Findings {
		if finding.Vulnerable {
			vulnerable = append(vulnerable, finding)
		}
	}
	return vulnerable
}
