package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/RowanDark/subhawk/fingerprint"
)

// LoadDocument reads a previously written JSON report.
func LoadDocument(path string) (Document, error) {
	var doc Document

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing report %s: %w", path, err)
	}

	return doc, nil
}

// NewlyVulnerable returns current findings whose subdomains were not
// vulnerable in the previous report. Monitoring runs use this to surface
// takeovers that appeared since the baseline scan.
func NewlyVulnerable(current []fingerprint.Finding, previous Document) []fingerprint.Finding {
	known := make(map[string]struct{}, len(previous.Vulnerable))
	for _, finding := range previous.Vulnerable {
		known[finding.Subdomain] = struct{}{}
	}

	var fresh []fingerprint.Finding
	for _, finding := range current {
		if !finding.Vulnerable {
			continue
		}
		if _, ok := known[finding.Subdomain]; ok {
			continue
		}
		fresh = append(fresh, finding)
	}
	return fresh
}
