// Package output serialises scan reports to stdout or a file in JSON, CSV,
// or plain-text form, and diffs reports across runs.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RowanDark/subhawk/config"
	"github.com/RowanDark/subhawk/fingerprint"
	"github.com/RowanDark/subhawk/scan"
)

// Document is the on-disk JSON report shape.
type Document struct {
	ScanInfo   ScanInfo              `json:"scan_info"`
	Subdomains []string              `json:"subdomains"`
	Vulnerable []fingerprint.Finding `json:"vulnerable"`
}

// ScanInfo summarises a scan run.
type ScanInfo struct {
	Domain          string `json:"domain"`
	Timestamp       string `json:"timestamp"`
	TotalSubdomains int    `json:"total_subdomains"`
	VulnerableCount int    `json:"vulnerable_count"`
}

// NewDocument converts a completed scan into its report document.
func NewDocument(report *scan.Report) Document {
	vulnerable := report.Vulnerable()
	if vulnerable == nil {
		vulnerable = []fingerprint.Finding{}
	}
	subdomains := report.Candidates
	if subdomains == nil {
		subdomains = []string{}
	}
	return Document{
		ScanInfo: ScanInfo{
			Domain:          report.Domain,
			Timestamp:       report.Timestamp.UTC().Format(time.RFC3339),
			TotalSubdomains: len(report.Candidates),
			VulnerableCount: len(vulnerable),
		},
		Subdomains: subdomains,
		Vulnerable: vulnerable,
	}
}

// Writer serialises a scan report to stdout or a file in a configured format.
type Writer struct {
	format      config.Format
	destination io.Writer
	closer      io.Closer
}

// NewWriter creates a writer targeting stdout, or the configured output file.
func NewWriter(cfg *config.Config) (*Writer, error) {
	var (
		dest   io.Writer
		closer io.Closer
	)

	if cfg.LiveOutput() {
		dest = os.Stdout
	} else {
		dir := filepath.Dir(cfg.OutputPath)
		if err := os.MkdirAll(dir, 0o755); err != nil && !os.IsExist(err) {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}

		file, err := os.Create(cfg.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("opening output file: %w", err)
		}
		dest = file
		closer = file
	}

	return &Writer{format: cfg.Format, destination: dest, closer: closer}, nil
}

// WriteReport persists the full report using the configured format.
func (w *Writer) WriteReport(report *scan.Report) error {
	doc := NewDocument(report)

	switch w.format {
	case config.FormatJSON:
		encoder := json.NewEncoder(w.destination)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)
	case config.FormatCSV:
		return w.writeCSV(doc)
	case config.FormatTXT:
		return w.writeTXT(doc)
	default:
		return fmt.Errorf("unsupported output format: %s", w.format)
	}
}

func (w *Writer) writeCSV(doc Document) error {
	writer := csv.NewWriter(w.destination)

	if err := writer.Write([]string{"subdomain", "vulnerable", "service", "cname", "evidence"}); err != nil {
		return err
	}

	for _, finding := range doc.Vulnerable {
		row := []string{
			finding.Subdomain,
			fmt.Sprintf("%t", finding.Vulnerable),
			finding.Service,
			strings.Join(finding.CNAME, ";"),
			strings.Join(finding.Evidence, "; "),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *Writer) writeTXT(doc Document) error {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Domain:     %s\n", doc.ScanInfo.Domain))
	builder.WriteString(fmt.Sprintf("Timestamp:  %s\n", doc.ScanInfo.Timestamp))
	builder.WriteString(fmt.Sprintf("Subdomains: %d\n", doc.ScanInfo.TotalSubdomains))
	builder.WriteString(fmt.Sprintf("Vulnerable: %d\n", doc.ScanInfo.VulnerableCount))

	if len(doc.Vulnerable) > 0 {
		builder.WriteString("\n")
		for _, finding := range doc.Vulnerable {
			builder.WriteString(fmt.Sprintf("[VULNERABLE] %s\n", finding.Subdomain))
			if finding.Service != "" {
				builder.WriteString(fmt.Sprintf("  Service: %s\n", finding.Service))
			}
			if len(finding.CNAME) > 0 {
				builder.WriteString(fmt.Sprintf("  CNAME:   %s\n", strings.Join(finding.CNAME, " -> ")))
			}
			for _, line := range finding.Evidence {
				builder.WriteString(fmt.Sprintf("  - %s\n", line))
			}
		}
	}

	_, err := io.WriteString(w.destination, builder.String())
	return err
}

// Close releases the owned file handle, if any.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
