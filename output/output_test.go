package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RowanDark/subhawk/config"
	"github.com/RowanDark/subhawk/fingerprint"
	"github.com/RowanDark/subhawk/scan"
)

func sampleReport() *scan.Report {
	return &scan.Report{
		Domain:     "example.com",
		Timestamp:  time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
		Candidates: []string{"old.example.com", "www.example.com"},
		Findings: []fingerprint.Finding{
			{
				Subdomain:  "old.example.com",
				Vulnerable: true,
				Service:    "GitHub Pages",
				CNAME:      []string{"orphaned.github.io"},
				Evidence: []string{
					"CNAME points to: orphaned.github.io",
					"Service identified: GitHub Pages",
					"HTTP Status: 404",
				},
			},
			{
				Subdomain:  "www.example.com",
				Vulnerable: false,
				CNAME:      []string{"cdn.example.net"},
				Evidence:   []string{"CNAME points to: cdn.example.net"},
			},
		},
	}
}

func TestJSONWriter(t *testing.T) {
	cfg := &config.Config{Format: config.FormatJSON, OutputPath: filepath.Join(t.TempDir(), "out.json")}
	writer, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := writer.WriteReport(sampleReport()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decoding json: %v", err)
	}
	if doc.ScanInfo.Domain != "example.com" {
		t.Fatalf("unexpected domain: %s", doc.ScanInfo.Domain)
	}
	if doc.ScanInfo.TotalSubdomains != 2 || doc.ScanInfo.VulnerableCount != 1 {
		t.Fatalf("unexpected counts: %+v", doc.ScanInfo)
	}
	if doc.ScanInfo.Timestamp != "2025-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp: %s", doc.ScanInfo.Timestamp)
	}
	if len(doc.Subdomains) != 2 || doc.Subdomains[0] != "old.example.com" {
		t.Fatalf("unexpected subdomains: %v", doc.Subdomains)
	}
	if len(doc.Vulnerable) != 1 || doc.Vulnerable[0].Service != "GitHub Pages" {
		t.Fatalf("unexpected vulnerable findings: %+v", doc.Vulnerable)
	}
}

func TestJSONWriterEmptyReport(t *testing.T) {
	cfg := &config.Config{Format: config.FormatJSON, OutputPath: filepath.Join(t.TempDir(), "out.json")}
	writer, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report := &scan.Report{Domain: "example.com", Timestamp: time.Now()}
	if err := writer.WriteReport(report); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "\"subdomains\": []") {
		t.Fatalf("expected empty array for subdomains, got: %s", content)
	}
	if !strings.Contains(content, "\"vulnerable\": []") {
		t.Fatalf("expected empty array for vulnerable, got: %s", content)
	}
}

func TestCSVWriter(t *testing.T) {
	cfg := &config.Config{Format: config.FormatCSV, OutputPath: filepath.Join(t.TempDir(), "out.csv")}
	writer, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := writer.WriteReport(sampleReport()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	file, err := os.Open(cfg.OutputPath)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one vulnerable row, got %d", len(rows))
	}
	if rows[0][0] != "subdomain" || rows[0][4] != "evidence" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "old.example.com" || rows[1][1] != "true" || rows[1][2] != "GitHub Pages" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
	if rows[1][3] != "orphaned.github.io" {
		t.Fatalf("unexpected cname cell: %v", rows[1])
	}
}

func TestTXTWriter(t *testing.T) {
	cfg := &config.Config{Format: config.FormatTXT, OutputPath: filepath.Join(t.TempDir(), "out.txt")}
	writer, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := writer.WriteReport(sampleReport()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "Domain:     example.com") {
		t.Fatalf("unexpected txt output: %s", content)
	}
	if !strings.Contains(content, "[VULNERABLE] old.example.com") {
		t.Fatalf("expected vulnerable line in txt output: %s", content)
	}
	if !strings.Contains(content, "Service: GitHub Pages") {
		t.Fatalf("expected service line in txt output: %s", content)
	}
}

func TestLoadDocumentRoundTrip(t *testing.T) {
	cfg := &config.Config{Format: config.FormatJSON, OutputPath: filepath.Join(t.TempDir(), "out.json")}
	writer, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := writer.WriteReport(sampleReport()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	doc, err := LoadDocument(cfg.OutputPath)
	if err != nil {
		t.Fatalf("load document: %v", err)
	}
	if doc.ScanInfo.VulnerableCount != 1 || len(doc.Vulnerable) != 1 {
		t.Fatalf("unexpected loaded document: %+v", doc)
	}
}

func TestLoadDocumentMissingFile(t *testing.T) {
	if _, err := LoadDocument(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing report")
	}
}

func TestNewlyVulnerable(t *testing.T) {
	previous := Document{
		Vulnerable: []fingerprint.Finding{
			{Subdomain: "old.example.com", Vulnerable: true},
		},
	}

	current := []fingerprint.Finding{
		{Subdomain: "old.example.com", Vulnerable: true},
		{Subdomain: "shop.example.com", Vulnerable: true, Service: "Shopify"},
		{Subdomain: "www.example.com", Vulnerable: false},
	}

	fresh := NewlyVulnerable(current, previous)
	if len(fresh) != 1 || fresh[0].Subdomain != "shop.example.com" {
		t.Fatalf("unexpected diff result: %+v", fresh)
	}
}
