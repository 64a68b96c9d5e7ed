package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	if err != nil || level != LevelWarn {
		t.Fatalf("unexpected parse result: %v %v", level, err)
	}
	if level, err := ParseLevel("vuln"); err != nil || level != LevelVuln {
		t.Fatalf("unexpected parse result: %v %v", level, err)
	}
	if _, err := ParseLevel("unknown"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLoggerWritesToOutputs(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "scan.log")
	var console bytes.Buffer

	logger, err := New(Options{Level: LevelInfo, Console: &console, FilePath: logPath, NoColor: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer logger.Close()

	logger.Infof("scanning %s", "example.com")
	logger.Debugf("debug message should be filtered")
	writer := logger.Writer(LevelError)
	writer.Write([]byte("first error\nsecond error\n"))

	out := console.String()
	if !strings.Contains(out, "scanning example.com") {
		t.Fatalf("console output missing log entry: %s", out)
	}
	if strings.Contains(out, "debug message") {
		t.Fatalf("debug entry should have been filtered: %s", out)
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	contents := string(data)
	if !strings.Contains(contents, "scanning example.com") || !strings.Contains(contents, "first error") {
		t.Fatalf("log file missing entries: %s", contents)
	}
}

func TestVulnBypassesLevelFilter(t *testing.T) {
	var console bytes.Buffer
	logger, err := New(Options{Level: LevelError, Console: &console, NoColor: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer logger.Close()

	logger.Infof("hidden")
	logger.Vulnf("VULNERABLE: %s -> %s", "old.example.com", "GitHub Pages")

	out := console.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry should have been filtered: %s", out)
	}
	if !strings.Contains(out, "[VULN]") || !strings.Contains(out, "old.example.com") {
		t.Fatalf("vuln entry missing: %s", out)
	}
}
