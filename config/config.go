// Package config binds command-line flags, applies YAML profiles, and
// validates the resulting scan configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"golang.org/x/net/idna"
)

// Format represents an output format option.
type Format string

// Supported output format options.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

// Passive source identifiers accepted by --sources.
const (
	SourceCrtSh        = "crtsh"
	SourceHackerTarget = "hackertarget"
)

// Config captures all runtime configuration for the CLI.
type Config struct {
	Domain         string
	WordlistPath   string
	Threads        int
	TimeoutSeconds int
	Verbose        bool
	OutputPath     string
	Format         Format
	Sources        []string
	NoPassive      bool
	ZoneTransfer   bool
	Resolver       string
	RateLimit      float64
	Profile        string
	ConfigPath     string
	EvidenceDir    string
	WebhookURL     string
	DiffPath       string
	NoColor        bool
	Quiet          bool
	LogFile        string
}

// BindFlags registers the command-line flags and returns a Config instance
// whose fields are populated when Cobra parses flag values.
func BindFlags(cmd *cobra.Command) *Config {
	cfg := &Config{}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Domain, "domain", "d", "", "Target domain to scan for takeover candidates")
	flags.StringVarP(&cfg.WordlistPath, "wordlist", "w", "", "Wordlist file for active subdomain generation")
	flags.IntVarP(&cfg.Threads, "threads", "t", 10, "Number of concurrent scan workers")
	flags.IntVar(&cfg.TimeoutSeconds, "timeout", 5, "Per-candidate DNS and HTTP timeout in seconds")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug-level logging")
	flags.StringVarP(&cfg.OutputPath, "output", "o", "", "File path to write the scan report")
	flags.StringVar((*string)(&cfg.Format), "format", string(FormatJSON), "Report format (json, csv, txt)")
	flags.StringSliceVar(&cfg.Sources, "sources", []string{SourceCrtSh, SourceHackerTarget}, "Passive sources to query (crtsh, hackertarget)")
	flags.BoolVar(&cfg.NoPassive, "no-passive", false, "Skip passive discovery entirely")
	flags.BoolVar(&cfg.ZoneTransfer, "zone-transfer", false, "Attempt AXFR against the domain's authoritative nameservers")
	flags.StringVar(&cfg.Resolver, "resolver", "", "Custom DNS server (ip or ip:port)")
	flags.Float64Var(&cfg.RateLimit, "rate-limit", 0, "Global DNS/HTTP requests per second (0 disables limiting)")
	flags.StringVar(&cfg.Profile, "profile", "", "Named profile from ~/"+defaultConfigFilename)
	flags.StringVar(&cfg.EvidenceDir, "evidence-dir", "", "Directory for PNG evidence snapshots of vulnerable findings")
	flags.StringVar(&cfg.WebhookURL, "webhook", "", "POST vulnerable findings to this URL")
	flags.StringVar(&cfg.DiffPath, "diff", "", "Previous report JSON; highlight findings new since then")
	flags.BoolVar(&cfg.NoColor, "no-color", false, "Disable ANSI colors in console output")
	flags.BoolVar(&cfg.Quiet, "quiet", false, "Suppress banner and progress output")
	flags.StringVar(&cfg.LogFile, "log-file", "", "Append logs to this file")

	return cfg
}

// Validate ensures the provided configuration values meet the expected
// constraints and normalises their representation where required.
func (c *Config) Validate() error {
	c.Domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(c.Domain)), ".")
	if c.Domain == "" {
		return fmt.Errorf("a target domain is required (use --domain)")
	}
	if ascii, err := idna.Lookup.ToASCII(c.Domain); err == nil {
		c.Domain = ascii
	}
	if !strings.Contains(c.Domain, ".") {
		return fmt.Errorf("invalid domain %q", c.Domain)
	}

	format := strings.ToLower(strings.TrimSpace(string(c.Format)))
	switch Format(format) {
	case FormatJSON, FormatCSV, FormatTXT:
		c.Format = Format(format)
	case "":
		c.Format = FormatJSON
	default:
		return fmt.Errorf("invalid output format %q: expected json, csv, or txt", c.Format)
	}

	normalised := make([]string, 0, len(c.Sources))
	for _, source := range c.Sources {
		source = strings.ToLower(strings.TrimSpace(source))
		if source == "" {
			continue
		}
		switch source {
		case SourceCrtSh, SourceHackerTarget:
			normalised = append(normalised, source)
		default:
			return fmt.Errorf("unknown passive source %q: expected %s or %s", source, SourceCrtSh, SourceHackerTarget)
		}
	}
	c.Sources = normalised

	if c.Threads <= 0 {
		c.Threads = 10
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}

	c.Resolver = strings.TrimSpace(c.Resolver)
	c.WordlistPath = strings.TrimSpace(c.WordlistPath)
	c.OutputPath = strings.TrimSpace(c.OutputPath)
	c.EvidenceDir = strings.TrimSpace(c.EvidenceDir)
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.DiffPath = strings.TrimSpace(c.DiffPath)
	c.LogFile = strings.TrimSpace(c.LogFile)

	if c.NoPassive && c.WordlistPath == "" && !c.ZoneTransfer {
		return fmt.Errorf("--no-passive requires --wordlist or --zone-transfer to produce candidates")
	}

	return nil
}

// Timeout returns the per-candidate timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LiveOutput returns true when the report should go to stdout instead of a file.
func (c *Config) LiveOutput() bool {
	return strings.TrimSpace(c.OutputPath) == ""
}
