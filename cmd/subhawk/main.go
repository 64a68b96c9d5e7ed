package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/RowanDark/subhawk/active/wordlist"
	"github.com/RowanDark/subhawk/active/zonetransfer"
	"github.com/RowanDark/subhawk/config"
	"github.com/RowanDark/subhawk/discover"
	"github.com/RowanDark/subhawk/filters"
	"github.com/RowanDark/subhawk/fingerprint"
	"github.com/RowanDark/subhawk/logging"
	"github.com/RowanDark/subhawk/netutil"
	"github.com/RowanDark/subhawk/notifier/webhook"
	"github.com/RowanDark/subhawk/output"
	"github.com/RowanDark/subhawk/passive"
	"github.com/RowanDark/subhawk/passive/certtransparency"
	"github.com/RowanDark/subhawk/passive/hackertarget"
	"github.com/RowanDark/subhawk/probe"
	"github.com/RowanDark/subhawk/ratelimit"
	"github.com/RowanDark/subhawk/resolver"
	"github.com/RowanDark/subhawk/scan"
	"github.com/RowanDark/subhawk/stats"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const banner = `   _____       __    __  __               __
  / ___/__  __/ /_  / / / /___ __      __/ /__
  \__ \/ / / / __ \/ /_/ / __ ` + "`" + `/ | /| / / //_/
 ___/ / /_/ / /_/ / __  / /_/ /| |/ |/ / ,<
/____/\__,_/_.___/_/ /_/\__,_/ |__/|__/_/|_|
`

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "subhawk",
	Short: "subhawk hunts for subdomains vulnerable to takeover.",
	Long: `subhawk discovers a domain's subdomains, follows their CNAME chains, and
fingerprints the hosting services behind them to flag records that point at
deprovisioned resources an attacker could claim.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		showVersion, err := cmd.Flags().GetBool("version")
		if err != nil {
			return err
		}
		if showVersion {
			fmt.Fprintf(cmd.OutOrStdout(), "subhawk version: %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", date)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := config.ApplyProfile(cfg, cmd); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := logging.LevelInfo
		if cfg.Verbose {
			level = logging.LevelDebug
		}

		logger, err := logging.New(logging.Options{
			Level:    level,
			Console:  cmd.ErrOrStderr(),
			FilePath: cfg.LogFile,
			NoColor:  cfg.NoColor,
		})
		if err != nil {
			return err
		}
		defer logger.Close()

		if cfg.NoColor {
			color.NoColor = true
		}
		if !cfg.Quiet {
			fmt.Fprint(cmd.ErrOrStderr(), banner)
			fmt.Fprintf(cmd.ErrOrStderr(), "  v%s\n\n", version)
		}

		return runScan(ctx, cmd, logger)
	},
}

func init() {
	cfg = config.BindFlags(rootCmd)
	rootCmd.Flags().BoolP("version", "V", false, "Show subhawk version information and exit")
}

func runScan(ctx context.Context, cmd *cobra.Command, logger *logging.Logger) error {
	limiter := ratelimit.New(cfg.RateLimit)
	httpClient := netutil.NewHTTPClient(cfg.Timeout(), limiter)

	notifier, err := webhook.New(webhook.Options{
		Endpoint: cfg.WebhookURL,
		Secret:   strings.TrimSpace(os.Getenv("SUBHAWK_WEBHOOK_SECRET")),
		Domain:   cfg.Domain,
		Client:   httpClient,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	var baseline *output.Document
	if cfg.DiffPath != "" {
		doc, err := output.LoadDocument(cfg.DiffPath)
		if err != nil {
			logger.Warnf("Unable to load diff baseline %s: %v", cfg.DiffPath, err)
		} else {
			baseline = &doc
			logger.Infof("Loaded baseline report with %d vulnerable finding(s) from %s", len(doc.Vulnerable), cfg.DiffPath)
		}
	}

	tracker := stats.NewTracker(stats.Options{Logger: logger})

	logger.Infof("Scanning %s for takeover candidates", cfg.Domain)

	candidates, err := gatherCandidates(ctx, logger, limiter, httpClient, tracker)
	if err != nil {
		return err
	}
	logger.Infof("Discovered %d unique candidate(s)", len(candidates))

	dnsResolver, err := resolver.New(resolver.Options{
		Server:      cfg.Resolver,
		Timeout:     cfg.Timeout(),
		RateLimiter: limiter,
	})
	if err != nil {
		return fmt.Errorf("configuring resolver: %w", err)
	}

	var wildcard filters.WildcardProfile
	profile, err := filters.DetectWildcard(ctx, dnsResolver, cfg.Domain, 3)
	if err != nil {
		logger.Warnf("Wildcard detection error: %v", err)
	} else {
		wildcard = profile
		if wildcard.Active() {
			logger.Infof("Wildcard DNS detected; matching resolutions will be flagged")
		}
	}

	prober := probe.NewClient(probe.Options{
		Timeout:     cfg.Timeout(),
		RateLimiter: limiter,
		HTTPClient:  netutil.NewProbeClient(cfg.Timeout(), limiter),
	})

	var bar *progressbar.ProgressBar
	if !cfg.Quiet && len(candidates) > 0 {
		bar = progressbar.NewOptions(len(candidates),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	tracker.Start(ctx.Done())

	report := scan.Run(ctx, cfg.Domain, candidates, scan.Options{
		Concurrency: cfg.Threads,
		Resolver:    dnsResolver,
		Prober:      prober,
		Matcher:     fingerprint.NewMatcher(nil),
		Wildcard:    wildcard,
		Logger:      logger,
		Tracker:     tracker,
		Progress: func(finding fingerprint.Finding) {
			if bar != nil {
				_ = bar.Add(1)
			}
			if finding.Vulnerable {
				logger.Vulnf("VULNERABLE: %s -> %s (%s)", finding.Subdomain, finding.Service, strings.Join(finding.CNAME, " -> "))
			}
		},
	})

	snapshot := tracker.Stop()
	if bar != nil {
		_ = bar.Finish()
	}

	if err := ctx.Err(); err != nil && errors.Is(err, context.Canceled) {
		logger.Warnf("Scan interrupted; partial results follow")
	}

	vulnerable := report.Vulnerable()

	for _, finding := range vulnerable {
		if cfg.EvidenceDir != "" {
			if path, err := probe.SaveEvidence(cfg.EvidenceDir, finding.Subdomain, finding.Evidence); err != nil {
				logger.Warnf("Evidence snapshot for %s failed: %v", finding.Subdomain, err)
			} else if path != "" {
				logger.Debugf("Evidence snapshot written: %s", path)
			}
		}
		if notifier != nil {
			if err := notifier.Notify(ctx, cfg.Domain, finding); err != nil {
				logger.Warnf("Webhook delivery for %s failed: %v", finding.Subdomain, err)
			}
		}
	}

	if baseline != nil {
		fresh := output.NewlyVulnerable(report.Findings, *baseline)
		logger.Infof("Diff against %s: %d newly vulnerable finding(s)", cfg.DiffPath, len(fresh))
		for _, finding := range fresh {
			logger.Vulnf("NEW since baseline: %s -> %s", finding.Subdomain, finding.Service)
		}
	}

	writer, err := output.NewWriter(cfg)
	if err != nil {
		return err
	}
	if err := writer.WriteReport(report); err != nil {
		writer.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if !cfg.LiveOutput() {
		logger.Infof("Report saved to %s", cfg.OutputPath)
	}

	if !cfg.Quiet {
		printSummary(cmd, report, snapshot)
	}

	return nil
}

func gatherCandidates(ctx context.Context, logger *logging.Logger, limiter *ratelimit.Limiter, httpClient *http.Client, tracker *stats.Tracker) ([]string, error) {
	var sources []passive.Source
	if !cfg.NoPassive {
		var err error
		sources, err = buildPassiveSources(cfg, httpClient)
		if err != nil {
			return nil, err
		}
	}

	extra := make(map[string][]string)

	if cfg.WordlistPath != "" {
		words, err := wordlist.Load(cfg.WordlistPath)
		if err != nil {
			return nil, fmt.Errorf("loading wordlist: %w", err)
		}
		generated := wordlist.Generate(cfg.Domain, words, false)
		logger.Debugf("Wordlist %s generated %d candidate(s)", cfg.WordlistPath, len(generated))
		extra["wordlist"] = generated
	}

	if cfg.ZoneTransfer {
		transfers, err := zonetransfer.Run(ctx, zonetransfer.Options{
			Domain:      cfg.Domain,
			DNSServer:   cfg.Resolver,
			Timeout:     cfg.Timeout(),
			Logger:      logger,
			RateLimiter: limiter,
		})
		if err != nil {
			logger.Warnf("Zone transfer failed: %v", err)
		} else if hosts := zonetransfer.Hosts(transfers); len(hosts) > 0 {
			logger.Infof("Zone transfer yielded %d host(s) from %d cooperative nameserver(s)", len(hosts), len(transfers))
			extra["zonetransfer"] = hosts
		}
	}

	result := discover.Run(ctx, cfg.Domain, discover.Options{
		Sources: sources,
		Extra:   extra,
		Limit:   4,
		Logger:  logger,
	})

	// Candidate totals are recorded by the scan itself; only per-source
	// discovery counts land here.
	for origin, count := range result.Counts {
		tracker.RecordSource(origin, count)
	}

	return result.Candidates, nil
}

func buildPassiveSources(cfg *config.Config, httpClient *http.Client) ([]passive.Source, error) {
	available := map[string]passive.Source{
		config.SourceCrtSh: certtransparency.NewClient(
			certtransparency.WithHTTPClient(httpClient),
		),
		config.SourceHackerTarget: hackertarget.NewClient(
			hackertarget.WithHTTPClient(httpClient),
		),
	}

	requested := cfg.Sources
	if len(requested) == 0 {
		requested = []string{config.SourceCrtSh, config.SourceHackerTarget}
	}

	selected := make([]passive.Source, 0, len(requested))
	seen := make(map[string]struct{})
	for _, name := range requested {
		source, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unknown passive source %q", name)
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		selected = append(selected, source)
	}

	return selected, nil
}

func printSummary(cmd *cobra.Command, report *scan.Report, snapshot stats.Snapshot) {
	out := cmd.ErrOrStderr()
	vulnerable := report.Vulnerable()

	bold := color.New(color.Bold)
	red := color.New(color.FgRed, color.Bold)
	green := color.New(color.FgGreen)

	fmt.Fprintln(out)
	bold.Fprintf(out, "Scan complete for %s in %s\n", report.Domain, formatDuration(snapshot.Duration))
	fmt.Fprintf(out, "  Candidates checked: %d\n", len(report.Candidates))
	fmt.Fprintf(out, "  HTTP probes:        %d\n", snapshot.Probes)
	if breakdown := stats.FormatSourceBreakdown(snapshot.Sources, 5); breakdown != "" {
		fmt.Fprintf(out, "  Sources:            %s\n", breakdown)
	}

	if len(vulnerable) == 0 {
		green.Fprintln(out, "  No takeover candidates found")
		return
	}

	red.Fprintf(out, "  Vulnerable:         %d\n", len(vulnerable))
	for _, finding := range vulnerable {
		red.Fprintf(out, "  [VULNERABLE] %s", finding.Subdomain)
		if finding.Service != "" {
			fmt.Fprintf(out, " (%s)", finding.Service)
		}
		fmt.Fprintln(out)
		for _, line := range finding.Evidence {
			fmt.Fprintf(out, "      %s\n", line)
		}
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "<1s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !strings.HasSuffix(err.Error(), "help requested") {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
