package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const defaultConfigFilename = ".subhawk.yaml"

type fileConfig struct {
	Profiles map[string]profileSettings `yaml:"profiles"`
}

type profileSettings struct {
	Domain         *string      `yaml:"domain"`
	WordlistPath   *string      `yaml:"wordlist"`
	Threads        *int         `yaml:"threads"`
	TimeoutSeconds *int         `yaml:"timeout"`
	Verbose        *bool        `yaml:"verbose"`
	OutputPath     *string      `yaml:"output"`
	Format         *string      `yaml:"format"`
	Sources        *StringSlice `yaml:"sources"`
	NoPassive      *bool        `yaml:"no_passive"`
	ZoneTransfer   *bool        `yaml:"zone_transfer"`
	Resolver       *string      `yaml:"resolver"`
	RateLimit      *float64     `yaml:"rate_limit"`
	EvidenceDir    *string      `yaml:"evidence_dir"`
	WebhookURL     *string      `yaml:"webhook"`
	DiffPath       *string      `yaml:"diff"`
	NoColor        *bool        `yaml:"no_color"`
	Quiet          *bool        `yaml:"quiet"`
	LogFile        *string      `yaml:"log_file"`
}

type StringSlice []string

func (s *StringSlice) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var str string
		if err := value.Decode(&str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*s = nil
			return nil
		}
		parts := strings.Split(str, ",")
		cleaned := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			cleaned = append(cleaned, part)
		}
		*s = cleaned
		return nil
	case yaml.SequenceNode:
		var raw []string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		cleaned := make([]string, 0, len(raw))
		for _, item := range raw {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			cleaned = append(cleaned, item)
		}
		*s = cleaned
		return nil
	default:
		return fmt.Errorf("unsupported YAML type %s for string slice", value.ShortTag())
	}
}

func (s *StringSlice) ToSlice() []string {
	if s == nil {
		return nil
	}
	dup := make([]string, len(*s))
	copy(dup, *s)
	return dup
}

// ApplyProfile loads and applies the requested configuration profile to cfg.
// Command-line flag overrides take precedence over profile values.
func ApplyProfile(cfg *Config, cmd *cobra.Command) error {
	path, err := resolveConfigPath(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("locating config file: %w", err)
	}

	if path == "" {
		if cfg.Profile != "" {
			return fmt.Errorf("profile %q requested but no %s file was found", cfg.Profile, defaultConfigFilename)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if len(fc.Profiles) == 0 {
		if cfg.Profile != "" {
			return fmt.Errorf("profile %q not found in %s", cfg.Profile, path)
		}
		return nil
	}

	profileName := cfg.Profile
	if profileName == "" {
		if _, ok := fc.Profiles["default"]; ok {
			profileName = "default"
		}
	}

	if profileName == "" {
		return nil
	}

	profile, ok := fc.Profiles[profileName]
	if !ok {
		return fmt.Errorf("profile %q not found in %s", profileName, path)
	}

	applyProfileSettings(cfg, &profile, cmd)
	cfg.ConfigPath = path
	return nil
}

func applyProfileSettings(cfg *Config, profile *profileSettings, cmd *cobra.Command) {
	flags := cmd.Flags()

	if profile.Domain != nil && !flagChanged(flags, "domain") {
		cfg.Domain = strings.TrimSpace(*profile.Domain)
	}
	if profile.WordlistPath != nil && !flagChanged(flags, "wordlist") {
		cfg.WordlistPath = strings.TrimSpace(*profile.WordlistPath)
	}
	if profile.Threads != nil && !flagChanged(flags, "threads") {
		cfg.Threads = *profile.Threads
	}
	if profile.TimeoutSeconds != nil && !flagChanged(flags, "timeout") {
		cfg.TimeoutSeconds = *profile.TimeoutSeconds
	}
	if profile.Verbose != nil && !flagChanged(flags, "verbose") {
		cfg.Verbose = *profile.Verbose
	}
	if profile.OutputPath != nil && !flagChanged(flags, "output") {
		cfg.OutputPath = strings.TrimSpace(*profile.OutputPath)
	}
	if profile.Format != nil && !flagChanged(flags, "format") {
		cfg.Format = Format(strings.TrimSpace(*profile.Format))
	}
	if profile.Sources != nil && !flagChanged(flags, "sources") {
		cfg.Sources = profile.Sources.ToSlice()
	}
	if profile.NoPassive != nil && !flagChanged(flags, "no-passive") {
		cfg.NoPassive = *profile.NoPassive
	}
	if profile.ZoneTransfer != nil && !flagChanged(flags, "zone-transfer") {
		cfg.ZoneTransfer = *profile.ZoneTransfer
	}
	if profile.Resolver != nil && !flagChanged(flags, "resolver") {
		cfg.Resolver = strings.TrimSpace(*profile.Resolver)
	}
	if profile.RateLimit != nil && !flagChanged(flags, "rate-limit") {
		cfg.RateLimit = *profile.RateLimit
	}
	if profile.EvidenceDir != nil && !flagChanged(flags, "evidence-dir") {
		cfg.EvidenceDir = strings.TrimSpace(*profile.EvidenceDir)
	}
	if profile.WebhookURL != nil && !flagChanged(flags, "webhook") {
		cfg.WebhookURL = strings.TrimSpace(*profile.WebhookURL)
	}
	if profile.DiffPath != nil && !flagChanged(flags, "diff") {
		cfg.DiffPath = strings.TrimSpace(*profile.DiffPath)
	}
	if profile.NoColor != nil && !flagChanged(flags, "no-color") {
		cfg.NoColor = *profile.NoColor
	}
	if profile.Quiet != nil && !flagChanged(flags, "quiet") {
		cfg.Quiet = *profile.Quiet
	}
	if profile.LogFile != nil && !flagChanged(flags, "log-file") {
		cfg.LogFile = strings.TrimSpace(*profile.LogFile)
	}
}

func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		abs := explicit
		if !filepath.IsAbs(abs) {
			if resolved, err := filepath.Abs(explicit); err == nil {
				abs = resolved
			}
		}
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", err
			}
			return "", fmt.Errorf("stat %s: %w", abs, err)
		}
		return abs, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, defaultConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	} else {
		return "", fmt.Errorf("getwd: %w", err)
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, defaultConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", nil
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	if flag == nil {
		return false
	}
	return flag.Changed
}
