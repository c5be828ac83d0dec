package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Options holds all configuration for a dirsift scan.
type Options struct {
	// Target
	URL        string `yaml:"url"`
	Address    string `yaml:"address"`     // skip DNS and connect here
	ByHostname bool   `yaml:"by-hostname"` // connect by hostname instead of resolved IP
	// RequestFile is a captured raw request supplying the URL, method and
	// headers not set otherwise.
	RequestFile string `yaml:"request-file"`

	// Dictionary
	WordlistDir string   `yaml:"wordlist-dir"` // empty = use embedded
	Extensions  []string `yaml:"extensions"`
	Lowercase   bool     `yaml:"lowercase"`

	// Performance
	Threads          int           `yaml:"threads"`
	Timeout          time.Duration `yaml:"timeout"`
	Delay            time.Duration `yaml:"delay"`
	MaxRetries       int           `yaml:"max-retries"`
	RateLimit        int           `yaml:"rate-limit"` // requests per second, 0 = unlimited
	AdaptiveThrottle bool          `yaml:"adaptive-throttle"`
	MaxBodySize      int64         `yaml:"max-body-size"`

	// Classification
	WAFThreshold      float64 `yaml:"waf-threshold"`
	NotFoundThreshold float64 `yaml:"notfound-threshold"`
	DetectWAF         bool    `yaml:"detect-waf"`
	TechDetect        bool    `yaml:"tech-detect"`
	MaxPasses         int     `yaml:"max-passes"`

	// Reporting
	IncludeStatus  []int  `yaml:"include-status"`
	ExcludeStatus  []int  `yaml:"exclude-status"`
	ExcludeSize    []int  `yaml:"exclude-size"`
	MatchBody      string `yaml:"match-body"`
	ExcludeBody    string `yaml:"exclude-body"`
	Dedupe         int    `yaml:"dedupe"` // look-alike responses allowed per status before hiding, 0 = off
	ShowSuppressed bool   `yaml:"show-suppressed"`

	// Output
	OutputFile   string `yaml:"output"`
	OutputFormat string `yaml:"format"` // "text", "json", "csv"
	Quiet        bool   `yaml:"quiet"`
	NoColor      bool   `yaml:"no-color"`
	Verbose      bool   `yaml:"verbose"`
	SortBy       string `yaml:"sort"` // "status", "path", "size"; buffers until the scan ends
	Tree         bool   `yaml:"tree"`

	// HTTP
	Headers         map[string]string `yaml:"headers"`
	Cookie          string            `yaml:"cookie"`
	UserAgent       string            `yaml:"user-agent"`
	RandomAgent     bool              `yaml:"random-agent"`
	Proxy           string            `yaml:"proxy"`
	Method          string            `yaml:"method"`
	FollowRedirects bool              `yaml:"follow-redirects"`

	// Hooks
	OnResultCmd string `yaml:"on-result"`
}

// LoadFile applies the YAML file at path on top of opts. Keys absent from
// the file leave the current values untouched.
func LoadFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks option ranges and combinations.
func (o *Options) Validate() error {
	if o.URL == "" {
		return errors.New("target required: use -u or --request-file")
	}
	if o.Threads < 1 {
		return fmt.Errorf("--threads must be at least 1, got %d", o.Threads)
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("--max-retries must not be negative, got %d", o.MaxRetries)
	}
	if len(o.IncludeStatus) > 0 && len(o.ExcludeStatus) > 0 {
		return errors.New("--include-status and --exclude-status are mutually exclusive")
	}
	for _, th := range []struct {
		name string
		val  float64
	}{{"--waf-threshold", o.WAFThreshold}, {"--notfound-threshold", o.NotFoundThreshold}} {
		if th.val < 0 || th.val > 1 {
			return fmt.Errorf("%s must be within [0,1], got %g", th.name, th.val)
		}
	}
	switch o.OutputFormat {
	case "", "text", "json", "csv":
	default:
		return fmt.Errorf("--format must be one of: text, json, csv")
	}
	switch o.SortBy {
	case "", "status", "path", "size":
	default:
		return errors.New("--sort must be one of: status, path, size")
	}
	if o.MaxPasses < 0 {
		return fmt.Errorf("--max-passes must not be negative, got %d", o.MaxPasses)
	}
	switch strings.ToUpper(o.Method) {
	case "", "GET", "HEAD", "POST":
	default:
		return fmt.Errorf("--method must be one of: GET, HEAD, POST")
	}
	return nil
}
