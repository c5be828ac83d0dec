package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/dirsift/internal/config"
	"github.com/maxvaer/dirsift/internal/output"
	"github.com/maxvaer/dirsift/internal/reqparse"
	"github.com/maxvaer/dirsift/internal/runner"
	"github.com/maxvaer/dirsift/internal/similarity"
	"github.com/maxvaer/dirsift/pkg/version"
)

var (
	opts       config.Options
	configFile string
)

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"url", "request-file", "ip", "by-hostname"}},
	{"DICTIONARY", []string{"wordlist-dir", "extensions", "lowercase", "max-passes"}},
	{"DETECTION", []string{"detect-waf", "waf-threshold", "notfound-threshold", "tech-detect"}},
	{"MATCHERS", []string{"include-status", "match-body"}},
	{"FILTERS", []string{"exclude-status", "exclude-size", "exclude-body", "dedupe", "show-suppressed"}},
	{"RATE-LIMIT", []string{"threads", "timeout", "delay", "retries", "rate", "adaptive-throttle", "max-body-size"}},
	{"HTTP", []string{"header", "cookie", "user-agent", "random-agent", "proxy", "method", "follow-redirects"}},
	{"OUTPUT", []string{"output", "format", "quiet", "no-color", "verbose", "sort", "tree", "on-result"}},
	{"CONFIGURATION", []string{"config"}},
}

var rootCmd = &cobra.Command{
	Use:     "dirsift -u <url> [flags]",
	Short:   "Web content discovery with soft-404 and WAF suppression",
	Version: version.Version,
	Long: `dirsift discovers hidden files and directories on a web server. It picks
wordlists from the shape of the target URL and the extensions seen on the
site, and hides responses that resemble the server's not-found page, a WAF
block page or the answer to a scrambled sibling path.`,
	Example: `  dirsift -u https://example.com/
  dirsift -u https://example.com/app/index.php -t 50
  dirsift -u https://example.com/ -e php,bak --lowercase
  dirsift -u https://example.com/ --ip 10.0.0.5 -H "X-Forwarded-For: 127.0.0.1"
  dirsift -u https://example.com/ -x 403,500 -o results.json --format json
  dirsift -u https://example.com/ --notfound-threshold 0.8 --dedupe 3
  dirsift -c scan.yaml -u https://example.com/
  dirsift -r burp.req
  dirsift -u https://example.com/ --on-result "notify-send {url}"`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Parse raw HTTP request file (e.g. Burp export) if provided.
		if opts.RequestFile != "" {
			req, err := reqparse.ParseFile(opts.RequestFile)
			if err != nil {
				return fmt.Errorf("parsing request file: %w", err)
			}
			req.Apply(&opts)
			if !opts.Quiet {
				fmt.Fprintf(os.Stderr, "[+] Loaded request from %s -> %s\n", opts.RequestFile, opts.URL)
			}
		}
		if opts.URL == "" {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
		}
		if opts.URL != "" && !strings.HasPrefix(opts.URL, "http://") && !strings.HasPrefix(opts.URL, "https://") {
			opts.URL = "http://" + opts.URL
		}
		return opts.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVarP(&opts.URL, "url", "u", "", "Target URL (file or directory)")
	f.StringVar(&opts.Address, "ip", "", "Connect to this address instead of resolving the host")
	f.BoolVar(&opts.ByHostname, "by-hostname", false, "Connect by hostname instead of the resolved IP")
	f.StringVarP(&opts.RequestFile, "request-file", "r", "", "Raw HTTP request file (e.g. Burp Suite export)")

	// Dictionary
	f.StringVarP(&opts.WordlistDir, "wordlist-dir", "w", "", "Directory of wordlist files (default: built-in)")
	f.StringSliceVarP(&opts.Extensions, "extensions", "e", nil, "Extensions to treat as fingerprinted (e.g. php,jsp)")
	f.BoolVar(&opts.Lowercase, "lowercase", false, "Lowercase every dictionary entry")
	f.IntVar(&opts.MaxPasses, "max-passes", 3, "Maximum scan passes as the fingerprint grows (0 for no limit)")

	// Detection
	f.BoolVar(&opts.DetectWAF, "detect-waf", true, "Detect a WAF and suppress its block page")
	f.Float64Var(&opts.WAFThreshold, "waf-threshold", similarity.WAFThreshold, "Similarity below which the attack-payload response counts as a WAF")
	f.Float64Var(&opts.NotFoundThreshold, "notfound-threshold", similarity.NotFoundThreshold, "Similarity above which a response counts as not found")
	f.BoolVar(&opts.TechDetect, "tech-detect", true, "Fingerprint technologies to pick extension wordlists")

	// Performance
	f.IntVarP(&opts.Threads, "threads", "t", 25, "Number of concurrent threads")
	f.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	f.DurationVar(&opts.Delay, "delay", 0, "Delay between requests per thread")
	f.IntVar(&opts.MaxRetries, "retries", 3, "Retries for failed connections")
	f.IntVar(&opts.RateLimit, "rate", 0, "Maximum requests per second (0 for no limit)")
	f.BoolVar(&opts.AdaptiveThrottle, "adaptive-throttle", false, "Auto back-off on 429/rate limits")
	f.Int64Var(&opts.MaxBodySize, "max-body-size", 10<<20, "Maximum response body bytes read")

	// Filtering
	f.VarP(&intSliceValue{target: &opts.IncludeStatus}, "include-status", "i", "Only show these status codes (comma-separated)")
	f.VarP(&intSliceValue{target: &opts.ExcludeStatus}, "exclude-status", "x", "Hide these status codes (comma-separated)")
	f.Var(&intSliceValue{target: &opts.ExcludeSize}, "exclude-size", "Hide responses of these sizes (comma-separated)")
	f.StringVar(&opts.MatchBody, "match-body", "", "Only show responses containing this string")
	f.StringVar(&opts.ExcludeBody, "exclude-body", "", "Hide responses containing this string")
	f.IntVar(&opts.Dedupe, "dedupe", 0, "Hide look-alike responses after this many per status (0 to disable)")
	f.BoolVar(&opts.ShowSuppressed, "show-suppressed", false, "Also report soft-404, WAF and sibling look-alikes with the reason they were suppressed")

	// Output
	f.StringVarP(&opts.OutputFile, "output", "o", "", "Output file path")
	f.StringVar(&opts.OutputFormat, "format", "text", "Output format: text, json, csv")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Minimal output")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log every classification decision")
	f.StringVar(&opts.SortBy, "sort", "", "Sort results: "+strings.Join(output.SortKeys(), ", ")+" (buffers until scan completes)")
	f.BoolVar(&opts.Tree, "tree", false, "Print directory tree summary after scan")

	// HTTP
	f.StringSliceVarP(new([]string), "header", "H", nil, "Custom headers (Key: Value)")
	f.StringVar(&opts.Cookie, "cookie", "", "Cookie header value")
	f.StringVar(&opts.UserAgent, "user-agent", "", "Custom User-Agent string")
	f.BoolVar(&opts.RandomAgent, "random-agent", false, "Pick a browser User-Agent per request")
	f.StringVar(&opts.Proxy, "proxy", "", "HTTP/SOCKS proxy URL")
	f.StringVar(&opts.Method, "method", "", "HTTP method: GET, HEAD, POST (default GET)")
	f.BoolVar(&opts.FollowRedirects, "follow-redirects", false, "Follow HTTP redirects")

	// Hooks
	f.StringVar(&opts.OnResultCmd, "on-result", "", "Shell command to run for each result (receives JSON on stdin)")

	// Read by Execute before parsing; registered so cobra accepts it.
	f.StringVarP(&configFile, "config", "c", "", "YAML file with option defaults (flags take precedence)")

	// Custom help: categorized flags like httpx.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})

	// Parse headers from string slice into map in PreRun. Headers from the
	// config file stay unless a flag names the same key.
	rootCmd.PreRunE = chainPreRun(func(cmd *cobra.Command, args []string) error {
		headers, _ := f.GetStringSlice("header")
		for _, h := range headers {
			parts := strings.SplitN(h, ":", 2)
			if len(parts) != 2 {
				return fmt.Errorf("invalid header format %q, expected 'Key: Value'", h)
			}
			if opts.Headers == nil {
				opts.Headers = make(map[string]string, len(headers))
			}
			opts.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
		return nil
	}, rootCmd.PreRunE)
}

// Execute runs the root command.
func Execute() {
	// The config file provides defaults, so it is applied before cobra
	// parses the explicit flags on top of it.
	if path := configPath(os.Args[1:]); path != "" {
		if err := config.LoadFile(path, &opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configPath finds the value of -c/--config in args.
func configPath(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--":
			return ""
		case arg == "-c" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-c="):
			return strings.TrimPrefix(arg, "-c=")
		case strings.HasPrefix(arg, "-c") && len(arg) > 2 && !strings.HasPrefix(arg, "--"):
			return arg[2:]
		}
	}
	return ""
}

// chainPreRun combines two PreRunE functions.
func chainPreRun(first, second func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if first != nil {
			if err := first(cmd, args); err != nil {
				return err
			}
		}
		return second(cmd, args)
	}
}

// intSliceValue implements pflag.Value for comma-separated int slices.
type intSliceValue struct {
	target *[]int
	set    bool
}

func (v *intSliceValue) String() string {
	if v.target == nil || len(*v.target) == 0 {
		return ""
	}
	parts := make([]string, len(*v.target))
	for i, val := range *v.target {
		parts[i] = strconv.Itoa(val)
	}
	return strings.Join(parts, ",")
}

// Set replaces any values from the config file on first use and appends
// on repeated flags.
func (v *intSliceValue) Set(s string) error {
	if !v.set {
		*v.target = nil
		v.set = true
	}
	parts := strings.Split(s, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid status code %q: %w", p, err)
		}
		*v.target = append(*v.target, n)
	}
	return nil
}

func (v *intSliceValue) Type() string { return "ints" }

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
      ___      _     _ ______
  ___/ (_)____(_)__ (_) __/ /_
 / __  / / __/ (_-</ / /_/ __/
 \_,_/_/_/ /_/___/_/_/ \__/   %s

`, ver)
}
