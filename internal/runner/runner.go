package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/maxvaer/dirsift/internal/config"
	"github.com/maxvaer/dirsift/internal/crawl"
	"github.com/maxvaer/dirsift/internal/filter"
	"github.com/maxvaer/dirsift/internal/fuzzer"
	"github.com/maxvaer/dirsift/internal/hook"
	"github.com/maxvaer/dirsift/internal/logger"
	"github.com/maxvaer/dirsift/internal/output"
	"github.com/maxvaer/dirsift/internal/scanner"
	"github.com/maxvaer/dirsift/internal/target"
	"github.com/maxvaer/dirsift/internal/wordlist"
	"github.com/maxvaer/dirsift/pkg/version"
)

// Run executes a scan with the given options.
func Run(ctx context.Context, opts *config.Options) error {
	if opts.NoColor {
		color.NoColor = true
	}
	log := newLogger(os.Stderr, opts)

	// 1. Resolve and classify the target.
	var topts []target.Option
	if opts.Address != "" {
		topts = append(topts, target.WithAddress(opts.Address))
	}
	t, err := target.New(ctx, opts.URL, topts...)
	if err != nil {
		return err
	}
	t.Fingerprint.Add(opts.Extensions...)

	// 2. Fetch the clean page; links and technologies seed the fingerprint.
	req, err := scanner.NewRequester(t, opts, log)
	if err != nil {
		return err
	}
	clean, err := req.Request(ctx, t.RequestPath, scanner.RequestOptions{
		FollowRedirects:    opts.FollowRedirects,
		CollectFingerprint: true,
	})
	if err != nil {
		return fmt.Errorf("fetching %s: %w", t, err)
	}

	// 3. Build the dictionary for the target's shape.
	fsys := wordlist.Embedded()
	if opts.WordlistDir != "" {
		fsys = os.DirFS(opts.WordlistDir)
	}
	lists := wordlist.Select(t.Type, t.Fingerprint.List())
	dict, err := wordlist.New(fsys, wordlist.Options{
		Lists: lists,
		Placeholders: wordlist.Placeholders{
			Filename:  t.Filename,
			Directory: t.Directory,
			Extension: t.Extension,
		},
		Extensions: opts.Extensions,
		Lowercase:  opts.Lowercase,
	})
	if err != nil {
		return fmt.Errorf("building dictionary: %w", err)
	}

	// 4. WAF detection.
	var waf *filter.Baseline
	if opts.DetectWAF {
		waf, err = filter.DetectWAF(ctx, req, t.RequestPath, clean, opts.WAFThreshold)
		if err != nil {
			log.Warn("WAF detection failed", "error", err)
		} else if waf != nil {
			log.Info("WAF detected, matching responses are suppressed", "status", waf.Response.Status)
		}
	}

	if !opts.Quiet {
		printBanner(os.Stderr, opts, t, dict, waf != nil)
	}

	// 5. Output, reporting filters and hooks.
	out, err := createWriter(opts)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	defer out.Close()
	if err := out.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	report := filter.NewReport(reportRules(opts))
	var hookRunner *hook.Runner
	if opts.OnResultCmd != "" {
		hookRunner = hook.NewRunner(opts.OnResultCmd, log)
	}

	progress := output.NewProgress(dict.Len(), opts.Quiet)
	scan := &scanState{
		ctx:      ctx,
		target:   t,
		report:   report,
		out:      out,
		progress: progress,
		hook:     hookRunner,
		log:      log,
	}

	engine := fuzzer.New(fuzzer.Config{
		Threads:           opts.Threads,
		Requester:         req,
		Dictionary:        dict,
		Target:            t,
		WAF:               waf,
		NotFoundThreshold: opts.NotFoundThreshold,
		MatchCallbacks:    []func(*scanner.Result){scan.onMatch},
		NotFoundCallbacks: []func(*scanner.Result){scan.onNotFound},
		ErrorCallbacks:    []func(string, error){scan.onError},
		SkipCallbacks:     []func(wordlist.Entry){scan.onSkip},
		Logger:            log,
	})

	// 6. Interactive pause toggle.
	restore := startStdinToggle(engine, progress, log)
	defer restore()

	// 7. Run passes until the fingerprint stops producing new lists.
	start := time.Now()
	var paused time.Duration
	scanned := slices.Clone(lists)
	passes := 0
	progress.Start()
	for {
		passes++
		if err := engine.Start(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			progress.Stop()
			return fmt.Errorf("starting pass %d: %w", passes, err)
		}
		engine.Wait(0)
		paused += engine.PausedDuration()
		if engine.Err() != nil || ctx.Err() != nil {
			break
		}
		if opts.MaxPasses > 0 && passes >= opts.MaxPasses {
			break
		}
		next := newLists(wordlist.Select(t.Type, t.Fingerprint.List()), scanned)
		if len(next) == 0 {
			break
		}
		dict.SetLists(next)
		if err := dict.Regenerate(); err != nil {
			progress.Stop()
			return fmt.Errorf("building dictionary for pass %d: %w", passes+1, err)
		}
		scanned = append(scanned, next...)
		progress.AddTotal(dict.Len())
		log.Info("fingerprint grew, scanning new lists", "pass", passes+1, "lists", strings.Join(next, ","))
	}
	progress.Stop()

	if ctx.Err() != nil {
		log.Warn("scan interrupted")
	}

	// 8. Footer.
	stats := scan.footer(req, passes, time.Since(start), paused)
	if err := out.WriteFooter(stats); err != nil {
		log.Error("writing footer", "error", err)
	}
	if opts.Tree && !opts.Quiet {
		output.PrintTree(os.Stderr, t.ScanDirectory(), scan.directories())
	}

	return engine.Err()
}

// scanState holds what the engine callbacks share. Callbacks run on the
// worker goroutines, so writes to the output are serialized here.
type scanState struct {
	ctx      context.Context
	target   *target.Target
	report   *filter.Report
	out      output.Writer
	progress *output.Progress
	hook     *hook.Runner
	log      *slog.Logger

	mu       sync.Mutex
	matches  int
	filtered int
	dirs     []*scanner.Result
}

func (s *scanState) onMatch(result *scanner.Result) {
	defer s.progress.Increment()

	// Hits feed the fingerprint for the next pass.
	if result.Response != nil {
		s.target.Fingerprint.Add(crawl.ExtractExtensions(result.Response.Body, s.target.Host)...)
	}

	s.mu.Lock()
	if hide, rule := s.report.Check(result); hide {
		s.filtered++
		s.mu.Unlock()
		s.progress.IncrementFiltered()
		s.log.Debug("result filtered", "path", result.Path, "rule", rule)
		return
	}
	s.matches++
	if looksLikeDirectory(result) {
		s.dirs = append(s.dirs, result)
	}
	s.write(result)
	s.mu.Unlock()

	if s.hook != nil {
		s.hook.Run(s.ctx, result)
	}
}

// onNotFound reports suppressed results when the report lets them
// through; they never count as matches or feed hooks.
func (s *scanState) onNotFound(result *scanner.Result) {
	defer s.progress.Increment()
	s.log.Debug("suppressed", "path", result.Path, "reason", result.Reason)

	if hide, _ := s.report.Check(result); hide {
		return
	}
	s.mu.Lock()
	s.write(result)
	s.mu.Unlock()
}

// write sends result to the output. The caller holds s.mu.
func (s *scanState) write(result *scanner.Result) {
	s.progress.Clear()
	if err := s.out.WriteResult(result); err != nil {
		s.log.Error("writing result", "path", result.Path, "error", err)
	}
}

func (s *scanState) onError(path string, err error) {
	s.progress.IncrementErrors()
	s.log.Debug("request error", "path", path, "error", err)
}

// onSkip accounts for dictionary entries the engine drops without a
// request, so the bar still reaches its total.
func (s *scanState) onSkip(entry wordlist.Entry) {
	s.progress.Increment()
	s.log.Debug("entry skipped", "entry", entry.Text)
}

// requestCounter reports how many requests went over the wire.
type requestCounter interface {
	Requests() int64
}

// footer assembles the closing statistics. The request count and rate
// come from rc, which sees baseline and sibling traffic as well as
// dictionary entries; the rate excludes time spent paused.
func (s *scanState) footer(rc requestCounter, passes int, elapsed, paused time.Duration) output.Stats {
	s.mu.Lock()
	stats := output.Stats{MatchCount: s.matches, FilteredCount: s.filtered}
	s.mu.Unlock()

	stats.TotalRequests = int(rc.Requests())
	stats.ErrorCount = int(s.progress.Errors())
	stats.Passes = passes
	stats.Duration = elapsed
	stats.Paused = paused
	if active := elapsed - paused; active > 0 {
		stats.RequestsPerSec = float64(stats.TotalRequests) / active.Seconds()
	}
	return stats
}

func (s *scanState) directories() []*scanner.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.dirs)
}

// looksLikeDirectory reports whether a matched result is a directory: a
// trailing slash, or a redirect that appends one.
func looksLikeDirectory(result *scanner.Result) bool {
	if strings.HasSuffix(result.Path, "/") {
		return true
	}
	if result.Status >= 300 && result.Status < 400 {
		loc := result.Response.Redirect()
		if i := strings.IndexAny(loc, "?#"); i >= 0 {
			loc = loc[:i]
		}
		return strings.HasSuffix(loc, result.Path+"/")
	}
	return false
}

// newLists returns the entries of lists not yet in scanned.
func newLists(lists, scanned []string) []string {
	var out []string
	for _, l := range lists {
		if !slices.Contains(scanned, l) && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func newLogger(w io.Writer, opts *config.Options) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.Verbose:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}
	return logger.New(w, level)
}

func reportRules(opts *config.Options) filter.ReportRules {
	return filter.ReportRules{
		IncludeStatus:  opts.IncludeStatus,
		ExcludeStatus:  opts.ExcludeStatus,
		ExcludeSize:    opts.ExcludeSize,
		MatchBody:      opts.MatchBody,
		ExcludeBody:    opts.ExcludeBody,
		Dedupe:         opts.Dedupe,
		Threshold:      opts.NotFoundThreshold,
		ShowSuppressed: opts.ShowSuppressed,
	}
}

func createWriter(opts *config.Options) (output.Writer, error) {
	w, err := output.New(opts.OutputFormat, opts.OutputFile, opts.NoColor, opts.Quiet)
	if err != nil {
		return nil, err
	}
	if opts.SortBy != "" {
		return output.NewSortedWriter(w, opts.SortBy), nil
	}
	return w, nil
}

func printBanner(w io.Writer, opts *config.Options, t *target.Target, dict *wordlist.Dictionary, waf bool) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	val := color.New(color.FgHiWhite).SprintFunc()
	num := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n  %s %s\n", title("dirsift"), dim(version.Version))
	fmt.Fprintf(w, "%s\n", dim("  ──────────────────────────────────────"))
	fmt.Fprintf(w, "  %s       %s\n", dim("Target:"), val(opts.URL))
	fmt.Fprintf(w, "  %s         %s\n", dim("Type:"), val(t.Type))
	fmt.Fprintf(w, "  %s      %s\n", dim("Threads:"), num(opts.Threads))
	fmt.Fprintf(w, "  %s     %s (%s)\n", dim("Wordlist:"), num(dict.Len()), val(strings.Join(dict.Lists(), ", ")))
	if exts := t.Fingerprint.List(); len(exts) > 0 {
		fmt.Fprintf(w, "  %s  %s\n", dim("Fingerprint:"), val(strings.Join(exts, ", ")))
	}
	wafLabel := color.GreenString("none")
	if !opts.DetectWAF {
		wafLabel = dim("skipped")
	} else if waf {
		wafLabel = color.RedString("detected")
	}
	fmt.Fprintf(w, "  %s          %s\n", dim("WAF:"), wafLabel)
	fmt.Fprintf(w, "%s\n\n", dim("  ──────────────────────────────────────"))
}
