// Package fuzzer runs the dictionary against a target with a pool of
// workers that can be paused, resumed and stopped while the scan runs.
package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/maxvaer/dirsift/internal/filter"
	"github.com/maxvaer/dirsift/internal/logger"
	"github.com/maxvaer/dirsift/internal/scanner"
	"github.com/maxvaer/dirsift/internal/target"
	"github.com/maxvaer/dirsift/internal/wordlist"
)

// ErrRunning is returned by Start while a run is in progress.
var ErrRunning = errors.New("engine is already running")

// State is the lifecycle state of an Engine.
type State int

const (
	Idle State = iota
	Running
	Paused
	Stopped
	Finished
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Finished:
		return "finished"
	default:
		return "idle"
	}
}

// Config is the engine's fixed configuration. Callbacks run synchronously
// on the worker that produced the result and must be safe for concurrent
// use.
type Config struct {
	Threads    int
	Requester  filter.Fetcher
	Dictionary *wordlist.Dictionary
	Target     *target.Target

	// WAF is the response to the attack payload, nil when no WAF was seen.
	WAF *filter.Baseline
	// NotFoundThreshold defaults to similarity.NotFoundThreshold.
	NotFoundThreshold float64

	MatchCallbacks    []func(*scanner.Result)
	NotFoundCallbacks []func(*scanner.Result)
	ErrorCallbacks    []func(path string, err error)
	// SkipCallbacks fire for entries that produce no request, such as
	// replace-directory entries on a target without a directory.
	SkipCallbacks []func(entry wordlist.Entry)

	Logger *slog.Logger
}

// Engine drives the workers. One goroutine is expected to issue Start,
// Pause, Play and Stop; the query methods are safe from anywhere.
type Engine struct {
	cfg Config
	log *slog.Logger

	classifier *filter.Classifier

	mu      sync.Mutex
	cond    *sync.Cond
	state   State
	playing bool
	live    int // workers not yet exited
	parked  int // workers blocked at the gate
	done    chan struct{}
	matches []*scanner.Result
	err     error

	pausedSince time.Time
	totalPaused time.Duration

	running atomic.Bool
}

// New returns an idle engine.
func New(cfg Config) *Engine {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	e := &Engine{cfg: cfg, log: log}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start rewinds the dictionary, measures the 404 baselines and launches
// min(Threads, dictionary size) workers. It returns once the workers are
// running; use Wait to join them. Cancelling ctx stops the run.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state == Running || e.state == Paused || e.live > 0 {
		e.mu.Unlock()
		return ErrRunning
	}
	e.mu.Unlock()

	dict := e.cfg.Dictionary
	dict.Reset()

	exts := mergeExtensions(e.cfg.Target.Fingerprint.List(), dict.Extensions())
	baselines, err := filter.Calibrate(ctx, e.cfg.Requester, e.cfg.Target.ScanDirectory(), exts)
	if err != nil {
		return err
	}
	e.classifier = filter.NewClassifier(e.cfg.Requester, baselines, e.cfg.WAF, e.cfg.NotFoundThreshold)

	n := min(e.cfg.Threads, dict.Len())

	e.mu.Lock()
	e.matches = nil
	e.err = nil
	e.totalPaused = 0
	e.done = make(chan struct{})
	if n == 0 {
		e.state = Finished
		close(e.done)
		e.mu.Unlock()
		return nil
	}
	e.state = Running
	e.playing = true
	e.live = n
	e.parked = 0
	e.running.Store(true)
	e.mu.Unlock()

	pool, err := ants.NewPool(n, ants.WithPanicHandler(func(p any) {
		e.fail(fmt.Errorf("worker panic: %v", p))
	}))
	if err != nil {
		e.abort(n)
		return fmt.Errorf("creating worker pool: %w", err)
	}

	stopOnCancel := context.AfterFunc(ctx, e.Stop)
	done := e.done
	go func() {
		<-done
		stopOnCancel()
		pool.Release()
	}()

	e.log.Debug("engine started", "workers", n, "entries", dict.Len(),
		"baselines", baselines.Extensions()+2, "waf", e.cfg.WAF != nil)

	for i := 0; i < n; i++ {
		if err := pool.Submit(func() { e.work(ctx) }); err != nil {
			e.log.Error("submitting worker", "error", err)
			e.abort(1)
		}
	}
	return nil
}

// Pause closes the gate and returns once every live worker is parked at
// it. Pausing an engine that is not running has no effect.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running {
		return
	}
	e.playing = false
	e.state = Paused
	e.pausedSince = time.Now()
	for !e.playing && e.running.Load() && e.parked < e.live {
		e.cond.Wait()
	}
}

// Play reopens the gate after Pause.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Paused {
		return
	}
	e.totalPaused += time.Since(e.pausedSince)
	e.playing = true
	e.state = Running
	e.cond.Broadcast()
}

// Stop asks every worker to exit at its next checkpoint. It does not wait.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running.Store(false)
	if e.state == Paused {
		e.totalPaused += time.Since(e.pausedSince)
	}
	if e.state == Running || e.state == Paused {
		e.state = Stopped
	}
	e.playing = true
	e.cond.Broadcast()
}

// Wait blocks until every worker has exited or timeout elapses, and
// reports whether the workers joined. A timeout <= 0 waits indefinitely.
func (e *Engine) Wait(timeout time.Duration) bool {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return true
	}
	if timeout <= 0 {
		<-done
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// IsPaused reports whether the gate is closed.
func (e *Engine) IsPaused() bool {
	return e.State() == Paused
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Matches returns the results found so far in this run.
func (e *Engine) Matches() []*scanner.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*scanner.Result(nil), e.matches...)
}

// Err returns the error that aborted the run, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// PausedDuration returns the time spent paused in this run, including any
// ongoing pause.
func (e *Engine) PausedDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.totalPaused
	if e.state == Paused {
		d += time.Since(e.pausedSince)
	}
	return d
}

func (e *Engine) work(ctx context.Context) {
	defer e.exit()
	for e.checkpoint(ctx) {
		entry, _, ok := e.cfg.Dictionary.Next()
		if !ok {
			return
		}
		path, ok := e.buildPath(entry)
		if !ok {
			for _, cb := range e.cfg.SkipCallbacks {
				cb(entry)
			}
			continue
		}
		e.check(ctx, path)
	}
}

// checkpoint parks the worker while the gate is closed and reports whether
// it should continue.
func (e *Engine) checkpoint(ctx context.Context) bool {
	e.mu.Lock()
	for !e.playing && e.running.Load() {
		e.parked++
		e.cond.Broadcast()
		e.cond.Wait()
		e.parked--
	}
	e.mu.Unlock()
	return e.running.Load() && ctx.Err() == nil
}

func (e *Engine) exit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.live--
	e.cond.Broadcast()
	if e.live == 0 {
		e.running.Store(false)
		e.state = Finished
		close(e.done)
	}
}

// abort accounts for n workers that will never run.
func (e *Engine) abort(n int) {
	for range n {
		e.exit()
	}
}

// fail records the first fatal error and stops the run.
func (e *Engine) fail(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
	e.log.Error("scan aborted", "error", err)
	e.Stop()
}

func (e *Engine) buildPath(entry wordlist.Entry) (string, bool) {
	t := e.cfg.Target
	text := strings.TrimPrefix(entry.Text, "/")
	if entry.Method == wordlist.ReplaceDirectory {
		if t.Directory == "" {
			return "", false
		}
		return t.BasePath + text, true
	}
	return t.ScanDirectory() + text, true
}

func (e *Engine) check(ctx context.Context, path string) {
	resp, err := e.cfg.Requester.Request(ctx, path, scanner.RequestOptions{})
	if err != nil {
		if ctx.Err() == nil {
			e.reportError(path, err)
		}
		return
	}

	res, err := e.classifier.Classify(ctx, path, resp)
	if err != nil {
		switch {
		case errors.Is(err, filter.ErrDegeneratePermutation):
			e.fail(err)
		case ctx.Err() == nil:
			e.reportError(path, err)
		}
		return
	}

	if !res.Matched() {
		for _, cb := range e.cfg.NotFoundCallbacks {
			cb(res)
		}
		return
	}
	e.mu.Lock()
	e.matches = append(e.matches, res)
	e.mu.Unlock()
	for _, cb := range e.cfg.MatchCallbacks {
		cb(res)
	}
}

func (e *Engine) reportError(path string, err error) {
	e.log.Debug("request failed", "path", path, "error", err)
	for _, cb := range e.cfg.ErrorCallbacks {
		cb(path, err)
	}
}

func mergeExtensions(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, ext := range l {
			ext = strings.ToLower(ext)
			if _, ok := seen[ext]; ok {
				continue
			}
			seen[ext] = struct{}{}
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}
