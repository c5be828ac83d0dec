package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress tracks scan progress and draws a bar on stderr unless quiet.
type Progress struct {
	completed atomic.Int64
	filtered  atomic.Int64
	errors    atomic.Int64

	mu  sync.Mutex
	bar *progressbar.ProgressBar // nil when quiet
}

// NewProgress creates a progress tracker for total requests.
func NewProgress(total int, quiet bool) *Progress {
	return newProgress(os.Stderr, total, quiet)
}

func newProgress(w io.Writer, total int, quiet bool) *Progress {
	p := &Progress{}
	if quiet {
		return p
	}
	p.bar = progressbar.NewOptions64(
		int64(total),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("req"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionClearOnFinish(),
	)
	return p
}

// Start draws the empty bar.
func (p *Progress) Start() {
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.RenderBlank()
}

// Increment records a completed request.
func (p *Progress) Increment() {
	p.completed.Add(1)
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Add(1)
}

// IncrementFiltered records a match hidden by the reporting filters.
func (p *Progress) IncrementFiltered() {
	p.filtered.Add(1)
	p.describe("")
}

// IncrementErrors records a failed request.
func (p *Progress) IncrementErrors() {
	p.errors.Add(1)
	p.completed.Add(1)
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Add(1)
	p.bar.Describe(p.description(""))
}

// AddTotal extends the bar for a follow-up pass.
func (p *Progress) AddTotal(n int) {
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.ChangeMax64(p.bar.GetMax64() + int64(n))
}

// SetState shows state (e.g. "paused") in front of the counters.
func (p *Progress) SetState(state string) {
	p.describe(state)
}

// Clear erases the bar so a result line can be printed cleanly.
func (p *Progress) Clear() {
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Clear()
}

// Stop ends the progress display.
func (p *Progress) Stop() {
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

// Completed returns the number of finished requests.
func (p *Progress) Completed() int64 { return p.completed.Load() }

// Filtered returns the number of filtered matches.
func (p *Progress) Filtered() int64 { return p.filtered.Load() }

// Errors returns the number of failed requests.
func (p *Progress) Errors() int64 { return p.errors.Load() }

func (p *Progress) describe(state string) {
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Describe(p.description(state))
}

func (p *Progress) description(state string) string {
	d := fmt.Sprintf("filtered:%d errors:%d", p.filtered.Load(), p.errors.Load())
	if state != "" {
		d = "[" + state + "] " + d
	}
	return d
}
