package runner

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/maxvaer/dirsift/internal/logger"
	"github.com/maxvaer/dirsift/internal/output"
	"github.com/maxvaer/dirsift/internal/scanner"
	"github.com/maxvaer/dirsift/internal/wordlist"
)

func TestLooksLikeDirectory(t *testing.T) {
	redirect := func(loc string) *scanner.Response {
		return &scanner.Response{Header: http.Header{"Location": {loc}}}
	}

	tests := []struct {
		name   string
		result *scanner.Result
		want   bool
	}{
		{
			name:   "trailing slash",
			result: &scanner.Result{Path: "/admin/", Status: 200, Response: &scanner.Response{}},
			want:   true,
		},
		{
			name:   "redirect to path with slash",
			result: &scanner.Result{Path: "/admin", Status: 301, Response: redirect("http://example.com/admin/")},
			want:   true,
		},
		{
			name:   "relative redirect with query",
			result: &scanner.Result{Path: "/app/docs", Status: 302, Response: redirect("/app/docs/?lang=en")},
			want:   true,
		},
		{
			name:   "file",
			result: &scanner.Result{Path: "/css/style.css", Status: 200, Response: &scanner.Response{}},
			want:   false,
		},
		{
			name:   "extensionless file",
			result: &scanner.Result{Path: "/api/users", Status: 200, Response: &scanner.Response{}},
			want:   false,
		},
		{
			name:   "redirect elsewhere",
			result: &scanner.Result{Path: "/old", Status: 302, Response: redirect("http://example.com/new")},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeDirectory(tt.result); got != tt.want {
				t.Errorf("looksLikeDirectory(%q) = %v, want %v", tt.result.Path, got, tt.want)
			}
		})
	}
}

func TestNewLists(t *testing.T) {
	tests := []struct {
		name    string
		lists   []string
		scanned []string
		want    []string
	}{
		{
			name:    "nothing new",
			lists:   []string{"common_dir", "fingerprint_php"},
			scanned: []string{"common_dir", "fingerprint_php"},
			want:    nil,
		},
		{
			name:    "new fingerprint list",
			lists:   []string{"common_dir", "fingerprint_php", "fingerprint_jsp"},
			scanned: []string{"common_dir", "fingerprint_php"},
			want:    []string{"fingerprint_jsp"},
		},
		{
			name:    "duplicates collapse",
			lists:   []string{"fingerprint_asp", "fingerprint_asp"},
			scanned: nil,
			want:    []string{"fingerprint_asp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newLists(tt.lists, tt.scanned)
			if !slices.Equal(got, tt.want) {
				t.Errorf("newLists = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakePauser struct {
	paused bool
	calls  []string
}

func (f *fakePauser) Pause()         { f.paused = true; f.calls = append(f.calls, "pause") }
func (f *fakePauser) Play()          { f.paused = false; f.calls = append(f.calls, "play") }
func (f *fakePauser) IsPaused() bool { return f.paused }

type fakeDisplay struct{ states []string }

func (f *fakeDisplay) SetState(s string) { f.states = append(f.states, s) }
func (f *fakeDisplay) Clear()            {}

func TestToggle(t *testing.T) {
	p := &fakePauser{}
	d := &fakeDisplay{}
	log := logger.New(io.Discard, 0)

	toggle(p, d, log)
	toggle(p, d, log)
	toggle(p, d, log)

	if want := []string{"pause", "play", "pause"}; !slices.Equal(p.calls, want) {
		t.Errorf("calls = %v, want %v", p.calls, want)
	}
	if want := []string{"paused", "", "paused"}; !slices.Equal(d.states, want) {
		t.Errorf("states = %v, want %v", d.states, want)
	}
	if !p.IsPaused() {
		t.Error("expected pauser to end paused")
	}
}

type fixedCounter int64

func (c fixedCounter) Requests() int64 { return int64(c) }

func TestScanStateAccounting(t *testing.T) {
	s := &scanState{
		progress: output.NewProgress(4, true),
		log:      logger.New(io.Discard, 0),
		matches:  1,
		filtered: 2,
	}

	s.onSkip(wordlist.Entry{Method: wordlist.ReplaceDirectory, Text: "backup.zip"})
	s.onSkip(wordlist.Entry{Method: wordlist.ReplaceDirectory, Text: "old"})
	s.onError("/x", errors.New("reset"))
	if got := s.progress.Completed(); got != 3 {
		t.Errorf("completed = %d, want 3 (skips count toward the total)", got)
	}

	// 30 requests on the wire: dictionary, baselines and siblings alike.
	stats := s.footer(fixedCounter(30), 2, 20*time.Second, 5*time.Second)
	if stats.TotalRequests != 30 {
		t.Errorf("TotalRequests = %d, want 30", stats.TotalRequests)
	}
	if stats.RequestsPerSec != 2 {
		t.Errorf("RequestsPerSec = %v, want 2 over active time", stats.RequestsPerSec)
	}
	if stats.ErrorCount != 1 || stats.MatchCount != 1 || stats.FilteredCount != 2 || stats.Passes != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
