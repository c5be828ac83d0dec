package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/maxvaer/dirsift/internal/logger"
	"github.com/maxvaer/dirsift/internal/scanner"
)

// resultJSON is the JSON payload sent to the hook command via stdin.
type resultJSON struct {
	URL         string `json:"url"`
	Path        string `json:"path"`
	StatusCode  int    `json:"status"`
	Size        int64  `json:"size"`
	RedirectURL string `json:"redirect,omitempty"`
	WordCount   int    `json:"words"`
	LineCount   int    `json:"lines"`
}

// Runner executes a shell command for each reported match.
type Runner struct {
	cmd     string
	timeout time.Duration
	log     *slog.Logger
}

// NewRunner creates a hook runner. cmd is the shell command to execute.
func NewRunner(cmd string, log *slog.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{cmd: cmd, timeout: 30 * time.Second, log: log}
}

// Run executes the hook command with the result as JSON on stdin.
// Errors are logged but do not halt the scan.
func (r *Runner) Run(ctx context.Context, result *scanner.Result) {
	resp := result.Response
	payload := resultJSON{
		URL:         resp.URL,
		Path:        result.Path,
		StatusCode:  result.Status,
		Size:        resp.Size(),
		RedirectURL: resp.Redirect(),
		WordCount:   resp.WordCount(),
		LineCount:   resp.LineCount(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error("hook payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Replace {url}, {status}, {path}, {size} placeholders in the command.
	expanded := strings.NewReplacer(
		"{url}", payload.URL,
		"{path}", payload.Path,
		"{status}", strconv.Itoa(payload.StatusCode),
		"{size}", strconv.FormatInt(payload.Size, 10),
	).Replace(r.cmd)

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, expanded)...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		r.log.Warn("hook failed", "path", result.Path, "error", err)
		return
	}
	if out := strings.TrimSpace(string(output)); out != "" {
		r.log.Info("hook", "path", result.Path, "output", out)
	}
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
