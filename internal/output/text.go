package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/maxvaer/dirsift/internal/scanner"
)

// TextWriter writes colored text output to a writer.
type TextWriter struct {
	w      io.Writer
	closer io.Closer
	quiet  bool

	dim    *color.Color
	status map[int]*color.Color // keyed by status class
}

// NewTextWriter creates a text output writer. If outputFile is empty, stdout
// is used. Output to a file is never colored.
func NewTextWriter(outputFile string, noColor, quiet bool) (*TextWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	t := newTextWriter(w, noColor || outputFile != "", quiet)
	t.closer = closer
	return t, nil
}

func newTextWriter(w io.Writer, noColor, quiet bool) *TextWriter {
	t := &TextWriter{
		w:     w,
		quiet: quiet,
		dim:   color.New(color.Faint),
		status: map[int]*color.Color{
			2: color.New(color.FgGreen),
			3: color.New(color.FgCyan),
			4: color.New(color.FgYellow),
			5: color.New(color.FgRed),
		},
	}
	if noColor {
		t.dim.DisableColor()
		for _, c := range t.status {
			c.DisableColor()
		}
	}
	return t
}

func (t *TextWriter) WriteHeader() error {
	if t.quiet {
		return nil
	}
	_, err := t.dim.Fprintln(t.w, "Code      Size  URL")
	return err
}

func (t *TextWriter) WriteResult(result *scanner.Result) error {
	status := reportedStatus(result)
	code := fmt.Sprintf("%3d", status)
	reason := suppression(result)
	if reason != "" {
		code = t.dim.Sprint(code)
	} else if c, ok := t.status[status/100]; ok {
		code = c.Sprint(code)
	}

	suffix := ""
	if loc := result.Response.Redirect(); loc != "" {
		suffix = fmt.Sprintf(" -> %s", loc)
	}
	if reason != "" {
		suffix += t.dim.Sprintf("  (suppressed: %s)", reason)
	}

	_, err := fmt.Fprintf(t.w, "%s  %8d  %s%s\n",
		code,
		result.Response.Size(),
		result.Response.URL,
		suffix,
	)
	return err
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	if t.quiet {
		return nil
	}
	_, err := fmt.Fprintf(os.Stderr,
		"\nCompleted: %d requests | Found: %d | Filtered: %d | Errors: %d | Passes: %d | Duration: %s | %.1f req/s\n",
		stats.TotalRequests,
		stats.MatchCount,
		stats.FilteredCount,
		stats.ErrorCount,
		stats.Passes,
		stats.Duration.Round(time.Millisecond),
		stats.RequestsPerSec,
	)
	return err
}

func (t *TextWriter) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
