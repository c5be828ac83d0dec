package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maxvaer/dirsift/internal/scanner"
)

// Stats holds aggregate scan statistics.
type Stats struct {
	TotalRequests  int
	MatchCount     int
	FilteredCount  int
	ErrorCount     int
	Passes         int
	Duration       time.Duration
	Paused         time.Duration
	RequestsPerSec float64
}

// Writer is implemented by each output format. Calls are not synchronized;
// the caller serializes them.
type Writer interface {
	WriteHeader() error
	WriteResult(result *scanner.Result) error
	WriteFooter(stats Stats) error
	Close() error
}

// New returns the writer for format ("text", "json" or "csv"), writing to
// outputFile or stdout when it is empty.
func New(format, outputFile string, noColor, quiet bool) (Writer, error) {
	switch format {
	case "", "text":
		return NewTextWriter(outputFile, noColor, quiet)
	case "json":
		return NewJSONWriter(outputFile)
	case "csv":
		return NewCSVWriter(outputFile)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// openOutput returns stdout or the created file, and the closer to release.
func openOutput(outputFile string) (io.Writer, io.Closer, error) {
	if outputFile == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// reportedStatus is the status written for result: the match status, or
// the status the server sent when the classifier suppressed it.
func reportedStatus(result *scanner.Result) int {
	if result.Matched() || result.Response == nil {
		return result.Status
	}
	return result.Response.Status
}

// suppression returns why the classifier suppressed result, or "" for a
// match.
func suppression(result *scanner.Result) string {
	if result.Matched() {
		return ""
	}
	return result.Reason
}
