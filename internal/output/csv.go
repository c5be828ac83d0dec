package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/maxvaer/dirsift/internal/scanner"
)

// CSVWriter writes results in CSV format.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter creates a CSV output writer.
func NewCSVWriter(outputFile string) (*CSVWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}, nil
}

func (c *CSVWriter) WriteHeader() error {
	return c.w.Write([]string{"url", "path", "status", "size", "redirect", "suppressed"})
}

func (c *CSVWriter) WriteResult(result *scanner.Result) error {
	return c.w.Write([]string{
		result.Response.URL,
		result.Path,
		strconv.Itoa(reportedStatus(result)),
		strconv.FormatInt(result.Response.Size(), 10),
		result.Response.Redirect(),
		suppression(result),
	})
}

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	c.w.Flush()
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
