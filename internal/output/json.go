package output

import (
	"encoding/json"
	"io"

	"github.com/maxvaer/dirsift/internal/scanner"
)

type jsonEntry struct {
	URL         string `json:"url"`
	Path        string `json:"path"`
	StatusCode  int    `json:"status"`
	Size        int64  `json:"size"`
	Words       int    `json:"words"`
	Lines       int    `json:"lines"`
	RedirectURL string `json:"redirect,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	Suppressed  string `json:"suppressed,omitempty"`
}

// JSONWriter writes results as a JSON array.
type JSONWriter struct {
	w       io.Writer
	closer  io.Closer
	entries []jsonEntry
}

// NewJSONWriter creates a JSON output writer.
func NewJSONWriter(outputFile string) (*JSONWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{w: w, closer: closer}, nil
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(result *scanner.Result) error {
	resp := result.Response
	j.entries = append(j.entries, jsonEntry{
		URL:         resp.URL,
		Path:        result.Path,
		StatusCode:  reportedStatus(result),
		Size:        resp.Size(),
		Words:       resp.WordCount(),
		Lines:       resp.LineCount(),
		RedirectURL: resp.Redirect(),
		DurationMS:  resp.Duration.Milliseconds(),
		Suppressed:  suppression(result),
	})
	return nil
}

func (j *JSONWriter) WriteFooter(stats Stats) error {
	entries := j.entries
	if entries == nil {
		entries = []jsonEntry{}
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
