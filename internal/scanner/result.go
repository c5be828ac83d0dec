package scanner

import (
	"net/http"
	"strings"
	"time"
)

// Response is a snapshot of an HTTP response.
type Response struct {
	Status   int
	Reason   string      // reason phrase, e.g. "Not Found"
	Header   http.Header // Get is case-insensitive
	Body     []byte
	URL      string
	Duration time.Duration
}

// Redirect returns the Location header, if any.
func (r *Response) Redirect() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Location")
}

// Size returns the body length.
func (r *Response) Size() int64 {
	if r == nil {
		return 0
	}
	return int64(len(r.Body))
}

// WordCount returns the number of whitespace-separated words in the body.
func (r *Response) WordCount() int {
	if r == nil {
		return 0
	}
	return len(strings.Fields(string(r.Body)))
}

// LineCount returns the number of lines in the body.
func (r *Response) LineCount() int {
	if r == nil || len(r.Body) == 0 {
		return 0
	}
	return strings.Count(string(r.Body), "\n") + 1
}

// Result is the outcome of requesting one path.
type Result struct {
	Path     string
	Status   int    // 0 when the path is not a match
	Reason   string // why a 2xx/3xx response was suppressed
	Response *Response
}

// Matched reports whether the path was found.
func (r *Result) Matched() bool {
	return r.Status != 0
}
