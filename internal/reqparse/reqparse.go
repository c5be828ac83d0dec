// Package reqparse reads a captured raw HTTP request (a proxy export) and
// turns it into scan options.
package reqparse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/maxvaer/dirsift/internal/config"
)

// ErrNoHost is returned when the request carries no Host header and its
// request line is not an absolute URL.
var ErrNoHost = errors.New("request file missing Host header")

// Request is the part of a captured request that shapes a scan.
type Request struct {
	Method  string
	URL     string // scheme, host and path; the path picks the wordlists
	Headers map[string]string
}

// skipped headers describe the captured transfer, not the client.
var skipped = map[string]struct{}{
	"host":              {},
	"content-length":    {},
	"accept-encoding":   {},
	"connection":        {},
	"transfer-encoding": {},
}

// ParseFile parses the request stored at path.
func ParseFile(path string) (*Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening request file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a request line and headers from r. The body is ignored.
func Parse(r io.Reader) (*Request, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024) // large cookies

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading request file: %w", err)
		}
		return nil, errors.New("request file is empty")
	}
	line := strings.TrimSpace(sc.Text())
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid request line: %q", line)
	}
	req := &Request{Method: strings.ToUpper(parts[0]), Headers: make(map[string]string)}
	target := parts[1]
	proto := ""
	if len(parts) > 2 {
		proto = strings.ToUpper(parts[2])
	}

	var host string
	for sc.Scan() {
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			break
		}
		key, value, ok := strings.Cut(text, ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "Host") {
			host = value
		}
		if _, skip := skipped[strings.ToLower(key)]; skip {
			continue
		}
		req.Headers[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}

	// Some proxies log the absolute URL on the request line.
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid URL in request line: %w", err)
		}
		req.URL = u.Scheme + "://" + u.Host + pathOf(u)
		return req, nil
	}

	if host == "" {
		return nil, ErrNoHost
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid request target %q: %w", target, err)
	}
	req.URL = scheme(host, proto) + "://" + host + pathOf(u)
	return req, nil
}

// Apply copies the request into opts. Values already set in opts win, so
// explicit flags override the file.
func (r *Request) Apply(opts *config.Options) {
	if opts.URL == "" {
		opts.URL = r.URL
	}
	if opts.Method == "" && isScanMethod(r.Method) {
		opts.Method = r.Method
	}
	if opts.Headers == nil {
		opts.Headers = make(map[string]string, len(r.Headers))
	}
	for key, val := range r.Headers {
		switch strings.ToLower(key) {
		case "cookie":
			if opts.Cookie == "" {
				opts.Cookie = val
			}
			continue
		case "user-agent":
			if opts.UserAgent == "" {
				opts.UserAgent = val
			}
			continue
		}
		if _, exists := opts.Headers[key]; !exists {
			opts.Headers[key] = val
		}
	}
}

// scheme guesses the scheme of a captured request. Exports rarely record
// it; plain HTTP is assumed only for an explicit port 80.
func scheme(host, proto string) string {
	if strings.HasPrefix(proto, "HTTP/1") && strings.HasSuffix(host, ":80") {
		return "http"
	}
	return "https"
}

func pathOf(u *url.URL) string {
	if u.EscapedPath() == "" {
		return "/"
	}
	return u.EscapedPath()
}

func isScanMethod(m string) bool {
	switch m {
	case "GET", "HEAD", "POST":
		return true
	}
	return false
}
