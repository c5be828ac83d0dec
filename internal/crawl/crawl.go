// Package crawl harvests file extensions from fetched pages. It never
// follows links; it only reads them.
package crawl

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// linkAttrs are the attributes read from each tag.
var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"script": "src",
	"form":   "action",
	"iframe": "src",
}

// ExtractExtensions parses an HTML body and returns the de-duplicated file
// extensions of same-origin links, in order of first appearance. host is the
// target hostname; absolute links to any other host than it or one of its
// subdomains are skipped.
func ExtractExtensions(body []byte, host string) []string {
	seen := make(map[string]struct{})
	var exts []string

	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return exts
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		want, ok := linkAttrs[string(name)]
		if !ok || !hasAttr {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if string(key) == want {
				if ext := linkExtension(string(val), host); ext != "" {
					if _, dup := seen[ext]; !dup {
						seen[ext] = struct{}{}
						exts = append(exts, ext)
					}
				}
			}
			if !more {
				break
			}
		}
	}
}

func linkExtension(raw, host string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
	default:
		return ""
	}
	if u.Host != "" && !sameSite(u.Hostname(), host) {
		return ""
	}

	ext := path.Ext(path.Base(u.Path))
	if ext == "" || ext == "." {
		return ""
	}
	ext = strings.ToLower(ext[1:])
	for _, c := range ext {
		if !('a' <= c && c <= 'z' || '0' <= c && c <= '9') {
			return ""
		}
	}
	return ext
}

// sameSite reports whether h is host or one of its subdomains.
func sameSite(h, host string) bool {
	h = strings.ToLower(strings.TrimSuffix(h, "."))
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return h == host || strings.HasSuffix(h, "."+host)
}
