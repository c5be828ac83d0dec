package crawl

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
)

// techExtensions maps technologies reported by wappalyzer to the file
// extension their pages usually carry.
var techExtensions = map[string]string{
	"PHP":               "php",
	"WordPress":         "php",
	"Drupal":            "php",
	"Joomla":            "php",
	"Laravel":           "php",
	"ThinkPHP":          "php",
	"Microsoft ASP.NET": "aspx",
	"IIS":               "asp",
	"Java":              "jsp",
	"Apache Tomcat":     "jsp",
	"JBoss Web":         "jsp",
	"Jetty":             "jsp",
	"Apache Struts":     "action",
	"Perl":              "pl",
	"Python":            "py",
	"Django":            "py",
	"Flask":             "py",
	"Ruby":              "rb",
	"Ruby on Rails":     "rb",
}

// TechDetector derives extensions from the technologies a response reveals.
// The wappalyzer database is loaded on first use.
type TechDetector struct {
	once   sync.Once
	client *wappalyzer.Wappalyze
	err    error
}

// NewTechDetector returns a detector with a lazily loaded database.
func NewTechDetector() *TechDetector {
	return &TechDetector{}
}

func (d *TechDetector) load() error {
	d.once.Do(func() {
		d.client, d.err = wappalyzer.New()
		if d.err != nil {
			d.err = fmt.Errorf("loading wappalyzer fingerprints: %w", d.err)
		}
	})
	return d.err
}

// Extensions returns the sorted extensions implied by the technologies
// detected in header and body.
func (d *TechDetector) Extensions(header http.Header, body []byte) ([]string, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	techs := d.client.Fingerprint(map[string][]string(header), body)

	names := make([]string, 0, len(techs))
	for tech := range techs {
		names = append(names, tech)
	}
	return ExtensionsForTechnologies(names), nil
}

// ExtensionsForTechnologies maps wappalyzer technology names (optionally
// suffixed with ":version") to extensions.
func ExtensionsForTechnologies(names []string) []string {
	seen := make(map[string]struct{})
	var exts []string
	for _, name := range names {
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		ext, ok := techExtensions[name]
		if !ok {
			continue
		}
		if _, dup := seen[ext]; !dup {
			seen[ext] = struct{}{}
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
