package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/maxvaer/dirsift/internal/scanner"
	"github.com/maxvaer/dirsift/internal/similarity"
)

// Fetcher fetches a path, absolute from the web root, from the target.
type Fetcher interface {
	Request(ctx context.Context, path string, opts scanner.RequestOptions) (*scanner.Response, error)
}

// Baseline is the response to a path that should not exist, kept for
// similarity comparisons.
type Baseline struct {
	Path     string
	Response *scanner.Response
	ref      *similarity.Reference
}

func newBaseline(path string, resp *scanner.Response) *Baseline {
	return &Baseline{Path: path, Response: resp, ref: similarity.NewReference(resp.Body)}
}

// Similar reports whether body resembles the baseline beyond threshold.
func (b *Baseline) Similar(body []byte, threshold float64) bool {
	if b == nil {
		return false
	}
	return b.ref.Similar(body, threshold)
}

// Baselines holds one 404 baseline per request category: each known
// extension, trailing slash, and no suffix.
type Baselines struct {
	byExt map[string]*Baseline
	slash *Baseline
	def   *Baseline
}

// Calibrate requests a presumed-absent path under dir for every extension,
// plus one with a trailing slash and one without a suffix. dir must start
// and end with "/".
func Calibrate(ctx context.Context, p Fetcher, dir string, exts []string) (*Baselines, error) {
	b := &Baselines{byExt: make(map[string]*Baseline, len(exts))}

	fetch := func(path string) (*Baseline, error) {
		resp, err := p.Request(ctx, path, scanner.RequestOptions{})
		if err != nil {
			return nil, fmt.Errorf("calibrating with %s: %w", path, err)
		}
		return newBaseline(path, resp), nil
	}

	var err error
	if b.def, err = fetch(dir + randomName()); err != nil {
		return nil, err
	}
	if b.slash, err = fetch(dir + randomName() + "/"); err != nil {
		return nil, err
	}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext == "" || b.byExt[ext] != nil {
			continue
		}
		if b.byExt[ext], err = fetch(dir + randomName() + "." + ext); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// For selects the baseline for path: trailing slash, then the extension of
// the last segment, then the default.
func (b *Baselines) For(path string) *Baseline {
	if strings.HasSuffix(path, "/") {
		return b.slash
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	seg := path[strings.LastIndex(path, "/")+1:]
	if i := strings.LastIndex(seg, "."); i >= 0 {
		if bl, ok := b.byExt[strings.ToLower(seg[i+1:])]; ok {
			return bl
		}
	}
	return b.def
}

// Extensions returns the number of extension baselines.
func (b *Baselines) Extensions() int { return len(b.byExt) }

// randomName returns a path segment that is extremely unlikely to exist on
// any real server.
func randomName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
