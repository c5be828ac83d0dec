package filter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maxvaer/dirsift/internal/scanner"
	"github.com/maxvaer/dirsift/internal/similarity"
)

// Classifier decides whether a response to a candidate path is a real find.
type Classifier struct {
	fetcher   Fetcher
	baselines *Baselines
	waf       *Baseline
	threshold float64
}

// NewClassifier returns a classifier comparing against baselines and, when
// non-nil, the WAF baseline. threshold is the similarity above which a
// response is treated as not found.
func NewClassifier(p Fetcher, baselines *Baselines, waf *Baseline, threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = similarity.NotFoundThreshold
	}
	return &Classifier{fetcher: p, baselines: baselines, waf: waf, threshold: threshold}
}

// Classify builds the result for path. The result is a match only when the
// response survives the 404 baseline, the WAF baseline and every sibling
// path. Errors fetching siblings are returned as is; ErrDegeneratePermutation
// is fatal to the scan.
func (c *Classifier) Classify(ctx context.Context, path string, resp *scanner.Response) (*scanner.Result, error) {
	res := &scanner.Result{Path: path, Response: resp}

	if resp.Status == http.StatusNotFound {
		res.Reason = "not found"
		return res, nil
	}
	if bl := c.baselines.For(path); bl.Similar(resp.Body, c.threshold) {
		res.Reason = "matches 404 baseline " + bl.Path
		return res, nil
	}
	if c.waf.Similar(resp.Body, c.threshold) {
		res.Reason = "matches WAF response"
		return res, nil
	}

	siblings, err := SiblingPaths(path)
	if err != nil {
		return nil, fmt.Errorf("building siblings of %s: %w", path, err)
	}
	ref := similarity.NewReference(resp.Body)
	for _, sib := range siblings {
		sresp, err := c.fetcher.Request(ctx, sib, scanner.RequestOptions{})
		if err != nil {
			return nil, err
		}
		if ref.Similar(sresp.Body, c.threshold) {
			res.Reason = "matches sibling " + sib
			return res, nil
		}
	}

	res.Status = resp.Status
	return res, nil
}
