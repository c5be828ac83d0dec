package filter

import (
	"bytes"
	"net/http"
	"slices"
	"sync"

	"github.com/maxvaer/dirsift/internal/scanner"
	"github.com/maxvaer/dirsift/internal/similarity"
)

// maxClusters caps the look-alike groups remembered per status code. Past
// it, unseen shapes are shown without being remembered.
const maxClusters = 64

// ReportRules are the user's reporting preferences. They run after the
// classifier and only decide what reaches the output.
type ReportRules struct {
	IncludeStatus []int
	ExcludeStatus []int
	ExcludeSize   []int
	MatchBody     string
	ExcludeBody   string

	// Dedupe hides a match once Dedupe earlier matches with the same status
	// looked alike. Zero disables it.
	Dedupe int
	// Threshold is the similarity above which two matches look alike.
	// Defaults to similarity.NotFoundThreshold.
	Threshold float64

	// ShowSuppressed lets responses the classifier suppressed as a soft 404,
	// a WAF page or a sibling look-alike through, so they can be reported
	// with their reason. Plain 404s are never shown.
	ShowSuppressed bool
}

// cluster is a group of matches whose bodies look alike.
type cluster struct {
	ref  *similarity.Reference
	seen int
}

// Report applies ReportRules to classified results. It is safe for
// concurrent use.
type Report struct {
	rules   ReportRules
	match   []byte
	exclude []byte

	mu       sync.Mutex
	clusters map[int][]*cluster
}

// NewReport returns a Report for rules.
func NewReport(rules ReportRules) *Report {
	if rules.Threshold <= 0 {
		rules.Threshold = similarity.NotFoundThreshold
	}
	r := &Report{rules: rules, clusters: make(map[int][]*cluster)}
	if rules.MatchBody != "" {
		r.match = []byte(rules.MatchBody)
	}
	if rules.ExcludeBody != "" {
		r.exclude = []byte(rules.ExcludeBody)
	}
	return r
}

// Check reports whether result should be hidden and, if so, the rule that
// hid it. Suppressed results are judged on the status the server sent.
func (r *Report) Check(result *scanner.Result) (hide bool, rule string) {
	resp := result.Response
	if !result.Matched() {
		if !r.rules.ShowSuppressed || resp == nil || resp.Status == http.StatusNotFound {
			return true, "not-found"
		}
	}

	status := resp.Status
	switch {
	case len(r.rules.IncludeStatus) > 0 && !slices.Contains(r.rules.IncludeStatus, status):
		return true, "status"
	case slices.Contains(r.rules.ExcludeStatus, status):
		return true, "status"
	case slices.Contains(r.rules.ExcludeSize, int(resp.Size())):
		return true, "size"
	case r.match != nil && !bytes.Contains(resp.Body, r.match):
		return true, "body-match"
	case r.exclude != nil && bytes.Contains(resp.Body, r.exclude):
		return true, "body-exclude"
	}

	if r.rules.Dedupe > 0 && result.Matched() && r.repeated(status, resp.Body) {
		return true, "duplicate"
	}
	return false, ""
}

// repeated records body under status and reports whether more than Dedupe
// look-alikes of it have been seen. Catch-all routes that echo the
// requested path still land in one cluster.
func (r *Report) repeated(status int, body []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clusters[status] {
		if c.ref.Similar(body, r.rules.Threshold) {
			c.seen++
			return c.seen > r.rules.Dedupe
		}
	}
	if len(r.clusters[status]) < maxClusters {
		r.clusters[status] = append(r.clusters[status], &cluster{ref: similarity.NewReference(body), seen: 1})
	}
	return false
}
