// Package similarity estimates how alike two response bodies are.
package similarity

import "github.com/spaolacci/murmur3"

// Default decision thresholds.
const (
	// WAFThreshold: an attack-payload response less similar than this to the clean
	// page is treated as an interception page.
	WAFThreshold = 0.6
	// NotFoundThreshold: a response more similar than this to a baseline is
	// treated as the generic not-found page.
	NotFoundThreshold = 0.7
)

// Ratio returns 2*M/T where M is the size of the byte-multiset intersection
// of a and b and T is len(a)+len(b). It is an upper bound on the longest
// matching-blocks ratio, symmetric, 1 for identical inputs (including two
// empty ones) and 0 for inputs sharing no byte.
func Ratio(a, b []byte) float64 {
	return NewReference(a).Ratio(b)
}

// Reference is a body prepared for repeated comparisons.
type Reference struct {
	body []byte
	hash uint64
	hist [256]int
}

// NewReference precomputes the byte histogram and hash of body.
func NewReference(body []byte) *Reference {
	r := &Reference{body: body, hash: murmur3.Sum64(body)}
	for _, c := range body {
		r.hist[c]++
	}
	return r
}

// Body returns the reference body.
func (r *Reference) Body() []byte { return r.body }

// Hash returns the murmur3 hash of the reference body.
func (r *Reference) Hash() uint64 { return r.hash }

// Ratio compares other against the reference.
func (r *Reference) Ratio(other []byte) float64 {
	total := len(r.body) + len(other)
	if total == 0 {
		return 1
	}
	if len(other) == len(r.body) && murmur3.Sum64(other) == r.hash {
		return 1
	}

	avail := r.hist
	matches := 0
	for _, c := range other {
		if avail[c] > 0 {
			avail[c]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

// Similar reports whether other is more similar to the reference than
// threshold.
func (r *Reference) Similar(other []byte, threshold float64) bool {
	return r.Ratio(other) > threshold
}
