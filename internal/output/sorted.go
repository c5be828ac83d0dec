package output

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/maxvaer/dirsift/internal/scanner"
)

// orderings are the supported sort keys. Ties fall back to the path.
var orderings = map[string]func(a, b *scanner.Result) int{
	"status": func(a, b *scanner.Result) int {
		// suppressed results come after every match
		if c := cmp.Compare(boolRank(!a.Matched()), boolRank(!b.Matched())); c != 0 {
			return c
		}
		return cmp.Compare(reportedStatus(a), reportedStatus(b))
	},
	"size": func(a, b *scanner.Result) int {
		return cmp.Compare(a.Response.Size(), b.Response.Size())
	},
	"path": func(a, b *scanner.Result) int { return 0 },
}

// SortKeys lists the keys NewSortedWriter accepts.
func SortKeys() []string {
	return slices.Sorted(maps.Keys(orderings))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SortedWriter holds every result until the footer, then hands them to
// the wrapped writer in order.
type SortedWriter struct {
	Writer
	order   func(a, b *scanner.Result) int
	pending []*scanner.Result
}

// NewSortedWriter wraps inner. Unknown keys sort by path.
func NewSortedWriter(inner Writer, key string) *SortedWriter {
	order, ok := orderings[key]
	if !ok {
		order = orderings["path"]
	}
	return &SortedWriter{
		Writer: inner,
		order: func(a, b *scanner.Result) int {
			if c := order(a, b); c != 0 {
				return c
			}
			return strings.Compare(a.Path, b.Path)
		},
	}
}

// WriteResult keeps a copy of result until the footer.
func (w *SortedWriter) WriteResult(result *scanner.Result) error {
	held := *result
	w.pending = append(w.pending, &held)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	slices.SortStableFunc(w.pending, w.order)
	for _, r := range w.pending {
		if err := w.Writer.WriteResult(r); err != nil {
			return err
		}
	}
	w.pending = nil
	return w.Writer.WriteFooter(stats)
}
