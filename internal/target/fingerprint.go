package target

import (
	"sort"
	"strings"
	"sync"
)

// Fingerprint is the grow-only set of file extensions observed on a target.
// It is safe for concurrent use.
type Fingerprint struct {
	mu   sync.RWMutex
	exts map[string]struct{}
}

// NewFingerprint returns a fingerprint seeded with the given extensions.
func NewFingerprint(exts ...string) *Fingerprint {
	f := &Fingerprint{exts: make(map[string]struct{})}
	f.Add(exts...)
	return f
}

// Add records extensions and returns how many were not already present.
// Leading dots are stripped and values are lowercased.
func (f *Fingerprint) Add(exts ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := 0
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := f.exts[ext]; !ok {
			f.exts[ext] = struct{}{}
			added++
		}
	}
	return added
}

// Has reports whether ext was observed.
func (f *Fingerprint) Has(ext string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.exts[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// List returns the observed extensions in sorted order.
func (f *Fingerprint) List() []string {
	f.mu.RLock()
	out := make([]string, 0, len(f.exts))
	for ext := range f.exts {
		out = append(out, ext)
	}
	f.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of observed extensions.
func (f *Fingerprint) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.exts)
}
