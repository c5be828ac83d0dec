package filter

import (
	"errors"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/maxvaer/dirsift/internal/wordlist"
)

// ErrDegeneratePermutation is returned when no permutation differing from
// the input could be found. It aborts the scan.
var ErrDegeneratePermutation = errors.New("could not build a distinct permutation")

const (
	maxPermuteAttempts = 100
	fillerLength       = 8
	randomAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Permute returns a string of the same length as s that differs from it.
// A string made of one repeated character becomes a random string without
// that character; anything else is shuffled.
func Permute(s string) (string, error) {
	runes := []rune(s)

	distinct := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		distinct[r] = struct{}{}
	}
	if len(distinct) == 1 {
		return randomString(len(runes), runes[0]), nil
	}

	for range maxPermuteAttempts {
		out := make([]rune, len(runes))
		copy(out, runes)
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		if p := string(out); p != s {
			return p, nil
		}
	}
	return "", ErrDegeneratePermutation
}

// SiblingPaths derives paths that share the shape of path but should not
// exist: its trailing segment with the characters permuted. A name.ext
// segment yields two siblings, one per component.
func SiblingPaths(path string) ([]string, error) {
	if strings.HasSuffix(path, "/") {
		prefix, dir := splitLast(strings.TrimSuffix(path, "/"))
		p, err := Permute(unquote(dir))
		if err != nil {
			return nil, err
		}
		return []string{prefix + wordlist.Quote(p) + "/"}, nil
	}

	prefix, seg := splitLast(path)
	seg = unquote(seg)
	i := strings.LastIndex(seg, ".")
	if i < 0 {
		p, err := Permute(seg)
		if err != nil {
			return nil, err
		}
		return []string{prefix + wordlist.Quote(p)}, nil
	}

	name, ext := seg[:i], seg[i+1:]
	if name == "" {
		name = randomString(fillerLength, 0)
	}
	if ext == "" {
		ext = randomString(fillerLength, 0)
	}
	pname, err := Permute(name)
	if err != nil {
		return nil, err
	}
	pext, err := Permute(ext)
	if err != nil {
		return nil, err
	}
	return []string{
		prefix + wordlist.Quote(pname+"."+ext),
		prefix + wordlist.Quote(name+"."+pext),
	}, nil
}

// splitLast splits path after its last "/".
func splitLast(path string) (prefix, seg string) {
	i := strings.LastIndex(path, "/")
	return path[:i+1], path[i+1:]
}

func unquote(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

// randomString returns n characters from randomAlphabet, never exclude.
func randomString(n int, exclude rune) string {
	var sb strings.Builder
	for sb.Len() < n {
		c := rune(randomAlphabet[rand.IntN(len(randomAlphabet))])
		if c != exclude {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}
