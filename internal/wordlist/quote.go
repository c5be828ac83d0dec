package wordlist

import "strings"

const upperhex = "0123456789ABCDEF"

// Quote percent-encodes s. Letters, digits, "_.-~" and the characters
// ":/~?%&+-=$" are kept as is; everything else is encoded byte by byte.
func Quote(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !safe(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if safe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func safe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '~', ':', '/', '?', '%', '&', '+', '=', '$':
		return true
	}
	return false
}
