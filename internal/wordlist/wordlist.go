// Package wordlist builds the scan dictionary from a wordlist database and
// hands its entries out to concurrent workers.
package wordlist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder tokens recognised in wordlist lines.
const (
	FilenameToken  = "[Filename]"
	ExtensionToken = "[Extension]"
	DirectoryToken = "[Directory Name]"
)

// DealMethod says how an entry combines with the target's directory.
type DealMethod int

const (
	// ExtendDirectory appends the entry beneath the target's directory.
	ExtendDirectory DealMethod = iota
	// ReplaceDirectory substitutes the entry for the whole directory segment.
	ReplaceDirectory
)

func (m DealMethod) String() string {
	if m == ReplaceDirectory {
		return "replace-directory"
	}
	return "extend-directory"
}

// Entry is one dictionary candidate.
type Entry struct {
	Method DealMethod
	Text   string
}

// Placeholders holds the target values substituted into token lines.
// Empty fields are unknown.
type Placeholders struct {
	Filename  string
	Directory string
	Extension string
}

// Options controls dictionary generation.
type Options struct {
	Lists        []string // list names, read as <name>.txt
	Placeholders Placeholders
	Extensions   []string
	Lowercase    bool
}

// Dictionary is an ordered, duplicate-free sequence of entries with a
// shared cursor.
type Dictionary struct {
	fsys fs.FS

	mu      sync.Mutex
	opts    Options
	entries []Entry
	index   int
}

// New reads the selected lists from fsys and generates the dictionary.
func New(fsys fs.FS, opts Options) (*Dictionary, error) {
	opts.Lists = append([]string(nil), opts.Lists...)
	opts.Extensions = normalizeExtensions(opts.Extensions)
	d := &Dictionary{fsys: fsys, opts: opts}
	if err := d.Regenerate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Regenerate rebuilds the entries from the current lists and resets the
// cursor.
func (d *Dictionary) Regenerate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := generate(d.fsys, d.opts)
	if err != nil {
		return err
	}
	d.entries = entries
	d.index = 0
	return nil
}

// SetLists replaces the selected lists. It takes effect on the next
// Regenerate.
func (d *Dictionary) SetLists(lists []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Lists = append([]string(nil), lists...)
}

// Lists returns the selected list names.
func (d *Dictionary) Lists() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opts.Lists...)
}

// Next returns the entry under the cursor and its index, then advances.
// ok is false once the dictionary is exhausted; it stays false until Reset.
func (d *Dictionary) Next() (e Entry, index int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.index >= len(d.entries) {
		return Entry{}, d.index, false
	}
	e, index = d.entries[d.index], d.index
	d.index++
	return e, index, true
}

// Reset rewinds the cursor to the first entry.
func (d *Dictionary) Reset() {
	d.mu.Lock()
	d.index = 0
	d.mu.Unlock()
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Entries returns a copy of the entries in order.
func (d *Dictionary) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Entry(nil), d.entries...)
}

// Extensions returns the configured extensions without leading dots.
func (d *Dictionary) Extensions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opts.Extensions...)
}

// Lowercase reports whether entries are case-folded.
func (d *Dictionary) Lowercase() bool {
	return d.opts.Lowercase
}

func generate(fsys fs.FS, opts Options) ([]Entry, error) {
	var lower cases.Caser
	if opts.Lowercase {
		lower = cases.Lower(language.Und)
	}

	seen := make(map[Entry]struct{})
	var entries []Entry
	for _, name := range opts.Lists {
		data, err := fs.ReadFile(fsys, name+".txt")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && IsFingerprintList(name) {
				continue
			}
			return nil, fmt.Errorf("reading wordlist %s: %w", name, err)
		}

		method := ExtendDirectory
		if name == LogicDir {
			method = ReplaceDirectory
		}

		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			text, ok := expand(sc.Text(), opts.Placeholders)
			if !ok {
				continue
			}
			text = Quote(text)
			if opts.Lowercase {
				text = lower.String(text)
			}
			e := Entry{Method: method, Text: text}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			entries = append(entries, e)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading wordlist %s: %w", name, err)
		}
	}
	return entries, nil
}

// expand substitutes placeholder tokens in a wordlist line. It returns false
// for comments, blank lines and lines whose tokens cannot be filled.
func expand(line string, p Placeholders) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}

	hasFilename := strings.Contains(line, FilenameToken)
	hasExtension := strings.Contains(line, ExtensionToken)
	hasDirectory := strings.Contains(line, DirectoryToken)

	switch {
	case hasFilename && p.Filename != "" && hasExtension && p.Extension != "":
		line = strings.ReplaceAll(line, FilenameToken, p.Filename)
		return strings.ReplaceAll(line, ExtensionToken, p.Extension), true
	case hasFilename && p.Filename != "":
		return strings.ReplaceAll(line, FilenameToken, p.Filename), true
	case hasDirectory && p.Directory != "":
		return strings.ReplaceAll(line, DirectoryToken, p.Directory), true
	case !hasFilename && !hasExtension && !hasDirectory:
		return line, true
	}
	return "", false
}

func normalizeExtensions(exts []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; !ok {
			seen[ext] = struct{}{}
			out = append(out, ext)
		}
	}
	return out
}
