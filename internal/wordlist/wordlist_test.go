package wordlist

import (
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/dirsift/internal/target"
)

func testFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name+".txt"] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

func TestDictionaryDedupPreservesOrder(t *testing.T) {
	fsys := testFS(map[string]string{
		CommonDir:            "admin/\nbackup/\n# comment\n\nadmin/\n",
		CommonFileWithSuffix: "robots.txt\nbackup/\nadmin/\nweb.config\n",
	})
	d, err := New(fsys, Options{Lists: []string{CommonDir, CommonFileWithSuffix}})
	require.NoError(t, err)

	assert.Equal(t, []string{"admin/", "backup/", "robots.txt", "web.config"}, texts(d.Entries()))
}

func TestDictionaryDealMethodTagging(t *testing.T) {
	fsys := testFS(map[string]string{
		CommonDir: "admin/\n",
		LogicDir:  "[Directory Name].zip\nadmin/\n",
		LogicFile: "[Filename].bak\n",
	})
	d, err := New(fsys, Options{
		Lists:        []string{CommonDir, LogicDir, LogicFile},
		Placeholders: Placeholders{Filename: "index", Directory: "abc", Extension: "php"},
	})
	require.NoError(t, err)

	want := []Entry{
		{ExtendDirectory, "admin/"},
		{ReplaceDirectory, "abc.zip"},
		{ReplaceDirectory, "admin/"}, // same text, different method: not a duplicate
		{ExtendDirectory, "index.bak"},
	}
	assert.Equal(t, want, d.Entries())
}

func TestExpandTokens(t *testing.T) {
	full := Placeholders{Filename: "test", Directory: "abc", Extension: "php"}
	tests := []struct {
		name string
		line string
		p    Placeholders
		want string
		ok   bool
	}{
		{"filename and extension", "[Filename].[Extension].bak", full, "test.php.bak", true},
		{"filename only", "[Filename].zip", full, "test.zip", true},
		{"directory", "[Directory Name].tar.gz", full, "abc.tar.gz", true},
		{"plain", "robots.txt", full, "robots.txt", true},
		{"comment", "  # nope", full, "", false},
		{"blank", "   ", full, "", false},
		{"missing filename", "[Filename].bak", Placeholders{Directory: "abc"}, "", false},
		{"missing directory", "[Directory Name].zip", Placeholders{Filename: "x"}, "", false},
		{"extension unknown keeps filename substitution", "[Filename].[Extension]", Placeholders{Filename: "x"}, "x.[Extension]", true},
		{"extension token alone", "a.[Extension]", full, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := expand(tt.line, tt.p)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "admin/login.php?x=1&y=2", Quote("admin/login.php?x=1&y=2"))
	assert.Equal(t, "a%20b", Quote("a b"))
	assert.Equal(t, "~user/$x:1+2-3%41", Quote("~user/$x:1+2-3%41"))
	assert.Equal(t, "%3Cscript%3E%27%22", Quote(`<script>'"`))
	assert.Equal(t, "%E4%B8%AD", Quote("中"))
	assert.Equal(t, "x.%5BExtension%5D", Quote("x.[Extension]"))
}

func TestDictionaryLowercase(t *testing.T) {
	fsys := testFS(map[string]string{CommonDir: "Admin/\nADMIN/\nWEB-INF/\n"})
	d, err := New(fsys, Options{Lists: []string{CommonDir}, Lowercase: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin/", "web-inf/"}, texts(d.Entries()))
	assert.True(t, d.Lowercase())
}

func TestDictionaryMissingList(t *testing.T) {
	fsys := testFS(map[string]string{CommonDir: "admin/\n"})

	_, err := New(fsys, Options{Lists: []string{CommonDir, LogicDir}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), LogicDir)

	d, err := New(fsys, Options{Lists: []string{CommonDir, "fingerprint_php"}})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
}

func TestCursorConcurrentExactlyOnce(t *testing.T) {
	var sb strings.Builder
	const k = 500
	for i := 0; i < k; i++ {
		sb.WriteString("entry")
		sb.WriteString(strings.Repeat("x", i%7))
		sb.WriteString("/")
		sb.WriteString(string(rune('a' + i%26)))
		sb.WriteString(strings.Repeat("y", i/26))
		sb.WriteString("\n")
	}
	d, err := New(testFS(map[string]string{CommonDir: sb.String()}), Options{Lists: []string{CommonDir}})
	require.NoError(t, err)
	require.Equal(t, k, d.Len())

	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := -1
			for {
				_, idx, ok := d.Next()
				if !ok {
					return
				}
				if idx <= last {
					t.Errorf("index went backwards: %d after %d", idx, last)
				}
				last = idx
				mu.Lock()
				seen[idx]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, k)
	for idx, n := range seen {
		assert.Equalf(t, 1, n, "index %d delivered %d times", idx, n)
	}
	_, _, ok := d.Next()
	assert.False(t, ok, "exhausted cursor must stay exhausted")
}

func TestRegenerateResetsCursor(t *testing.T) {
	fsys := testFS(map[string]string{
		CommonDir:         "admin/\nbackup/\n",
		"fingerprint_php": "composer.json\n",
	})
	d, err := New(fsys, Options{Lists: []string{CommonDir}})
	require.NoError(t, err)

	d.Next()
	d.Next()
	_, _, ok := d.Next()
	require.False(t, ok)

	d.SetLists([]string{"fingerprint_php"})
	require.NoError(t, d.Regenerate())
	e, idx, ok := d.Next()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "composer.json", e.Text)
	assert.Equal(t, []string{"fingerprint_php"}, d.Lists())

	d.Reset()
	_, idx, _ = d.Next()
	assert.Equal(t, 0, idx)
}

func TestDictionaryExtensionsNormalized(t *testing.T) {
	d, err := New(testFS(map[string]string{CommonDir: "a\n"}), Options{
		Lists:      []string{CommonDir},
		Extensions: []string{".php", "php", " jsp ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"php", "jsp"}, d.Extensions())
}

func TestSelect(t *testing.T) {
	assert.Equal(t,
		[]string{CommonDir, CommonFileWithSuffix, LogicDir, LogicFile, "fingerprint_php"},
		Select(target.FileWithExtension, []string{"php", "html"}))
	assert.Equal(t,
		[]string{CommonDir, CommonFileWithoutSuffix},
		Select(target.ExtensionlessFile, nil))
	assert.Equal(t,
		[]string{CommonDir, CommonFileWithSuffix, CommonFileWithoutSuffix, LogicDir},
		Select(target.BareDirectory, nil))
}

func TestEmbeddedDatabase(t *testing.T) {
	fsys := Embedded()
	for _, typ := range []target.URLType{target.FileWithExtension, target.BareDirectory, target.ExtensionlessFile} {
		lists := Select(typ, []string{"action", "asp", "aspx", "cgi", "do", "jsp", "php", "pl", "py", "rb"})
		d, err := New(fsys, Options{
			Lists:        lists,
			Placeholders: Placeholders{Filename: "index", Directory: "app", Extension: "php"},
		})
		require.NoError(t, err, typ.String())
		assert.Greater(t, d.Len(), 50, typ.String())
		for _, e := range d.Entries() {
			assert.NotContains(t, e.Text, "#")
			assert.NotContains(t, e.Text, "%5BFilename%5D")
		}
	}
}
