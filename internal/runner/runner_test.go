package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maxvaer/dirsift/internal/config"
)

// writeLists creates a wordlist directory holding every list a bare
// directory target reads, plus any extra lists.
func writeLists(t *testing.T, lists map[string][]string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"common_dir", "common_file_with_suffix", "common_file_without_suffix", "logic_dir"} {
		if _, ok := lists[name]; !ok {
			lists[name] = nil
		}
	}
	for name, words := range lists {
		path := filepath.Join(dir, name+".txt")
		if err := os.WriteFile(path, []byte(strings.Join(words, "\n")), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testOpts(t *testing.T, serverURL, wordlistDir string) *config.Options {
	t.Helper()
	return &config.Options{
		URL:          serverURL + "/",
		WordlistDir:  wordlistDir,
		Threads:      3,
		Timeout:      5 * time.Second,
		Quiet:        true,
		NoColor:      true,
		OutputFile:   filepath.Join(t.TempDir(), "output.txt"),
		OutputFormat: "text",
		WAFThreshold: 0.6,
		DetectWAF:    true,
		MaxPasses:    3,
	}
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestBasicScan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/":
			fmt.Fprint(w, "ADMIN PANEL 2024")
		case "/backup.zip":
			fmt.Fprint(w, "PK 0101 0202")
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "not found here")
		}
	}))
	defer srv.Close()

	dir := writeLists(t, map[string][]string{
		"common_dir":              {"admin/", "images/"},
		"common_file_with_suffix": {"backup.zip", "missing.txt"},
	})
	opts := testOpts(t, srv.URL, dir)

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	out := readOutput(t, opts.OutputFile)
	for _, want := range []string{"/admin/", "/backup.zip"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"/images/", "/missing.txt"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("did not expect %s in output:\n%s", unwanted, out)
		}
	}
}

func TestSoft404Suppressed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/" {
			fmt.Fprint(w, "ADMIN PANEL 2024 XYZ")
			return
		}
		// Every unknown path answers 200 with the same apology.
		fmt.Fprint(w, "oops, the page you requested could not be found on this server")
	}))
	defer srv.Close()

	dir := writeLists(t, map[string][]string{
		"common_dir":                 {"admin/", "images/", "uploads/"},
		"common_file_without_suffix": {"readme", "changelog"},
	})
	opts := testOpts(t, srv.URL, dir)

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	out := readOutput(t, opts.OutputFile)
	if !strings.Contains(out, "/admin/") {
		t.Errorf("expected /admin/ in output:\n%s", out)
	}
	for _, soft := range []string{"/images/", "/uploads/", "/readme", "/changelog"} {
		if strings.Contains(out, soft) {
			t.Errorf("soft-404 %s should be suppressed:\n%s", soft, out)
		}
	}
}

func TestShowSuppressed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/":
			fmt.Fprint(w, "ADMIN PANEL 2024 XYZ")
		case "/missing.txt":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "gone")
		default:
			fmt.Fprint(w, "oops, the page you requested could not be found on this server")
		}
	}))
	defer srv.Close()

	dir := writeLists(t, map[string][]string{
		"common_dir":              {"admin/", "images/"},
		"common_file_with_suffix": {"missing.txt"},
	})
	opts := testOpts(t, srv.URL, dir)
	opts.ShowSuppressed = true

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	var images, admin string
	for _, line := range strings.Split(readOutput(t, opts.OutputFile), "\n") {
		switch {
		case strings.Contains(line, "/images/"):
			images = line
		case strings.Contains(line, "/admin/"):
			admin = line
		case strings.Contains(line, "/missing.txt"):
			t.Errorf("plain 404 should not be reported: %q", line)
		}
	}
	if !strings.Contains(images, "(suppressed: ") {
		t.Errorf("expected /images/ reported with its reason, got %q", images)
	}
	if admin == "" || strings.Contains(admin, "suppressed") {
		t.Errorf("expected /admin/ reported as a plain match, got %q", admin)
	}
}

func TestFingerprintFollowUpPass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><a href="/index.php">home</a></html>`)
		case "/admin/":
			fmt.Fprint(w, `<html>ADMIN <a href="/console.jsp">CONSOLE</a></html>`)
		case "/config.php":
			fmt.Fprint(w, "PHP CONFIG 7.4")
		case "/console.jsp":
			fmt.Fprint(w, "JSP CONSOLE 99")
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "not found here")
		}
	}))
	defer srv.Close()

	lists := map[string][]string{
		"common_dir":      {"admin/"},
		"fingerprint_php": {"config.php"},
		"fingerprint_jsp": {"console.jsp"},
	}

	t.Run("second pass scans new lists", func(t *testing.T) {
		opts := testOpts(t, srv.URL, writeLists(t, lists))
		if err := Run(context.Background(), opts); err != nil {
			t.Fatal(err)
		}
		out := readOutput(t, opts.OutputFile)
		for _, want := range []string{"/admin/", "/config.php", "/console.jsp"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %s in output:\n%s", want, out)
			}
		}
	})

	t.Run("single pass", func(t *testing.T) {
		opts := testOpts(t, srv.URL, writeLists(t, lists))
		opts.MaxPasses = 1
		if err := Run(context.Background(), opts); err != nil {
			t.Fatal(err)
		}
		out := readOutput(t, opts.OutputFile)
		if !strings.Contains(out, "/config.php") {
			t.Errorf("expected /config.php from the clean page fingerprint:\n%s", out)
		}
		if strings.Contains(out, "/console.jsp") {
			t.Errorf("did not expect a second pass:\n%s", out)
		}
	})
}

func TestJSONOutputWithStatusFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/":
			fmt.Fprint(w, "ADMIN PANEL 2024")
		case "/backup.zip":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "FORBIDDEN 403 ZIP")
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "not found here")
		}
	}))
	defer srv.Close()

	dir := writeLists(t, map[string][]string{
		"common_dir":              {"admin/"},
		"common_file_with_suffix": {"backup.zip"},
	})
	opts := testOpts(t, srv.URL, dir)
	opts.OutputFormat = "json"
	opts.OutputFile = filepath.Join(t.TempDir(), "output.json")
	opts.IncludeStatus = []int{200}

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	var entries []struct {
		Path   string `json:"path"`
		Status int    `json:"status"`
	}
	if err := json.Unmarshal([]byte(readOutput(t, opts.OutputFile)), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v", entries)
	}
	if entries[0].Path != "/admin/" || entries[0].Status != http.StatusOK {
		t.Errorf("unexpected entry %+v", entries[0])
	}
}

func TestRunInterrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "not found here")
	}))
	defer srv.Close()

	words := make([]string, 500)
	for i := range words {
		words[i] = fmt.Sprintf("dir%d/", i)
	}
	opts := testOpts(t, srv.URL, writeLists(t, map[string][]string{"common_dir": words}))
	opts.Delay = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("interrupted scan should end cleanly, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("bad url", func(t *testing.T) {
		opts := testOpts(t, "http://[::1", t.TempDir())
		if err := Run(context.Background(), opts); err == nil {
			t.Error("expected an error for an unparsable URL")
		}
	})

	t.Run("missing wordlist", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		opts := testOpts(t, srv.URL, t.TempDir())
		err := Run(context.Background(), opts)
		if err == nil || !strings.Contains(err.Error(), "building dictionary") {
			t.Errorf("expected a dictionary error, got %v", err)
		}
	})
}
