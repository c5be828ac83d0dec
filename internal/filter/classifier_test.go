package filter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maxvaer/dirsift/internal/scanner"
)

const notFoundPage = "sorry, the page you requested could not be located on this server"

func newTestClassifier(t *testing.T, waf *Baseline, fn func(string) (*scanner.Response, error)) (*Classifier, *stubFetcher) {
	t.Helper()
	p := &stubFetcher{fn: func(path string) (*scanner.Response, error) {
		if fn != nil {
			if r, err := fn(path); r != nil || err != nil {
				return r, err
			}
		}
		return body(200, notFoundPage), nil
	}}
	b, err := Calibrate(context.Background(), p, "/", []string{"php"})
	if err != nil {
		t.Fatal(err)
	}
	p.paths = nil
	return NewClassifier(p, b, waf, 0.7), p
}

func TestClassifyOrder(t *testing.T) {
	c, p := newTestClassifier(t, nil, nil)
	ctx := context.Background()

	res, err := c.Classify(ctx, "/gone", body(404, "ADMIN 12345"))
	if err != nil || res.Matched() {
		t.Fatalf("404 should never match: %+v %v", res, err)
	}

	res, err = c.Classify(ctx, "/soft.php", body(200, notFoundPage))
	if err != nil || res.Matched() {
		t.Fatalf("soft 404 should be suppressed: %+v %v", res, err)
	}
	if !strings.Contains(res.Reason, "404 baseline") {
		t.Errorf("reason = %q", res.Reason)
	}
	if len(p.paths) != 0 {
		t.Errorf("siblings requested for a baseline match: %v", p.paths)
	}

	res, err = c.Classify(ctx, "/admin.php", body(200, "ADMIN PANEL 12345"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Matched() || res.Status != 200 {
		t.Errorf("expected a match, got %+v", res)
	}
	if len(p.paths) != 2 {
		t.Errorf("expected two sibling requests, got %v", p.paths)
	}
}

func TestClassifyWAF(t *testing.T) {
	waf := newBaseline("/?testparam", body(403, "BLOCKED BY FIREWALL"))
	c, _ := newTestClassifier(t, waf, nil)

	res, err := c.Classify(context.Background(), "/backup", body(403, "BLOCKED BY FIREWALL"))
	if err != nil || res.Matched() {
		t.Fatalf("WAF page should be suppressed: %+v %v", res, err)
	}
	if res.Reason != "matches WAF response" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestClassifySiblingSuppresses(t *testing.T) {
	// The server answers any name under /files/ with the same listing.
	c, _ := newTestClassifier(t, nil, func(path string) (*scanner.Response, error) {
		if strings.HasPrefix(path, "/files/") {
			return body(200, "FILE LISTING 0001"), nil
		}
		return nil, nil
	})

	res, err := c.Classify(context.Background(), "/files/report", body(200, "FILE LISTING 0001"))
	if err != nil || res.Matched() {
		t.Fatalf("catch-all directory should be suppressed: %+v %v", res, err)
	}
	if !strings.HasPrefix(res.Reason, "matches sibling /files/") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestClassifySiblingError(t *testing.T) {
	c, p := newTestClassifier(t, nil, nil)
	boom := &scanner.RequestError{Kind: scanner.KindTimeout, Path: "/x"}
	p.fn = func(path string) (*scanner.Response, error) {
		if strings.HasSuffix(path, ".php") {
			return body(200, notFoundPage), nil
		}
		return nil, boom
	}

	_, err := c.Classify(context.Background(), "/secret.php", body(200, "SECRET 42"))
	var rerr *scanner.RequestError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected the sibling's transport error, got %v", err)
	}
}

func TestClassifyDegenerate(t *testing.T) {
	c, _ := newTestClassifier(t, nil, nil)
	_, err := c.Classify(context.Background(), "//", body(200, "ROOT 99"))
	if !errors.Is(err, ErrDegeneratePermutation) {
		t.Fatalf("error = %v, want ErrDegeneratePermutation", err)
	}
}
