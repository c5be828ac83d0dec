package filter

import (
	"context"
	"fmt"

	"github.com/maxvaer/dirsift/internal/scanner"
	"github.com/maxvaer/dirsift/internal/similarity"
	"github.com/maxvaer/dirsift/internal/wordlist"
)

// wafPayload is appended to the target path to provoke a firewall block page.
const wafPayload = `?testparam=1234 AND 1=1 UNION ALL SELECT 1,NULL,'<script>alert("XSS")</script>',table_name FROM information_schema.tables WHERE 2>1--/**/; EXEC xp_cmdshell('cat ../../../etc/passwd')#`

// DetectWAF requests path with a hostile query and compares the answer to
// clean, the response to path itself. A ratio below threshold means a WAF
// rewrote the response; the returned baseline is nil when none is seen.
func DetectWAF(ctx context.Context, p Fetcher, path string, clean *scanner.Response, threshold float64) (*Baseline, error) {
	payload := path + wordlist.Quote(wafPayload)
	resp, err := p.Request(ctx, payload, scanner.RequestOptions{})
	if err != nil {
		return nil, fmt.Errorf("sending WAF payload: %w", err)
	}
	if similarity.Ratio(clean.Body, resp.Body) >= threshold {
		return nil, nil
	}
	return newBaseline(payload, resp), nil
}
