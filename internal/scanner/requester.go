package scanner

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zan8in/retryablehttp"
	"golang.org/x/time/rate"

	"github.com/maxvaer/dirsift/internal/config"
	"github.com/maxvaer/dirsift/internal/crawl"
	"github.com/maxvaer/dirsift/internal/logger"
	"github.com/maxvaer/dirsift/internal/target"
)

const (
	defaultUserAgent   = "dirsift/1.0"
	defaultBodyLimit   = 10 << 20
	maxRedirects       = 10
	defaultRetryWait   = 100 * time.Millisecond
	defaultRetryWaitUp = 2 * time.Second
)

var randomAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// RequestOptions tunes a single request.
type RequestOptions struct {
	FollowRedirects bool
	// CollectFingerprint feeds extensions found in the body into the
	// target's fingerprint.
	CollectFingerprint bool
}

type followKey struct{}

// Requester sends requests to the target. It is safe for concurrent use.
type Requester struct {
	client    *retryablehttp.Client
	target    *target.Target
	origin    string
	method    string
	headers   map[string]string
	cookie    string
	userAgent string
	random    bool
	proxied   bool
	bodyLimit int64

	limiter  *rate.Limiter
	throttle *Throttler
	tech     *crawl.TechDetector
	log      *slog.Logger

	sent atomic.Int64
}

// NewRequester builds a Requester for t from the scan options.
func NewRequester(t *target.Target, opts *config.Options, log *slog.Logger) (*Requester, error) {
	host := t.Address
	if opts.ByHostname || host == "" {
		host = t.Host
	}
	origin := t.Protocol + "://" + net.JoinHostPort(host, strconv.Itoa(t.Port))

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
			ServerName:         t.Host,
		},
		DialContext: (&net.Dialer{
			Timeout: opts.Timeout,
		}).DialContext,
		MaxIdleConnsPerHost: opts.Threads,
		MaxIdleConns:        opts.Threads,
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	ropts := retryablehttp.DefaultOptionsSingle
	ropts.Timeout = opts.Timeout
	ropts.RetryMax = opts.MaxRetries
	ropts.RetryWaitMin = defaultRetryWait
	ropts.RetryWaitMax = defaultRetryWaitUp
	if opts.Delay > 0 {
		ropts.RetryWaitMin = opts.Delay
		ropts.RetryWaitMax = max(opts.Delay, defaultRetryWaitUp)
	}

	client := retryablehttp.NewClient(ropts)
	client.CheckRetry = retryPolicy(opts.Proxy != "")
	client.HTTPClient.Transport = transport
	client.HTTPClient2.Transport = transport
	client.HTTPClient.CheckRedirect = redirectPolicy
	client.HTTPClient2.CheckRedirect = redirectPolicy
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
		client.HTTPClient2.Timeout = opts.Timeout
	}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	bodyLimit := opts.MaxBodySize
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}
	if log == nil {
		log = logger.Discard()
	}

	r := &Requester{
		client:    client,
		target:    t,
		origin:    origin,
		method:    method,
		headers:   opts.Headers,
		cookie:    opts.Cookie,
		userAgent: ua,
		random:    opts.RandomAgent,
		proxied:   opts.Proxy != "",
		bodyLimit: bodyLimit,
		throttle:  NewThrottler(opts.Delay, opts.AdaptiveThrottle, log),
		log:       log,
	}
	if opts.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	if opts.TechDetect {
		r.tech = crawl.NewTechDetector()
	}
	return r, nil
}

// Target returns the target the requester scans.
func (r *Requester) Target() *target.Target { return r.target }

// Requests returns how many requests have been sent, failed ones and
// calibration traffic included.
func (r *Requester) Requests() int64 { return r.sent.Load() }

// Request fetches path, which is absolute from the web root. Connection
// failures are retried; the returned error is a *RequestError once
// retries are spent or the failure cannot be retried.
func (r *Requester) Request(ctx context.Context, path string, ro RequestOptions) (*Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if err := r.pace(ctx); err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, followKey{}, ro.FollowRedirects)
	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, r.origin+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Host = r.target.HostHeader()
	req.Header.Set("User-Agent", r.agent())
	req.Header.Set("Accept", "*/*")
	if r.cookie != "" {
		req.Header.Set("Cookie", r.cookie)
	}
	for k, v := range r.headers {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	r.sent.Add(1)
	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.throttle.RecordError()
		rerr := r.classify(path, err)
		r.log.Debug("request failed", "path", path, "kind", rerr.Kind.String(), "error", err)
		return nil, rerr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.bodyLimit))
	if err != nil {
		r.throttle.RecordError()
		return nil, &RequestError{Kind: KindTimeout, Path: path, Err: err}
	}
	r.throttle.RecordStatus(resp.StatusCode)

	out := &Response{
		Status:   resp.StatusCode,
		Reason:   statusReason(resp),
		Header:   resp.Header,
		Body:     body,
		URL:      r.target.Origin() + path,
		Duration: time.Since(start),
	}
	if ro.CollectFingerprint {
		r.collect(out)
	}
	return out, nil
}

// statusReason returns the reason phrase the server sent, falling back to
// the standard text for the code.
func statusReason(resp *http.Response) string {
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

func (r *Requester) collect(resp *Response) {
	exts := crawl.ExtractExtensions(resp.Body, r.target.Host)
	if r.tech != nil {
		techExts, err := r.tech.Extensions(resp.Header, resp.Body)
		if err != nil {
			r.log.Warn("technology detection disabled", "error", err)
		}
		exts = append(exts, techExts...)
	}
	if n := r.target.Fingerprint.Add(exts...); n > 0 {
		r.log.Debug("fingerprint grew", "added", n, "extensions", r.target.Fingerprint.List())
	}
}

// pace honours the rate limit and the throttler delay.
func (r *Requester) pace(ctx context.Context) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	d := r.throttle.Delay()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Requester) agent() string {
	if r.random {
		return randomAgents[rand.IntN(len(randomAgents))]
	}
	return r.userAgent
}

func (r *Requester) classify(path string, err error) *RequestError {
	switch {
	case errors.Is(err, errTooManyRedirects) || strings.Contains(err.Error(), errTooManyRedirects.Error()):
		return &RequestError{Kind: KindTooManyRedirects, Path: path, Err: err}
	case isTLSError(err):
		return &RequestError{Kind: KindSSL, Path: path, Err: err}
	case r.proxied && !isTimeout(err):
		return &RequestError{Kind: KindProxy, Path: path, Err: err}
	default:
		return &RequestError{Kind: KindTimeout, Path: path, Err: err}
	}
}

// retryPolicy retries transport failures except those a retry cannot fix.
func retryPolicy(proxied bool) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, _ *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err == nil {
			return false, nil
		}
		if errors.Is(err, errTooManyRedirects) || isTLSError(err) {
			return false, err
		}
		if proxied && !isTimeout(err) {
			return false, err
		}
		return true, nil
	}
}

func redirectPolicy(req *http.Request, via []*http.Request) error {
	if follow, _ := req.Context().Value(followKey{}).(bool); !follow {
		return http.ErrUseLastResponse
	}
	if len(via) >= maxRedirects {
		return errTooManyRedirects
	}
	return nil
}
