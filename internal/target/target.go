// Package target models the scan target: its address, the shape of its
// request path and the extensions observed on it.
package target

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ErrDNSResolution is returned by New when the target host cannot be resolved.
var ErrDNSResolution = errors.New("couldn't resolve DNS")

// Resolver looks up the addresses of a host.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Target is the scan target. Everything except Fingerprint is fixed after New.
type Target struct {
	Protocol    string
	Host        string
	Address     string // resolved IP, used to connect unless requests go by hostname
	Port        int
	RequestPath string // path of the target URL as given

	Type      URLType
	BasePath  string
	Directory string
	Filename  string
	Extension string

	Fingerprint *Fingerprint
}

type options struct {
	address  string
	resolver Resolver
}

// Option configures New.
type Option func(*options)

// WithAddress skips DNS resolution and connects to addr.
func WithAddress(addr string) Option {
	return func(o *options) { o.address = addr }
}

// WithResolver replaces net.DefaultResolver.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// New parses rawURL, classifies its path and resolves the host.
func New(ctx context.Context, rawURL string, opts ...Option) (*Target, error) {
	o := options{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(&o)
	}

	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", rawURL)
	}

	t := &Target{
		Protocol:    strings.ToLower(u.Scheme),
		Host:        u.Hostname(),
		RequestPath: u.EscapedPath(),
	}
	if t.Protocol != "http" && t.Protocol != "https" {
		t.Protocol = "http"
	}
	if t.RequestPath == "" {
		t.RequestPath = "/"
	}

	if p := u.Port(); p != "" {
		t.Port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", p, err)
		}
	} else if t.Protocol == "https" {
		t.Port = 443
	} else {
		t.Port = 80
	}

	shape := Classify(t.RequestPath)
	t.Type = shape.Type
	t.BasePath = shape.BasePath
	t.Directory = shape.Directory
	t.Filename = shape.Filename
	t.Extension = shape.Extension
	t.Fingerprint = NewFingerprint(t.Extension)

	if o.address != "" {
		t.Address = o.address
		return t, nil
	}
	addrs, err := o.resolver.LookupHost(ctx, t.Host)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDNSResolution, t.Host)
	}
	t.Address = addrs[0]
	return t, nil
}

// DefaultPort reports whether Port is the protocol's default.
func (t *Target) DefaultPort() bool {
	return (t.Protocol == "https" && t.Port == 443) || (t.Protocol == "http" && t.Port == 80)
}

// HostHeader returns the Host header value, including a non-default port.
func (t *Target) HostHeader() string {
	if t.DefaultPort() {
		return t.Host
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Origin returns scheme://host[:port] using the hostname.
func (t *Target) Origin() string {
	return t.Protocol + "://" + t.HostHeader()
}

// ScanDirectory is the directory dictionary entries extend: the base path
// plus the target's own directory.
func (t *Target) ScanDirectory() string {
	if t.Directory == "" {
		return t.BasePath
	}
	return t.BasePath + t.Directory + "/"
}

func (t *Target) String() string {
	return t.Origin() + t.RequestPath
}
