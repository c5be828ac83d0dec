package scanner

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	// KindTimeout: retries for timeouts or connection failures ran out.
	KindTimeout ErrorKind = iota
	// KindSSL: the TLS handshake failed.
	KindSSL
	// KindProxy: the configured proxy could not be used.
	KindProxy
	// KindTooManyRedirects: the redirect limit was exceeded.
	KindTooManyRedirects
)

func (k ErrorKind) String() string {
	switch k {
	case KindSSL:
		return "ssl"
	case KindProxy:
		return "proxy"
	case KindTooManyRedirects:
		return "too-many-redirects"
	default:
		return "timeout"
	}
}

// RequestError is returned by Requester.Request. It is terminal for the
// request: retries have already been spent or would not help.
type RequestError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindSSL:
		return "SSL error connecting to server. Try --by-hostname to connect by hostname"
	case KindProxy:
		return fmt.Sprintf("error with the proxy: %v", e.Err)
	case KindTooManyRedirects:
		return fmt.Sprintf("too many redirects: %s", e.Path)
	default:
		return fmt.Sprintf("CONNECTION TIMEOUT: there was a problem in the request to: %s", e.Path)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

var errTooManyRedirects = errors.New("stopped after 10 redirects")

func isTLSError(err error) bool {
	var (
		recErr    tls.RecordHeaderError
		verifyErr *tls.CertificateVerificationError
		authErr   x509.UnknownAuthorityError
		hostErr   x509.HostnameError
		certErr   x509.CertificateInvalidError
	)
	if errors.As(err, &recErr) || errors.As(err, &verifyErr) ||
		errors.As(err, &authErr) || errors.As(err, &hostErr) || errors.As(err, &certErr) {
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
