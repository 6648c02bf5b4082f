package network

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 30 * time.Second

	ProxyURLParsingErrorFormat = "error parsing proxy URL: %s"
)

type Options struct {
	SkipTLSVerification bool
	Timeout             time.Duration
	ProxyURL            string
	RequestsPerSecond   float64
}

// NewClient builds the client every upstream request goes through. Timeout
// bounds the whole request, including reading the body.
func NewClient(opts Options) (*http.Client, error) {
	proxy := http.ProxyFromEnvironment
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, errors.Wrapf(err, ProxyURLParsingErrorFormat, opts.ProxyURL)
		}
		proxy = http.ProxyURL(proxyURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy: proxy,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.SkipTLSVerification,
			MinVersion:         tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	if opts.RequestsPerSecond > 0 {
		transport = &pacedTransport{
			limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
			next:    transport,
		}
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// pacedTransport spaces requests out so a burst of fetches stays under the
// upstream provider's rate limit.
type pacedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
