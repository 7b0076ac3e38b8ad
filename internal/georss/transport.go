package georss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Transport fetches the raw bytes of a feed document.
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const (
	DefaultTimeout   = 20 * time.Second
	DefaultUserAgent = "quakereadr/0.1 (+https://github.com/thomaskoefod/quakereadr)"

	maxFeedBytes = 5 << 20
)

var ErrFeedTooLarge = errors.New("feed exceeds 5 MiB")

// HTTPTransport is a Transport backed by net/http with a bounded timeout.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewHTTPTransport creates a transport. When minInterval is positive,
// consecutive requests are spaced at least that far apart.
func NewHTTPTransport(timeout time.Duration, userAgent string, minInterval time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	t := &HTTPTransport{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
	if minInterval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return t
}

// Fetch performs a GET and returns the body. Non-2xx responses are errors.
func (t *HTTPTransport) Fetch(ctx context.Context, url string) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.5")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching feed %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading feed %s: %w", url, err)
	}
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("reading feed %s: %w", url, ErrFeedTooLarge)
	}
	return body, nil
}
