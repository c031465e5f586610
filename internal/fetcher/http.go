// Package fetcher is the rate-limited, retrying HTTP client used for SEC
// EDGAR downloads.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/ratelimit"
	"github.com/tenkay/filing-pipeline/internal/resilience"
)

// Options configures a Client.
type Options struct {
	// UserAgent is mandatory for sec.gov, which rejects anonymous clients.
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Retry        resilience.RetryConfig
	// Limiters are keyed by host. Hosts without an entry use Default.
	Limiters map[string]ratelimit.Limiter
	Default  ratelimit.Limiter
}

// Client issues GET requests through a per-host limiter. Every attempt,
// retries included, takes a limiter slot.
type Client struct {
	http *http.Client
	opts Options
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tenkay/1.0"
	}
	if opts.Default == nil {
		opts.Default = ratelimit.Unlimited{}
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts: opts,
	}
}

// Get returns the body of a 2xx response. Transient statuses and network
// faults are retried; other statuses return a *resilience.StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %q", rawURL)
	}
	lim := c.limiterFor(u.Host)

	retry := c.opts.Retry
	retry.OnRetry = resilience.RetryLogger(u.Host, "get")

	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		if err := lim.Acquire(ctx); err != nil {
			return nil, err
		}
		return c.once(ctx, rawURL, u.Host)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	return body, nil
}

func (c *Client) once(ctx context.Context, rawURL, host string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept-Encoding", "identity")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), resp.StatusCode)
	}
	if err := resilience.CheckResponse(host, resp, body); err != nil {
		return nil, err
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return nil, eris.Errorf("body exceeds %d bytes", c.opts.MaxBodyBytes)
	}

	zap.L().Debug("fetched",
		zap.String("url", rawURL),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}

func (c *Client) limiterFor(host string) ratelimit.Limiter {
	if lim, ok := c.opts.Limiters[host]; ok {
		return lim
	}
	return c.opts.Default
}
