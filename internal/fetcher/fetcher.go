// Package fetcher provides resilient HTTP retrieval for the pipeline.
// A fetch tries a browser-like user agent first and falls back once to a
// minimal agent when the response looks blocked; HTTP error statuses are
// returned to the caller, never raised as errors.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/funnelforge/internal/logger"
)

// maxBodyBytes limits the size of fetched responses.
const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

// maxRedirects bounds redirect chains before giving up.
const maxRedirects = 10

// blockScanBytes is how much of the body is scanned for block signatures.
const blockScanBytes = 8 * 1024

// blockSignatures are lowercase body fragments that indicate bot blocking.
// A response containing one is retried with the fallback agent.
var blockSignatures = []string{
	"captcha",
	"access denied",
	"attention required",
	"unusual traffic",
	"are you a robot",
}

// Error is a network-level fetch failure (DNS, connection refused, timeout).
// HTTP error statuses are not Errors; they come back in the Result.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is the outcome of a fetch attempt.
type Result struct {
	Body       []byte
	StatusCode int
	FinalURL   string
	Redirects  int
	Elapsed    time.Duration
}

// Config holds fetch settings.
type Config struct {
	Timeout           time.Duration
	UserAgent         string
	FallbackUserAgent string
	HostRPS           float64
}

// Client performs rate-limited HTTP fetches with user-agent fallback.
type Client struct {
	transport http.RoundTripper
	cfg       Config
	log       logger.Interface
	limiters  sync.Map // host -> *rate.Limiter
}

// New creates a fetch client.
func New(cfg Config, log logger.Interface) *Client {
	return &Client{
		transport: http.DefaultTransport,
		cfg:       cfg,
		log:       log.WithComponent("fetcher"),
	}
}

// Fetch retrieves the given URL. The locale, when non-empty, is sent as an
// Accept-Language hint. A blocked-looking first attempt (transport error,
// non-2xx status, empty body, or block signature) is retried once with the
// fallback agent. The final attempt's Result is returned even when its
// status is an HTTP error; only transport-level failures return an error.
func (c *Client) Fetch(ctx context.Context, rawURL, locale string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	if waitErr := c.waitHost(ctx, parsed.Hostname()); waitErr != nil {
		return nil, &Error{URL: rawURL, Err: waitErr}
	}

	result, attemptErr := c.attempt(ctx, rawURL, locale, c.cfg.UserAgent)
	if attemptErr == nil && !looksBlocked(result) {
		return result, nil
	}

	if attemptErr != nil {
		c.log.Debug("primary fetch attempt failed, retrying with fallback agent",
			"url", rawURL, "error", attemptErr.Error())
	} else {
		c.log.Debug("response looks blocked, retrying with fallback agent",
			"url", rawURL, "status", result.StatusCode)
	}

	retried, retryErr := c.attempt(ctx, rawURL, locale, c.cfg.FallbackUserAgent)
	if retryErr != nil {
		if attemptErr != nil {
			return nil, &Error{URL: rawURL, Err: attemptErr}
		}
		// First attempt got an HTTP response; keep it over a transport error.
		return result, nil
	}

	return retried, nil
}

// attempt performs a single GET with the given user agent.
func (c *Client) attempt(ctx context.Context, rawURL, locale, agent string) (*Result, error) {
	redirects := 0
	client := &http.Client{
		Transport: c.transport,
		Timeout:   c.cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			redirects = len(via)
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("create request: %w", reqErr)
	}

	req.Header.Set("User-Agent", agent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if locale != "" {
		req.Header.Set("Accept-Language", locale)
	}

	start := time.Now()
	resp, doErr := client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("http fetch: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return nil, fmt.Errorf("read body: %w", readErr)
	}

	return &Result{
		Body:       body,
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Redirects:  redirects,
		Elapsed:    time.Since(start),
	}, nil
}

// waitHost blocks until the per-host rate limiter allows another request.
func (c *Client) waitHost(ctx context.Context, host string) error {
	if c.cfg.HostRPS <= 0 {
		return nil
	}

	limiter, _ := c.limiters.LoadOrStore(
		strings.ToLower(host),
		rate.NewLimiter(rate.Limit(c.cfg.HostRPS), 1),
	)

	return limiter.(*rate.Limiter).Wait(ctx)
}

// looksBlocked reports whether a response should trigger the fallback agent.
func looksBlocked(r *Result) bool {
	if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
		return true
	}
	if len(r.Body) == 0 {
		return true
	}

	head := r.Body
	if len(head) > blockScanBytes {
		head = head[:blockScanBytes]
	}

	lowered := strings.ToLower(string(head))
	for _, sig := range blockSignatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}

	return false
}
