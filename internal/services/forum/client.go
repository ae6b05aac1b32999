package forum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/amaumene/tamilarr/internal/config"
	"github.com/amaumene/tamilarr/internal/metrics"
)

// FetchErrorKind classifies fetch failures for retry decisions
type FetchErrorKind string

const (
	ErrKindTimeout    FetchErrorKind = "timeout"
	ErrKindHTTPStatus FetchErrorKind = "http_status"
	ErrKindNetwork    FetchErrorKind = "network"
	ErrKindDomain     FetchErrorKind = "domain"
)

// FetchError is the typed failure a page fetch can produce
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int // set for http_status errors
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == ErrKindHTTPStatus {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether retrying can help. Timeouts, network errors,
// 429 and 5xx statuses are transient; other statuses and requests outside
// the monitored domain are permanent.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case ErrKindDomain:
		return false
	case ErrKindHTTPStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return true
	}
}

// browser user agents rotated across requests
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

const (
	// retries after the first attempt, so a fetch gets four tries in total
	defaultMaxRetries = 3

	maxPageSize = 8 * 1024 * 1024 // 8MB
)

// Client fetches forum pages politely: one global throttle across all
// callers, bounded retries with exponential backoff, rotating user
// agents and an allow-list pinned to the monitored domain.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	domain     string
	maxRetries uint64
	retryBase  time.Duration // initial backoff interval
	logger     *logrus.Logger
	uaIndex    atomic.Uint32
}

// NewClient creates a forum client from the configured throttle and
// monitored domain
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	delay := time.Duration(cfg.RequestThrottleMs) * time.Millisecond
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:    limiter,
		domain:     strings.ToLower(cfg.DomainMonitor),
		maxRetries: defaultMaxRetries,
		retryBase:  500 * time.Millisecond,
		logger:     logger,
	}
}

// FetchPage fetches one page from the forum, retrying transient failures
// with exponential backoff. The returned error is always a *FetchError
// describing the last failure.
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if ferr := c.checkDomain(pageURL); ferr != nil {
		metrics.ObserveFetch(string(ferr.Kind), 0)
		return nil, ferr
	}

	var body []byte
	attempt := 0

	operation := func() error {
		attempt++

		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(&FetchError{Kind: ErrKindNetwork, URL: pageURL, Err: err})
		}
		metrics.ObserveRateLimitWait(time.Since(waitStart))

		data, ferr := c.fetchOnce(ctx, pageURL)
		if ferr != nil {
			c.logger.WithFields(logrus.Fields{
				"url":     pageURL,
				"attempt": attempt,
				"kind":    ferr.Kind,
			}).WithError(ferr).Debug("Fetch attempt failed")

			if !ferr.Transient() {
				return backoff.Permanent(ferr)
			}
			return ferr
		}

		body = data
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	if c.retryBase > 0 {
		expo.InitialInterval = c.retryBase
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		ferr := asFetchError(err, pageURL)
		metrics.ObserveFetch(string(ferr.Kind), 0)
		return nil, ferr
	}

	metrics.ObserveFetch("ok", len(body))
	return body, nil
}

// fetchOnce performs a single GET without retry logic
func (c *Client) fetchOnce(ctx context.Context, pageURL string) ([]byte, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrKindDomain, URL: pageURL, Err: err}
	}

	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := ErrKindNetwork
		if isTimeout(err) {
			kind = ErrKindTimeout
		}
		return nil, &FetchError{Kind: kind, URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Kind: ErrKindHTTPStatus, URL: pageURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, &FetchError{Kind: ErrKindNetwork, URL: pageURL, Err: err}
	}

	return data, nil
}

// checkDomain refuses URLs outside the monitored domain. An empty
// configured domain allows everything.
func (c *Client) checkDomain(pageURL string) *FetchError {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &FetchError{Kind: ErrKindDomain, URL: pageURL, Err: fmt.Errorf("malformed URL")}
	}
	if c.domain == "" {
		return nil
	}
	if strings.ToLower(u.Hostname()) != c.domain {
		return &FetchError{Kind: ErrKindDomain, URL: pageURL, Err: fmt.Errorf("host %s is not the monitored domain %s", u.Hostname(), c.domain)}
	}
	return nil
}

func (c *Client) nextUserAgent() string {
	n := c.uaIndex.Add(1)
	return userAgents[int(n)%len(userAgents)]
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func asFetchError(err error, pageURL string) *FetchError {
	var ferr *FetchError
	if errors.As(err, &ferr) {
		return ferr
	}
	return &FetchError{Kind: ErrKindNetwork, URL: pageURL, Err: err}
}
