package trackers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/tamilarr/internal/config"
	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	cacheKey = "trackers"

	// fetch attempts per refresh, the scheduler retries next cycle anyway
	maxRetries = 2

	// the published list stays under a few KB, anything bigger is junk
	maxListSize = 256 * 1024
)

// Client fetches the public tracker list used to enrich magnet links.
// The list changes rarely, so one refresh per crawl cycle is plenty and
// a failed refresh keeps serving the previous copy.
type Client struct {
	url        string
	httpClient *http.Client
	cache      *gocache.Cache
	retryBase  time.Duration
	logger     *logrus.Logger

	mu   sync.Mutex
	last []string
}

// NewClient creates a tracker list client. An empty URL disables
// enrichment, Trackers then always returns nil.
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	ttl := cfg.CrawlInterval
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Client{
		url: cfg.TrackersURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache:     gocache.New(ttl, 2*ttl),
		retryBase: 500 * time.Millisecond,
		logger:    logger,
	}
}

// Trackers returns the current tracker URLs, the fresh cached copy when
// available, otherwise the last good copy. It never fetches, Refresh
// owns the network trip so stream requests stay fast.
func (c *Client) Trackers() []string {
	if c.url == "" {
		return nil
	}

	if cached, found := c.cache.Get(cacheKey); found {
		return cached.([]string)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Refresh fetches the list and replaces the cached copy. A failed fetch
// keeps the previous copy, the next cycle tries again.
func (c *Client) Refresh(ctx context.Context) error {
	if c.url == "" {
		return nil
	}

	list, err := c.fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh trackers: %w", err)
	}

	c.cache.Set(cacheKey, list, gocache.DefaultExpiration)
	c.mu.Lock()
	c.last = list
	c.mu.Unlock()

	c.logger.WithField("count", len(list)).Debug("Tracker list refreshed")
	return nil
}

func (c *Client) fetch(ctx context.Context) ([]string, error) {
	var list []string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("tracker list request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("tracker list returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxListSize))
		if err != nil {
			return fmt.Errorf("failed to read tracker list: %w", err)
		}

		list = parseList(string(body))
		if len(list) == 0 {
			return fmt.Errorf("tracker list is empty")
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryBase
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, maxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return list, nil
}

// parseList splits the published format, one tracker URL per stanza
// separated by blank lines
func parseList(body string) []string {
	var list []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		list = append(list, line)
	}
	return list
}
