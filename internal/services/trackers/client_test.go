package trackers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/tamilarr/internal/config"
)

const trackerList = `udp://tracker.opentrackr.org:1337/announce

udp://open.demonii.com:1337/announce

http://tracker.openbittorrent.com:80/announce
`

func testTrackerClient(url string, ttl time.Duration) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	c := NewClient(&config.Config{
		TrackersURL:   url,
		CrawlInterval: ttl,
	}, logger)
	c.retryBase = time.Millisecond
	return c
}

func TestRefreshThenServeFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(trackerList))
	}))
	defer srv.Close()

	c := testTrackerClient(srv.URL, time.Hour)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	list := c.Trackers()
	if len(list) != 3 {
		t.Fatalf("Expected 3 trackers, got %d: %v", len(list), list)
	}
	if list[0] != "udp://tracker.opentrackr.org:1337/announce" {
		t.Errorf("Unexpected first tracker: %s", list[0])
	}

	// reads never reach the server
	c.Trackers()
	c.Trackers()
	if calls.Load() != 1 {
		t.Errorf("Expected 1 fetch, got %d", calls.Load())
	}
}

func TestFailedRefreshKeepsPreviousList(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(trackerList))
	}))
	defer srv.Close()

	c := testTrackerClient(srv.URL, 10*time.Millisecond)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	fail.Store(true)
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Expected refresh error when the server fails")
	}

	// even once the cached copy expires the stale list keeps serving
	time.Sleep(20 * time.Millisecond)
	if list := c.Trackers(); len(list) != 3 {
		t.Errorf("Expected stale list to survive, got %v", list)
	}
}

func TestRefreshRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(trackerList))
	}))
	defer srv.Close()

	c := testTrackerClient(srv.URL, time.Hour)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
	if list := c.Trackers(); len(list) != 3 {
		t.Errorf("Expected 3 trackers after recovery, got %v", list)
	}
}

func TestDisabledWithoutURL(t *testing.T) {
	c := testTrackerClient("", time.Hour)

	if err := c.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh without URL should be a no-op, got %v", err)
	}
	if list := c.Trackers(); list != nil {
		t.Errorf("Empty URL should disable enrichment, got %v", list)
	}
}
