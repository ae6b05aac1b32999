package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestRouteLabelCollapsesIDSegments(t *testing.T) {
	cases := map[string]string{
		"/":                       "/",
		"/manifest.json":          "/manifest.json",
		"/catalog/series/x.json":  "/catalog",
		"/stream/series/tb:a:1:2": "/stream",
		"/debug/streams/tb:a":     "/debug",
	}
	for path, want := range cases {
		if got := routeLabel(path); got != want {
			t.Errorf("routeLabel(%q): expected %q, got %q", path, want, got)
		}
	}
}

func TestCORSAnswersPreflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h := CORS(next)

	req := httptest.NewRequest(http.MethodOptions, "/manifest.json", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Preflight should return 204, got %d", rec.Code)
	}
	if called {
		t.Error("Preflight should not reach the handler")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Missing allow-origin header")
	}

	req = httptest.NewRequest(http.MethodGet, "/manifest.json", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !called {
		t.Error("GET should reach the handler")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("GET response should carry allow-origin")
	}
}

func TestLoggingPreservesStatusCode(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	h := Logging(next, logger)

	req := httptest.NewRequest(http.MethodGet, "/meta/series/tb:x.json", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status passthrough, got %d", rec.Code)
	}
}
