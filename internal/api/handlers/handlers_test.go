package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amaumene/tamilarr/internal/config"
	"github.com/amaumene/tamilarr/internal/controllers"
	"github.com/amaumene/tamilarr/internal/matcher"
	"github.com/amaumene/tamilarr/internal/models"
	"github.com/amaumene/tamilarr/internal/utils"
	"github.com/sirupsen/logrus"
)

var seedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type seedRelease struct {
	title string
	hash  string
}

func seedThread(t *testing.T, db *models.Database, topic string, releases ...seedRelease) {
	t.Helper()
	links := make([]models.ReleaseLink, 0, len(releases))
	for _, r := range releases {
		links = append(links, models.ReleaseLink{
			Release:  matcher.Parse(r.title),
			InfoHash: r.hash,
			Magnet:   "magnet:?xt=urn:btih:" + r.hash + "&dn=x",
			Title:    r.title,
		})
	}
	thread := &models.Thread{
		URL:          "https://forum.example/index.php?/forums/topic/" + topic + "/",
		ForumID:      topic,
		Title:        releases[0].title,
		LastActivity: seedTime,
	}
	if _, err := db.UpsertThreadVisit(thread, links, seedTime); err != nil {
		t.Fatalf("Seed visit failed: %v", err)
	}
}

// one show with two numbered episodes in two resolutions plus a season pack
func seedKayamai(t *testing.T, db *models.Database) {
	seedThread(t, db, "171000-kayamai",
		seedRelease{"Kayamai (2023) S01 EP01 Tamil WEB-DL 1080p - 1.4GB", strings.Repeat("aa", 20)},
		seedRelease{"Kayamai (2023) S01 EP01 Tamil HDRip 720p - 700MB", strings.Repeat("bb", 20)},
		seedRelease{"Kayamai (2023) S01 EP02 Tamil WEB-DL 1080p - 1.4GB", strings.Repeat("cc", 20)},
	)
	seedThread(t, db, "171001-kayamai-pack",
		seedRelease{"Kayamai (2023) Season 1 Complete Tamil WEB-DL 720p - 4GB", strings.Repeat("dd", 20)},
	)
}

func doGet(t *testing.T, h http.Handler, target string, pathValues map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

type stubTrackers struct {
	list []string
}

func (s stubTrackers) Trackers() []string { return s.list }

func TestManifestDescribesAddon(t *testing.T) {
	h := NewManifestHandler(testLogger())

	rec := doGet(t, h, "/manifest.json", nil)

	var m Manifest
	decodeBody(t, rec, &m)
	if m.ID != "org.tamilblasters.series" {
		t.Errorf("Expected addon id org.tamilblasters.series, got %q", m.ID)
	}
	if len(m.Resources) != 4 {
		t.Errorf("Expected 4 resources, got %v", m.Resources)
	}
	if len(m.IDPrefixes) != 1 || m.IDPrefixes[0] != "tb:" {
		t.Errorf("Expected id prefix tb:, got %v", m.IDPrefixes)
	}
	if len(m.Catalogs) != 1 || m.Catalogs[0].ID != "tamil-web" {
		t.Errorf("Expected one tamil-web catalog, got %v", m.Catalogs)
	}

	req := httptest.NewRequest(http.MethodPost, "/manifest.json", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST should be rejected, got %d", rec.Code)
	}
}

func TestCatalogListsShowsSortedByName(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)
	seedThread(t, db, "171002-vilangu",
		seedRelease{"Vilangu (2022) S01 EP01 Tamil HDRip 720p - 700MB", strings.Repeat("ee", 20)},
	)

	h := NewCatalogHandler(db, testLogger())
	rec := doGet(t, h, "/catalog/series/tamil-web.json", map[string]string{"type": "series", "id": "tamil-web.json"})

	var resp CatalogResponse
	decodeBody(t, rec, &resp)
	if len(resp.Metas) != 2 {
		t.Fatalf("Expected 2 metas, got %d", len(resp.Metas))
	}
	if resp.Metas[0].ID != "tb:kayamai_2023" || resp.Metas[1].ID != "tb:vilangu_2022" {
		t.Errorf("Expected name order kayamai, vilangu; got %s, %s", resp.Metas[0].ID, resp.Metas[1].ID)
	}
	if resp.Metas[0].Type != "series" || resp.Metas[0].Name != "Kayamai" {
		t.Errorf("Unexpected meta: %+v", resp.Metas[0])
	}
}

func TestCatalogSkipPagesThroughShows(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)
	seedThread(t, db, "171002-vilangu",
		seedRelease{"Vilangu (2022) S01 EP01 Tamil HDRip 720p - 700MB", strings.Repeat("ee", 20)},
	)

	h := NewCatalogHandler(db, testLogger())
	rec := doGet(t, h, "/catalog/series/tamil-web.json?skip=1", map[string]string{"type": "series", "id": "tamil-web.json"})

	var resp CatalogResponse
	decodeBody(t, rec, &resp)
	if len(resp.Metas) != 1 || resp.Metas[0].ID != "tb:vilangu_2022" {
		t.Errorf("Expected only vilangu after skip=1, got %+v", resp.Metas)
	}

	rec = doGet(t, h, "/catalog/series/tamil-web.json?skip=99", map[string]string{"type": "series", "id": "tamil-web.json"})
	decodeBody(t, rec, &resp)
	if len(resp.Metas) != 0 {
		t.Errorf("Skip past the end should return no metas, got %d", len(resp.Metas))
	}
}

func TestMetaListsEpisodesAndPacks(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)

	h := NewMetaHandler(db, testLogger())
	rec := doGet(t, h, "/meta/series/tb:kayamai_2023.json", map[string]string{"type": "series", "id": "tb:kayamai_2023.json"})

	var resp MetaResponse
	decodeBody(t, rec, &resp)
	if resp.Meta.ID != "tb:kayamai_2023" || resp.Meta.Name != "Kayamai" {
		t.Fatalf("Unexpected meta: %+v", resp.Meta)
	}

	// the pack surfaces as episode zero, the two resolutions of EP01 collapse
	wantIDs := []string{"tb:kayamai_2023:1:0", "tb:kayamai_2023:1:1", "tb:kayamai_2023:1:2"}
	if len(resp.Meta.Videos) != len(wantIDs) {
		t.Fatalf("Expected %d videos, got %+v", len(wantIDs), resp.Meta.Videos)
	}
	for i, want := range wantIDs {
		if resp.Meta.Videos[i].ID != want {
			t.Errorf("Video %d: expected id %s, got %s", i, want, resp.Meta.Videos[i].ID)
		}
	}
	if resp.Meta.Videos[0].Title != "Season 1 Pack" {
		t.Errorf("Expected pack title, got %q", resp.Meta.Videos[0].Title)
	}
	if resp.Meta.Videos[1].Title != "Episode 1" || resp.Meta.Videos[1].Season != 1 || resp.Meta.Videos[1].Episode != 1 {
		t.Errorf("Unexpected first episode video: %+v", resp.Meta.Videos[1])
	}
	if resp.Meta.Videos[1].Released == "" {
		t.Error("Episode video should carry its released timestamp")
	}
}

func TestMetaUnknownShowReturns404(t *testing.T) {
	db := newTestDB(t)

	h := NewMetaHandler(db, testLogger())
	rec := doGet(t, h, "/meta/series/tb:missing.json", map[string]string{"type": "series", "id": "tb:missing.json"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	rec = doGet(t, h, "/meta/series/tt0903747.json", map[string]string{"type": "series", "id": "tt0903747.json"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Foreign id namespace should 404, got %d", rec.Code)
	}
}

func TestStreamServesRankedMagnetsWithTrackers(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)

	tracker := "udp://tracker.example:1337/announce"
	h := NewStreamHandler(db, stubTrackers{list: []string{tracker}}, testLogger())
	rec := doGet(t, h, "/stream/series/tb:kayamai_2023:1:1.json", map[string]string{"type": "series", "id": "tb:kayamai_2023:1:1.json"})

	var resp StreamsResponse
	decodeBody(t, rec, &resp)

	// EP01 in both resolutions plus the season pack covering it
	if len(resp.Streams) != 3 {
		t.Fatalf("Expected 3 streams, got %+v", resp.Streams)
	}
	if resp.Streams[0].Name != "TamilBlasters 1080p" {
		t.Errorf("Best resolution should rank first, got %q", resp.Streams[0].Name)
	}
	if !strings.HasPrefix(resp.Streams[0].Title, "S01E01 - 1080p") {
		t.Errorf("Unexpected stream title: %q", resp.Streams[0].Title)
	}
	if !strings.Contains(resp.Streams[0].Title, "Tamil") {
		t.Errorf("Stream title should name the language, got %q", resp.Streams[0].Title)
	}
	if !strings.Contains(resp.Streams[0].Title, "1.40 GB") {
		t.Errorf("Stream title should name the size, got %q", resp.Streams[0].Title)
	}
	for _, stream := range resp.Streams {
		if !strings.Contains(stream.URL, "&tr=udp%3A%2F%2Ftracker.example%3A1337%2Fannounce") {
			t.Errorf("Magnet should carry the tracker, got %q", stream.URL)
		}
	}
}

func TestStreamPackAddressedAsEpisodeZero(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)

	h := NewStreamHandler(db, stubTrackers{}, testLogger())
	rec := doGet(t, h, "/stream/series/tb:kayamai_2023:1:0.json", map[string]string{"type": "series", "id": "tb:kayamai_2023:1:0.json"})

	var resp StreamsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Streams) != 1 {
		t.Fatalf("Expected only the pack stream, got %+v", resp.Streams)
	}
	if !strings.HasPrefix(resp.Streams[0].Title, "S01 Pack") {
		t.Errorf("Unexpected pack stream title: %q", resp.Streams[0].Title)
	}
}

func TestStreamUnknownShowReturnsEmptyList(t *testing.T) {
	db := newTestDB(t)

	h := NewStreamHandler(db, stubTrackers{}, testLogger())
	rec := doGet(t, h, "/stream/series/tb:missing:1:1.json", map[string]string{"type": "series", "id": "tb:missing:1:1.json"})

	var resp StreamsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Streams) != 0 {
		t.Errorf("Expected no streams, got %+v", resp.Streams)
	}
}

func TestStreamMalformedIDRejected(t *testing.T) {
	db := newTestDB(t)
	h := NewStreamHandler(db, stubTrackers{}, testLogger())

	for _, id := range []string{
		"tb:kayamai_2023:one:1.json",
		"kayamai_2023:1:1.json",
		"tb:kayamai_2023:1.json",
		"tb:kayamai_2023:-1:2.json",
	} {
		rec := doGet(t, h, "/stream/series/"+id, map[string]string{"type": "series", "id": id})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Id %q should be rejected, got %d", id, rec.Code)
		}
	}
}

func TestSearchRanksFuzzyMatches(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)
	seedThread(t, db, "171002-vilangu",
		seedRelease{"Vilangu (2022) S01 EP01 Tamil HDRip 720p - 700MB", strings.Repeat("ee", 20)},
	)

	h := NewSearchHandler(db, testLogger())
	rec := doGet(t, h, "/search?q=vilango", nil)

	var resp CatalogResponse
	decodeBody(t, rec, &resp)
	if len(resp.Metas) == 0 || resp.Metas[0].ID != "tb:vilangu_2022" {
		t.Errorf("Expected vilangu as best match, got %+v", resp.Metas)
	}
}

func TestSearchWithoutQueryReturnsEmpty(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)

	h := NewSearchHandler(db, testLogger())
	rec := doGet(t, h, "/search", nil)

	var resp CatalogResponse
	decodeBody(t, rec, &resp)
	if len(resp.Metas) != 0 {
		t.Errorf("Expected no metas without a query, got %+v", resp.Metas)
	}
}

func TestHealthReflectsCrawlState(t *testing.T) {
	db := newTestDB(t)
	h := NewHealthHandler(db, testLogger())

	rec := doGet(t, h, "/health", nil)
	var resp HealthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("Fresh store should report ok, got %q", resp.Status)
	}

	if err := db.SaveCrawlState(&models.CrawlState{
		CyclesRun:     3,
		LastCycleAt:   seedTime,
		LastCycleOK:   false,
		LastCycleNote: "aborted on store failure",
	}); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	rec = doGet(t, h, "/health", nil)
	decodeBody(t, rec, &resp)
	if resp.Status != "degraded" {
		t.Errorf("Failed cycle should report degraded, got %q", resp.Status)
	}
	if resp.Note != "aborted on store failure" {
		t.Errorf("Expected failure note, got %q", resp.Note)
	}

	if err := db.SaveCrawlState(&models.CrawlState{CyclesRun: 4, LastCycleAt: seedTime, LastCycleOK: true}); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}
	rec = doGet(t, h, "/health", nil)
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("Recovered cycle should report ok, got %q", resp.Status)
	}
}

func TestStatusReportsStoreCounts(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)

	blacklist, err := utils.LoadBlacklist(filepath.Join(t.TempDir(), "blacklist.txt"))
	if err != nil {
		t.Fatalf("Failed to load blacklist: %v", err)
	}
	cfg := &config.Config{
		ForumURL:       "https://forum.example/index.php?/forums/forum/63-x/",
		InitialPages:   2,
		MaxConcurrency: 2,
		ThreadRevisit:  24 * time.Hour,
	}
	ctrl := controllers.NewCrawlController(db, nil, blacklist, cfg, testLogger())

	h := NewStatusHandler(db, ctrl, testLogger())
	rec := doGet(t, h, "/status", nil)

	var resp StatusResponse
	decodeBody(t, rec, &resp)
	if resp.Shows != 1 {
		t.Errorf("Expected 1 show, got %d", resp.Shows)
	}
	if resp.Episodes != 4 {
		t.Errorf("Expected 4 episode records, got %d", resp.Episodes)
	}
	if resp.Links != 4 {
		t.Errorf("Expected 4 links, got %d", resp.Links)
	}
	if resp.Threads != 2 {
		t.Errorf("Expected 2 threads, got %d", resp.Threads)
	}
	if resp.Phase != "idle" {
		t.Errorf("Expected idle phase, got %q", resp.Phase)
	}
	if resp.LastCycle != nil {
		t.Errorf("No cycle has run, got %+v", resp.LastCycle)
	}
}

func TestDebugStreamsDumpsLinks(t *testing.T) {
	db := newTestDB(t)
	seedKayamai(t, db)

	h := NewDebugStreamsHandler(db, testLogger())
	rec := doGet(t, h, "/debug/streams/tb:kayamai_2023", map[string]string{"id": "tb:kayamai_2023"})

	var resp struct {
		Show       string `json:"show"`
		LinksFound int    `json:"links_found"`
	}
	decodeBody(t, rec, &resp)
	if resp.Show != "kayamai_2023" || resp.LinksFound != 4 {
		t.Errorf("Expected 4 links for kayamai_2023, got %+v", resp)
	}

	rec = doGet(t, h, "/debug/streams/tb:missing", map[string]string{"id": "tb:missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Unknown show should 404, got %d", rec.Code)
	}
}
