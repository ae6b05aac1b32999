package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/amaumene/tamilarr/internal/controllers"
	"github.com/amaumene/tamilarr/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	crawl  *controllers.CrawlController
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, crawl *controllers.CrawlController, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		crawl:  crawl,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	Shows     int          `json:"shows"`
	Episodes  int          `json:"episodes"`
	Links     int          `json:"links"`
	Threads   int          `json:"threads"`
	Phase     string       `json:"phase"`
	Crawl     crawlStatus  `json:"crawl"`
	LastCycle *cycleStatus `json:"last_cycle,omitempty"`
}

type crawlStatus struct {
	InitialDone      bool       `json:"initial_done"`
	CyclesRun        int        `json:"cycles_run"`
	LastCycleAt      *time.Time `json:"last_cycle_at,omitempty"`
	LastCycleOK      bool       `json:"last_cycle_ok"`
	LastCycleNote    string     `json:"last_cycle_note,omitempty"`
	LastSeenActivity *time.Time `json:"last_seen_activity,omitempty"`
}

type cycleStatus struct {
	StartedAt     time.Time `json:"started_at"`
	DurationMs    int64     `json:"duration_ms"`
	Initial       bool      `json:"initial"`
	PagesWalked   int       `json:"pages_walked"`
	ThreadsQueued int       `json:"threads_queued"`
	Visited       int       `json:"visited"`
	Failed        int       `json:"failed"`
	Blacklisted   int       `json:"blacklisted"`
	NewShows      int       `json:"new_shows"`
	NewEpisodes   int       `json:"new_episodes"`
	NewLinks      int       `json:"new_links"`
	Aborted       bool      `json:"aborted"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shows, err := h.db.CountShows()
	if err != nil {
		h.serveCountError(w, err)
		return
	}
	episodes, err := h.db.CountAllEpisodes()
	if err != nil {
		h.serveCountError(w, err)
		return
	}
	links, err := h.db.CountLinks()
	if err != nil {
		h.serveCountError(w, err)
		return
	}
	threads, err := h.db.CountThreads()
	if err != nil {
		h.serveCountError(w, err)
		return
	}
	state, err := h.db.LoadCrawlState()
	if err != nil {
		h.serveCountError(w, err)
		return
	}

	response := StatusResponse{
		Shows:    shows,
		Episodes: episodes,
		Links:    links,
		Threads:  threads,
		Phase:    string(h.crawl.Phase()),
		Crawl: crawlStatus{
			InitialDone:   state.InitialDone,
			CyclesRun:     state.CyclesRun,
			LastCycleOK:   state.LastCycleOK,
			LastCycleNote: state.LastCycleNote,
		},
	}
	if !state.LastCycleAt.IsZero() {
		at := state.LastCycleAt
		response.Crawl.LastCycleAt = &at
	}
	if !state.LastSeenActivity.IsZero() {
		seen := state.LastSeenActivity
		response.Crawl.LastSeenActivity = &seen
	}

	if report := h.crawl.LastReport(); report != nil {
		response.LastCycle = &cycleStatus{
			StartedAt:     report.StartedAt,
			DurationMs:    report.Duration.Milliseconds(),
			Initial:       report.Initial,
			PagesWalked:   report.PagesWalked,
			ThreadsQueued: report.ThreadsQueued,
			Visited:       report.Visited,
			Failed:        report.Failed,
			Blacklisted:   report.Blacklisted,
			NewShows:      report.NewShows,
			NewEpisodes:   report.NewEpisodes,
			NewLinks:      report.NewLinks,
			Aborted:       report.Aborted,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *StatusHandler) serveCountError(w http.ResponseWriter, err error) {
	h.logger.WithError(err).Error("Failed to read store status")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
