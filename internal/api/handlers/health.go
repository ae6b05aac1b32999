package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/amaumene/tamilarr/internal/models"
	"github.com/sirupsen/logrus"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *models.Database, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// HealthResponse reports whether crawling is keeping up
type HealthResponse struct {
	Status      string     `json:"status"`
	CyclesRun   int        `json:"cycles_run"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	Note        string     `json:"note,omitempty"`
}

// ServeHTTP handles the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.db.LoadCrawlState()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load crawl state")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := "ok"
	if state.CyclesRun > 0 && !state.LastCycleOK {
		status = "degraded"
	}

	response := HealthResponse{
		Status:    status,
		CyclesRun: state.CyclesRun,
		Note:      state.LastCycleNote,
	}
	if !state.LastCycleAt.IsZero() {
		at := state.LastCycleAt
		response.LastCycleAt = &at
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
