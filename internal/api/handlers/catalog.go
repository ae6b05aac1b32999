package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/amaumene/tamilarr/internal/models"
	"github.com/sirupsen/logrus"
)

// catalogPageSize bounds one catalog response, Stremio pages with skip
const catalogPageSize = 100

// CatalogHandler serves the show catalog
type CatalogHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(db *models.Database, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		db:     db,
		logger: logger,
	}
}

// ServeHTTP handles the catalog endpoint
func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shows, err := h.db.ListShows()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list shows")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	skip := 0
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			skip = n
		}
	}
	if skip > len(shows) {
		skip = len(shows)
	}
	end := skip + catalogPageSize
	if end > len(shows) {
		end = len(shows)
	}

	response := CatalogResponse{Metas: make([]Meta, 0, end-skip)}
	for _, show := range shows[skip:end] {
		response.Metas = append(response.Metas, showMeta(show))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
