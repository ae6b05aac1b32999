package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/amaumene/tamilarr/internal/models"
	"github.com/sirupsen/logrus"
)

// searchLimit caps how many ranked matches one query returns
const searchLimit = 50

// SearchHandler serves fuzzy show search
type SearchHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(db *models.Database, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		db:     db,
		logger: logger,
	}
}

// ServeHTTP handles the search endpoint
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := CatalogResponse{Metas: []Meta{}}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
		return
	}

	shows, err := h.db.SearchShows(query, searchLimit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to search shows")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	for _, show := range shows {
		response.Metas = append(response.Metas, showMeta(show))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
