package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/amaumene/tamilarr/internal/models"
	"github.com/sirupsen/logrus"
)

// DebugStreamsHandler dumps the raw stream links stored for one show
type DebugStreamsHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewDebugStreamsHandler creates a new debug streams handler
func NewDebugStreamsHandler(db *models.Database, logger *logrus.Logger) *DebugStreamsHandler {
	return &DebugStreamsHandler{
		db:     db,
		logger: logger,
	}
}

type debugStreamsResponse struct {
	Show       string               `json:"show"`
	LinksFound int                  `json:"links_found"`
	Streams    []*models.StreamLink `json:"streams"`
}

// ServeHTTP handles the debug streams endpoint
func (h *DebugStreamsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slug := strings.TrimPrefix(r.PathValue("id"), idPrefix)
	show, err := h.db.GetShowBySlug(slug)
	if err != nil {
		if models.IsNotFound(err) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to load show")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	links, err := h.db.LinksByShow(show.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load stream links")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(debugStreamsResponse{
		Show:       show.Slug,
		LinksFound: len(links),
		Streams:    links,
	})
}
