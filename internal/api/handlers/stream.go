package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/amaumene/tamilarr/internal/models"
	"github.com/amaumene/tamilarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// TrackerSource supplies the tracker list appended to served magnets
type TrackerSource interface {
	Trackers() []string
}

// StreamHandler serves playable sources for one episode
type StreamHandler struct {
	db       *models.Database
	trackers TrackerSource
	logger   *logrus.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(db *models.Database, trackers TrackerSource, logger *logrus.Logger) *StreamHandler {
	return &StreamHandler{
		db:       db,
		trackers: trackers,
		logger:   logger,
	}
}

// ServeHTTP handles the stream endpoint
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slug, season, episode, err := parseStreamID(trimJSONSuffix(r.PathValue("id")))
	if err != nil {
		http.Error(w, "Invalid stream id", http.StatusBadRequest)
		return
	}

	response := StreamsResponse{Streams: []Stream{}}

	show, err := h.db.GetShowBySlug(slug)
	if err != nil {
		if models.IsNotFound(err) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(response)
			return
		}
		h.logger.WithError(err).Error("Failed to load show")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	links, err := h.db.LinksForEpisodeNumber(show.ID, season, episode)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load stream links")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	trackers := h.trackers.Trackers()
	label := episodeLabel(season, episode)
	for _, link := range utils.RankLinks(links) {
		res := resolutionLabel(link.Resolution)

		title := label + " - " + res
		var extras []string
		if lang := languageLine(link.Languages); lang != "" {
			extras = append(extras, "\U0001F5E3️ "+lang)
		}
		if size := formatSize(link.SizeBytes); size != "" {
			extras = append(extras, "\U0001F4BE "+size)
		}
		if len(extras) > 0 {
			title += "\n" + strings.Join(extras, " ")
		}

		response.Streams = append(response.Streams, Stream{
			Name:  "TamilBlasters " + res,
			Title: title,
			URL:   utils.AppendTrackers(link.Magnet, trackers),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
