package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/amaumene/tamilarr/internal/models"
	"github.com/sirupsen/logrus"
)

// MetaHandler serves show metadata with its episode list
type MetaHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewMetaHandler creates a new meta handler
func NewMetaHandler(db *models.Database, logger *logrus.Logger) *MetaHandler {
	return &MetaHandler{
		db:     db,
		logger: logger,
	}
}

// ServeHTTP handles the meta endpoint
func (h *MetaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := trimJSONSuffix(r.PathValue("id"))
	if !strings.HasPrefix(id, idPrefix) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	show, err := h.db.GetShowBySlug(strings.TrimPrefix(id, idPrefix))
	if err != nil {
		if models.IsNotFound(err) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to load show")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	eps, err := h.db.EpisodesByShow(show.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list episodes")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	meta := showMeta(show)
	seen := make(map[string]bool)
	for _, ep := range eps {
		var season, episode int
		var title string
		switch {
		case ep.Episode != nil:
			season, episode = ep.SeasonNumber(), *ep.Episode
			title = fmt.Sprintf("Episode %d", episode)
		case ep.Season != nil:
			// season pack, announced as episode zero of its season
			season = *ep.Season
			title = fmt.Sprintf("Season %d Pack", season)
		default:
			title = "Season Pack"
		}

		vid := fmt.Sprintf("%s%s:%d:%d", idPrefix, show.Slug, season, episode)
		if seen[vid] {
			continue
		}
		seen[vid] = true

		video := Video{ID: vid, Title: title, Season: season, Episode: episode}
		if !ep.CreatedAt.IsZero() {
			video.Released = ep.CreatedAt.UTC().Format(time.RFC3339)
		}
		meta.Videos = append(meta.Videos, video)
	}

	sort.Slice(meta.Videos, func(i, j int) bool {
		if meta.Videos[i].Season != meta.Videos[j].Season {
			return meta.Videos[i].Season < meta.Videos[j].Season
		}
		return meta.Videos[i].Episode < meta.Videos[j].Episode
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MetaResponse{Meta: meta})
}
