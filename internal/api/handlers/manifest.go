package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

const addonVersion = "1.0.0"

// ManifestHandler serves the addon manifest
type ManifestHandler struct {
	logger *logrus.Logger
}

// NewManifestHandler creates a new manifest handler
func NewManifestHandler(logger *logrus.Logger) *ManifestHandler {
	return &ManifestHandler{logger: logger}
}

// ServeHTTP handles the manifest endpoint
func (h *ManifestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	manifest := Manifest{
		ID:          "org.tamilblasters.series",
		Version:     addonVersion,
		Name:        "TamilBlasters Series",
		Description: "Stremio addon serving Tamil web series indexed from 1TamilBlasters",
		Resources:   []string{"catalog", "meta", "stream", "search"},
		Types:       []string{"series"},
		IDPrefixes:  []string{idPrefix},
		Catalogs: []ManifestCatalog{
			{Type: "series", ID: "tamil-web", Name: "Tamil Web Series"},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(manifest)
}
