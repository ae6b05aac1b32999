package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amaumene/tamilarr/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// idPrefix namespaces every id this addon hands to Stremio clients
const idPrefix = "tb:"

// Manifest describes the addon to Stremio clients
type Manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Resources   []string          `json:"resources"`
	Types       []string          `json:"types"`
	IDPrefixes  []string          `json:"idPrefixes"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
}

// ManifestCatalog is one catalog entry in the manifest
type ManifestCatalog struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Meta is the Stremio metadata object for one show
type Meta struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Name   string  `json:"name"`
	Poster string  `json:"poster,omitempty"`
	Videos []Video `json:"videos,omitempty"`
}

// Video is one selectable episode entry inside a Meta
type Video struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Season   int    `json:"season"`
	Episode  int    `json:"episode"`
	Released string `json:"released,omitempty"`
}

// Stream is one playable source for an episode
type Stream struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CatalogResponse wraps catalog and search results
type CatalogResponse struct {
	Metas []Meta `json:"metas"`
}

// MetaResponse wraps a single meta lookup
type MetaResponse struct {
	Meta Meta `json:"meta"`
}

// StreamsResponse wraps a stream lookup
type StreamsResponse struct {
	Streams []Stream `json:"streams"`
}

// showMeta builds the catalog-level meta for a stored show
func showMeta(show *models.Show) Meta {
	return Meta{
		ID:     idPrefix + show.Slug,
		Type:   "series",
		Name:   show.Name,
		Poster: show.Poster,
	}
}

// trimJSONSuffix strips the .json suffix Stremio appends to resource ids
func trimJSONSuffix(id string) string {
	return strings.TrimSuffix(id, ".json")
}

// parseStreamID splits a stream id of the form tb:slug:season:episode.
// Season and episode zero address season and show level packs.
func parseStreamID(id string) (slug string, season, episode int, err error) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[0]+":" != idPrefix || parts[1] == "" {
		return "", 0, 0, fmt.Errorf("malformed stream id %q", id)
	}

	season, err = strconv.Atoi(parts[2])
	if err != nil || season < 0 {
		return "", 0, 0, fmt.Errorf("malformed season in stream id %q", id)
	}
	episode, err = strconv.Atoi(parts[3])
	if err != nil || episode < 0 {
		return "", 0, 0, fmt.Errorf("malformed episode in stream id %q", id)
	}

	return parts[1], season, episode, nil
}

// resolutionLabel renders a resolution for display, SD when unknown
func resolutionLabel(res models.Resolution) string {
	if res == models.ResolutionUnknown {
		return "SD"
	}
	return string(res)
}

// episodeLabel names the unit a stream request addresses
func episodeLabel(season, episode int) string {
	switch {
	case episode > 0:
		return fmt.Sprintf("S%02dE%02d", season, episode)
	case season > 0:
		return fmt.Sprintf("S%02d Pack", season)
	default:
		return "Season Pack"
	}
}

// languageLine renders ISO codes as English language names
func languageLine(codes []string) string {
	names := make([]string, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			names = append(names, strings.ToUpper(code))
			continue
		}
		name := display.English.Languages().Name(tag)
		if name == "" {
			name = strings.ToUpper(code)
		}
		names = append(names, name)
	}
	return strings.Join(names, " + ")
}

// formatSize renders a byte count with binary unit prefixes
func formatSize(b int64) string {
	switch {
	case b <= 0:
		return ""
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", float64(b)/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.0f MB", float64(b)/(1<<20))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
