package utils

import (
	"sort"
	"strings"

	"github.com/amaumene/tamilarr/internal/models"
)

// RankLinks sorts stream links by:
// 1. Resolution (2160p > 1080p > 720p > 480p > unknown)
// 2. Rip source (WEB-DL > HDRip/WEBRip > anything else)
// 3. Size (larger is better)
func RankLinks(links []*models.StreamLink) []*models.StreamLink {
	sorted := make([]*models.StreamLink, len(links))
	copy(sorted, links)

	sort.SliceStable(sorted, func(i, j int) bool {
		resI := resolutionValue(sorted[i].Resolution)
		resJ := resolutionValue(sorted[j].Resolution)
		if resI != resJ {
			return resI > resJ
		}

		srcI := sourceValue(sorted[i].Title)
		srcJ := sourceValue(sorted[j].Title)
		if srcI != srcJ {
			return srcI > srcJ
		}

		return sorted[i].SizeBytes > sorted[j].SizeBytes
	})

	return sorted
}

// resolutionValue assigns a numeric value to each resolution tier for comparison
func resolutionValue(res models.Resolution) int {
	switch res {
	case models.Resolution2160p:
		return 4
	case models.Resolution1080p:
		return 3
	case models.Resolution720p:
		return 2
	case models.Resolution480p:
		return 1
	default:
		return 0
	}
}

// sourceValue ranks the rip source named in a link title
func sourceValue(title string) int {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "web-dl") || strings.Contains(t, "webdl") || strings.Contains(t, "web dl"):
		return 2
	case strings.Contains(t, "hdrip") || strings.Contains(t, "webrip") || strings.Contains(t, "web-rip"):
		return 1
	default:
		return 0
	}
}
