package utils

import (
	"testing"

	"github.com/amaumene/tamilarr/internal/models"
)

func TestRankLinksPrefersResolutionThenSourceThenSize(t *testing.T) {
	links := []*models.StreamLink{
		{InfoHash: "a", Resolution: models.Resolution720p, Title: "Show S01E01 HDRip 720p", SizeBytes: 500 << 20},
		{InfoHash: "b", Resolution: models.Resolution1080p, Title: "Show S01E01 HDRip 1080p", SizeBytes: 1 << 30},
		{InfoHash: "c", Resolution: models.Resolution1080p, Title: "Show S01E01 WEB-DL 1080p", SizeBytes: 900 << 20},
		{InfoHash: "d", Resolution: models.Resolution720p, Title: "Show S01E01 HDRip 720p", SizeBytes: 700 << 20},
	}

	ranked := RankLinks(links)

	want := []string{"c", "b", "d", "a"}
	for i, hash := range want {
		if ranked[i].InfoHash != hash {
			t.Errorf("Position %d: expected %s, got %s", i, hash, ranked[i].InfoHash)
		}
	}
	if links[0].InfoHash != "a" {
		t.Error("Input slice should not be reordered")
	}
}

func TestRankLinksUnknownResolutionLast(t *testing.T) {
	links := []*models.StreamLink{
		{InfoHash: "x", Resolution: models.ResolutionUnknown, SizeBytes: 2 << 30},
		{InfoHash: "y", Resolution: models.Resolution480p, SizeBytes: 300 << 20},
	}

	ranked := RankLinks(links)
	if ranked[0].InfoHash != "y" || ranked[1].InfoHash != "x" {
		t.Errorf("Expected y before x, got %s, %s", ranked[0].InfoHash, ranked[1].InfoHash)
	}
}
