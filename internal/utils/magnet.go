package utils

import (
	"net/url"
	"regexp"
	"strings"
)

// Magnet holds the parts of a magnet URI the crawler cares about
type Magnet struct {
	InfoHash    string // normalized to lowercase
	DisplayName string // dn parameter, decoded
	Raw         string
}

var (
	btihHexRe    = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	btihBase32Re = regexp.MustCompile(`^[A-Za-z2-7]{32}$`)
)

// IsValidInfoHash checks whether a string is a well-formed btih value,
// either 40 hex characters or 32 base32 characters
func IsValidInfoHash(hash string) bool {
	return btihHexRe.MatchString(hash) || btihBase32Re.MatchString(hash)
}

// ParseMagnet extracts the info hash and display name from a magnet URI.
// Returns nil for anything that is not a well-formed btih magnet.
func ParseMagnet(raw string) *Magnet {
	if !strings.HasPrefix(raw, "magnet:?") {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	params := u.Query()
	var hash string
	for _, xt := range params["xt"] {
		if strings.HasPrefix(xt, "urn:btih:") {
			hash = strings.TrimPrefix(xt, "urn:btih:")
			break
		}
	}
	if !IsValidInfoHash(hash) {
		return nil
	}

	return &Magnet{
		InfoHash:    strings.ToLower(hash),
		DisplayName: strings.TrimSpace(params.Get("dn")),
		Raw:         raw,
	}
}

// AppendTrackers adds tr parameters to a magnet URI, skipping blanks.
// The original URI is left untouched when there is nothing to add.
func AppendTrackers(magnet string, trackers []string) string {
	var sb strings.Builder
	sb.WriteString(magnet)
	for _, tracker := range trackers {
		tracker = strings.TrimSpace(tracker)
		if tracker == "" {
			continue
		}
		sb.WriteString("&tr=")
		sb.WriteString(url.QueryEscape(tracker))
	}
	return sb.String()
}
