package models

import "time"

// Show represents a series aggregated from release titles
type Show struct {
	ID   uint64 `boltholdKey:"ID"`
	Slug string `boltholdIndex:"Slug"` // normalized name plus year, unique per show

	Name string // display name as first parsed
	Year int    // 0 when no year appeared in any title

	Aliases   []string // cleaned title variants that resolved to this show
	Languages []string // ISO 639-1 codes collected across releases
	Poster    string   // optional artwork URL, empty when unknown

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Episode represents one aired unit of a show in a given resolution.
// Season and Episode are nil when the release could not be pinned down
// that far: a season pack has Episode nil, a bare show-level release
// has both nil. Identity is (ShowID, Season, Episode, Resolution).
type Episode struct {
	ID     uint64 `boltholdKey:"ID"`
	ShowID uint64 `boltholdIndex:"ShowID"`

	Season  *int
	Episode *int

	Resolution Resolution
	Source     string // rip source from the title (WEB-DL, HDRip, ...)
	SizeBytes  int64
	Languages  []string

	ThreadURL     string // thread that first produced this episode
	Confidence    float64
	LowConfidence bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsSeasonPack reports whether this record covers a whole season
// rather than a single numbered episode
func (e *Episode) IsSeasonPack() bool {
	return e.Episode == nil
}

// SeasonNumber returns the season a numbered episode is announced
// under. Releases that never named a season count as season one.
func (e *Episode) SeasonNumber() int {
	if e.Season == nil {
		return 1
	}
	return *e.Season
}

// StreamLink represents one magnet URI attached to an episode record.
// Identity is (EpisodeID, InfoHash): the same hash posted in two
// different threads stays a single link.
type StreamLink struct {
	ID        uint64 `boltholdKey:"ID"`
	ShowID    uint64 `boltholdIndex:"ShowID"`
	EpisodeID uint64 `boltholdIndex:"EpisodeID"`

	InfoHash string `boltholdIndex:"InfoHash"` // lowercase btih
	Magnet   string // full magnet URI as extracted, without injected trackers
	Title    string // display name from the magnet, or the thread title

	Resolution Resolution
	SizeBytes  int64
	Languages  []string

	ThreadURL string // thread the link was extracted from

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CrawlState is the single persisted record carrying crawl progress
// across cycles and restarts
type CrawlState struct {
	LastSeenActivity time.Time // newest listing activity committed by a completed cycle

	InitialDone   bool
	CyclesRun     int
	LastCycleAt   time.Time
	LastCycleOK   bool
	LastCycleNote string // short failure note for the status endpoint
}
