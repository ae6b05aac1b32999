package models

// Resolution represents the video resolution tier parsed from a release title
type Resolution string

const (
	Resolution2160p   Resolution = "2160p"
	Resolution1080p   Resolution = "1080p"
	Resolution720p    Resolution = "720p"
	Resolution480p    Resolution = "480p"
	ResolutionUnknown Resolution = ""
)

// CrawlPhase represents the current phase of the crawl controller
type CrawlPhase string

const (
	PhaseIdle        CrawlPhase = "idle"
	PhasePaginating  CrawlPhase = "paginating"
	PhaseDispatching CrawlPhase = "dispatching"
	PhaseDraining    CrawlPhase = "draining"
)

// VisitResult classifies the outcome of a single thread visit
type VisitResult string

const (
	VisitOK          VisitResult = "ok"
	VisitFetchFailed VisitResult = "fetch_failed"
	VisitParseFailed VisitResult = "parse_failed"
	VisitStoreFailed VisitResult = "store_failed"
)

// VisitStats counts what a single thread visit added to the store
type VisitStats struct {
	NewShows    int
	NewEpisodes int
	NewLinks    int
}

// Empty reports whether the visit added nothing new
func (s VisitStats) Empty() bool {
	return s.NewShows == 0 && s.NewEpisodes == 0 && s.NewLinks == 0
}
