package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/tamilarr/internal/config"
	"github.com/amaumene/tamilarr/internal/matcher"
	"github.com/amaumene/tamilarr/internal/metrics"
	"github.com/amaumene/tamilarr/internal/models"
	"github.com/amaumene/tamilarr/internal/services/forum"
	"github.com/amaumene/tamilarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// errStoreAbort marks a cycle that stopped because the store failed,
// the next scheduled cycle starts over from the previous crawl state
var errStoreAbort = errors.New("crawl cycle aborted on store failure")

// Fetcher is the slice of the forum client the crawler depends on
type Fetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// CycleReport summarizes one finished crawl cycle
type CycleReport struct {
	StartedAt     time.Time
	Duration      time.Duration
	Initial       bool
	PagesWalked   int
	ThreadsQueued int
	Visited       int
	Failed        int
	Blacklisted   int
	NewShows      int
	NewEpisodes   int
	NewLinks      int
	Aborted       bool
}

// visitOutcome is what one thread visit reports back to the cycle
type visitOutcome struct {
	result models.VisitResult
	stats  models.VisitStats
}

// CrawlController walks the forum listing, fans thread visits out to a
// bounded worker pool and feeds the results into the store
type CrawlController struct {
	db        *models.Database
	fetcher   Fetcher
	blacklist *utils.Blacklist
	logger    *logrus.Logger

	forumURL       string
	initialPages   int
	maxConcurrency int
	revisitAfter   time.Duration

	mu    sync.Mutex
	phase models.CrawlPhase
	last  *CycleReport

	nowFn func() time.Time
}

// NewCrawlController creates a new crawl controller
func NewCrawlController(db *models.Database, fetcher Fetcher, blacklist *utils.Blacklist, cfg *config.Config, logger *logrus.Logger) *CrawlController {
	return &CrawlController{
		db:             db,
		fetcher:        fetcher,
		blacklist:      blacklist,
		logger:         logger,
		forumURL:       cfg.ForumURL,
		initialPages:   cfg.InitialPages,
		maxConcurrency: cfg.MaxConcurrency,
		revisitAfter:   cfg.ThreadRevisit,
		phase:          models.PhaseIdle,
		nowFn:          time.Now,
	}
}

// Phase returns the phase the controller is currently in
func (c *CrawlController) Phase() models.CrawlPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LastReport returns a copy of the most recently finished cycle report,
// nil before the first cycle
func (c *CrawlController) LastReport() *CycleReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	report := *c.last
	return &report
}

// RunCycle executes one full crawl cycle: walk the listing pages,
// merge in due revisits, fan the visits out to the worker pool, wait
// for the pool to drain and commit the crawl state. A store failure
// aborts the cycle without moving the pagination cursor forward.
func (c *CrawlController) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{StartedAt: c.nowFn()}
	defer c.setPhase(models.PhaseIdle)

	state, err := c.db.LoadCrawlState()
	if err != nil {
		report.Aborted = true
		c.finish(report, "aborted")
		return report, fmt.Errorf("failed to load crawl state: %w", err)
	}
	report.Initial = !state.InitialDone

	c.logger.WithFields(logrus.Fields{
		"initial":    report.Initial,
		"cycles_run": state.CyclesRun,
	}).Info("Starting crawl cycle")

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.setPhase(models.PhasePaginating)
	summaries, newest, err := c.collectListing(cycleCtx, state, report)
	if err != nil {
		report.Aborted = true
		c.finish(report, "aborted")
		return report, err
	}

	jobs, err := c.mergeRevisits(summaries, report)
	if err != nil {
		report.Aborted = true
		c.finish(report, "aborted")
		return report, err
	}
	report.ThreadsQueued = len(jobs)

	storeFailed := c.dispatch(cycleCtx, cancel, jobs, report)
	if storeFailed {
		report.Aborted = true
		c.recordAbort(state, report)
		c.finish(report, "aborted")
		return report, errStoreAbort
	}
	if err := ctx.Err(); err != nil {
		report.Aborted = true
		c.finish(report, "canceled")
		return report, err
	}

	if newest.After(state.LastSeenActivity) {
		state.LastSeenActivity = newest
	}
	state.InitialDone = true
	state.CyclesRun++
	state.LastCycleAt = report.StartedAt
	state.LastCycleOK = true
	state.LastCycleNote = fmt.Sprintf("visited %d of %d threads", report.Visited, report.ThreadsQueued)
	if err := c.db.SaveCrawlState(state); err != nil {
		report.Aborted = true
		c.finish(report, "aborted")
		return report, fmt.Errorf("failed to save crawl state: %w", err)
	}

	c.finish(report, "ok")
	c.logger.WithFields(logrus.Fields{
		"pages":        report.PagesWalked,
		"queued":       report.ThreadsQueued,
		"visited":      report.Visited,
		"failed":       report.Failed,
		"new_shows":    report.NewShows,
		"new_episodes": report.NewEpisodes,
		"new_links":    report.NewLinks,
		"duration":     report.Duration,
	}).Info("Crawl cycle completed")

	return report, nil
}

// collectListing walks the listing pages and returns the summaries
// worth visiting plus the newest activity timestamp seen anywhere.
// Fetch and parse failures stop pagination for this cycle, only store
// failures surface as errors.
func (c *CrawlController) collectListing(ctx context.Context, state *models.CrawlState, report *CycleReport) ([]forum.ThreadSummary, time.Time, error) {
	var (
		jobs   []forum.ThreadSummary
		newest time.Time
		seen   = make(map[string]bool)
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return jobs, newest, err
		}

		content, err := c.fetcher.FetchPage(ctx, forum.PageURL(c.forumURL, page))
		if err != nil {
			c.logger.WithError(err).WithField("page", page).Warn("Failed to fetch listing page, stopping pagination")
			break
		}
		report.PagesWalked++

		listing, err := forum.ExtractListing(content, c.forumURL)
		if err != nil {
			c.logger.WithError(err).WithField("page", page).Warn("Failed to extract listing page, stopping pagination")
			break
		}

		var pageNewest time.Time
		for _, summary := range listing.Summaries {
			if summary.LastActivity.After(pageNewest) {
				pageNewest = summary.LastActivity
			}
			if seen[summary.URL] {
				continue
			}

			due, err := c.summaryDue(summary)
			if err != nil {
				return jobs, newest, err
			}
			if !due {
				continue
			}
			seen[summary.URL] = true
			jobs = append(jobs, summary)
		}
		if pageNewest.After(newest) {
			newest = pageNewest
		}

		if !listing.HasNext {
			break
		}
		if !c.shouldAdvance(state, page, pageNewest) {
			break
		}
	}

	return jobs, newest, nil
}

// shouldAdvance decides whether pagination moves past the given page.
// The first run walks exactly initialPages, later runs always cover
// those pages and keep going while a page still shows activity newer
// than the last committed cycle.
func (c *CrawlController) shouldAdvance(state *models.CrawlState, page int, pageNewest time.Time) bool {
	if !state.InitialDone {
		return page < c.initialPages
	}
	if page < c.initialPages {
		return true
	}
	return pageNewest.After(state.LastSeenActivity)
}

// summaryDue reports whether a listing row warrants a visit: unknown
// thread, newer activity than last seen, or stale enough to revisit.
// Rows without a readable activity timestamp are always visited.
func (c *CrawlController) summaryDue(summary forum.ThreadSummary) (bool, error) {
	existing, err := c.db.GetThread(summary.URL)
	if err != nil {
		if models.IsNotFound(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to look up thread: %w", err)
	}
	if summary.LastActivity.IsZero() {
		return true, nil
	}
	if summary.LastActivity.After(existing.LastActivity) {
		return true, nil
	}
	return c.nowFn().Sub(existing.LastVisitedAt) >= c.revisitAfter, nil
}

// mergeRevisits appends due revisit threads that pagination did not
// already pick up and drops blacklisted titles from the final set
func (c *CrawlController) mergeRevisits(summaries []forum.ThreadSummary, report *CycleReport) ([]forum.ThreadSummary, error) {
	queued := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		queued[s.URL] = true
	}

	due, err := c.db.DueForRevisit(c.nowFn(), c.revisitAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to load revisit queue: %w", err)
	}
	for _, rec := range due {
		if queued[rec.URL] {
			continue
		}
		queued[rec.URL] = true
		summaries = append(summaries, forum.ThreadSummary{
			URL:          rec.URL,
			ForumID:      forum.TopicID(rec.URL),
			Title:        rec.Title,
			LastActivity: rec.LastActivity,
		})
	}

	jobs := make([]forum.ThreadSummary, 0, len(summaries))
	for _, s := range summaries {
		if banned, term := c.blacklist.IsBlacklisted(s.Title); banned {
			report.Blacklisted++
			c.logger.WithFields(logrus.Fields{
				"title": s.Title,
				"term":  term,
			}).Debug("Skipping blacklisted thread")
			continue
		}
		jobs = append(jobs, s)
	}
	return jobs, nil
}

// dispatch runs the visits on a worker pool bounded by maxConcurrency
// and tallies the outcomes. Returns true when any visit hit a store
// failure, which cancels the rest of the cycle.
func (c *CrawlController) dispatch(ctx context.Context, cancel context.CancelFunc, jobs []forum.ThreadSummary, report *CycleReport) bool {
	if len(jobs) == 0 {
		return false
	}

	c.setPhase(models.PhaseDispatching)

	queue := make(chan forum.ThreadSummary, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	workers := c.maxConcurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make(chan visitOutcome, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for summary := range queue {
				outcome := c.visitThread(ctx, summary)
				metrics.ObserveVisit(string(outcome.result))
				if outcome.result == models.VisitStoreFailed {
					// nothing else this cycle can be trusted
					cancel()
				}
				results <- outcome
			}
		}()
	}

	c.setPhase(models.PhaseDraining)
	wg.Wait()
	close(results)

	storeFailed := false
	for outcome := range results {
		switch outcome.result {
		case models.VisitOK:
			report.Visited++
			report.NewShows += outcome.stats.NewShows
			report.NewEpisodes += outcome.stats.NewEpisodes
			report.NewLinks += outcome.stats.NewLinks
		case models.VisitStoreFailed:
			storeFailed = true
			report.Failed++
		default:
			report.Failed++
		}
	}
	return storeFailed
}

// visitThread fetches one thread page and feeds what it found into the
// store. Fetch failures leave a visit-attempt record behind so the
// thread stays due for the next cycle.
func (c *CrawlController) visitThread(ctx context.Context, summary forum.ThreadSummary) visitOutcome {
	if ctx.Err() != nil {
		return visitOutcome{result: models.VisitFetchFailed}
	}

	metrics.IncInFlight()
	defer metrics.DecInFlight()

	log := c.logger.WithFields(logrus.Fields{
		"url":   summary.URL,
		"title": summary.Title,
	})

	content, err := c.fetcher.FetchPage(ctx, summary.URL)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch thread")
		return c.recordAttempt(summary, models.VisitFetchFailed, log)
	}

	page, err := forum.ExtractThread(content)
	if err != nil {
		log.WithError(err).Warn("Failed to extract thread page")
		return c.recordAttempt(summary, models.VisitParseFailed, log)
	}

	title := page.Title
	if title == "" {
		title = summary.Title
	}

	links, err := c.buildLinks(page, title)
	if err != nil {
		log.WithError(err).Error("Failed to load known shows")
		return visitOutcome{result: models.VisitStoreFailed}
	}

	thread := &models.Thread{
		URL:          summary.URL,
		ForumID:      summary.ForumID,
		Title:        title,
		LastActivity: summary.LastActivity,
		MagnetCount:  len(links),
	}

	stats, err := c.db.UpsertThreadVisit(thread, links, c.nowFn())
	if err != nil {
		log.WithError(err).Error("Failed to store thread visit")
		return visitOutcome{result: models.VisitStoreFailed}
	}

	if !stats.Empty() {
		log.WithFields(logrus.Fields{
			"new_shows":    stats.NewShows,
			"new_episodes": stats.NewEpisodes,
			"new_links":    stats.NewLinks,
		}).Info("Thread visit added releases")
	}

	return visitOutcome{result: models.VisitOK, stats: stats}
}

// buildLinks parses the magnets of a thread page into release links,
// matching each display name against the known shows. A magnet without
// a display name falls back to the thread title.
func (c *CrawlController) buildLinks(page *forum.ThreadPage, threadTitle string) ([]models.ReleaseLink, error) {
	if len(page.Magnets) == 0 {
		return nil, nil
	}

	knowns, err := c.db.KnownShows()
	if err != nil {
		return nil, err
	}

	var links []models.ReleaseLink
	for _, raw := range page.Magnets {
		magnet := utils.ParseMagnet(raw)
		if magnet == nil {
			c.logger.WithField("magnet", raw).Debug("Skipping malformed magnet link")
			continue
		}

		title := magnet.DisplayName
		if title == "" {
			title = threadTitle
		}
		if banned, term := c.blacklist.IsBlacklisted(title); banned {
			c.logger.WithFields(logrus.Fields{
				"title": title,
				"term":  term,
			}).Debug("Skipping blacklisted release")
			continue
		}

		links = append(links, models.ReleaseLink{
			Release:  matcher.Match(title, knowns),
			InfoHash: magnet.InfoHash,
			Magnet:   raw,
			Title:    title,
		})
	}

	return links, nil
}

// recordAttempt notes a failed visit so the thread stays due, then
// reports the original failure kind unless that write failed too
func (c *CrawlController) recordAttempt(summary forum.ThreadSummary, result models.VisitResult, log *logrus.Entry) visitOutcome {
	if err := c.db.RecordVisitAttempt(summary.URL, summary.Title, c.nowFn()); err != nil {
		log.WithError(err).Error("Failed to record visit attempt")
		return visitOutcome{result: models.VisitStoreFailed}
	}
	return visitOutcome{result: result}
}

// recordAbort notes the failed cycle without moving the pagination
// cursor, best effort since the store may be the thing that is down
func (c *CrawlController) recordAbort(state *models.CrawlState, report *CycleReport) {
	state.CyclesRun++
	state.LastCycleAt = report.StartedAt
	state.LastCycleOK = false
	state.LastCycleNote = "aborted on store failure"
	if err := c.db.SaveCrawlState(state); err != nil {
		c.logger.WithError(err).Error("Failed to record aborted cycle")
	}
}

func (c *CrawlController) setPhase(phase models.CrawlPhase) {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()
}

func (c *CrawlController) finish(report *CycleReport, result string) {
	report.Duration = c.nowFn().Sub(report.StartedAt)
	metrics.ObserveCycle(result, report.Duration)
	c.mu.Lock()
	c.last = report
	c.mu.Unlock()
}
