package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"

	"github.com/amaumene/tamilarr/internal/matcher"
)

// ReleaseLink pairs a parsed release with the magnet it was extracted from
type ReleaseLink struct {
	Release  *matcher.Release
	InfoHash string // lowercase btih
	Magnet   string
	Title    string // display name the release was parsed from
}

// UpsertThreadVisit records one successful thread visit: thread and
// revisit bookkeeping plus every extracted release, all in a single
// write transaction. Calling it again with the same inputs changes
// nothing but timestamps, so re-visiting a thread is safe.
//
// On error the transaction rolls back and the returned stats are zero.
func (db *Database) UpsertThreadVisit(thread *Thread, links []ReleaseLink, at time.Time) (VisitStats, error) {
	var stats VisitStats

	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		if err := db.upsertThreadTx(tx, thread, len(links), at); err != nil {
			return err
		}

		revisit := &RevisitRecord{
			URL:           thread.URL,
			Title:         thread.Title,
			LastActivity:  thread.LastActivity,
			LastVisitedAt: at,
			LastAttemptAt: at,
		}
		if err := db.store.TxUpsert(tx, thread.URL, revisit); err != nil {
			return fmt.Errorf("failed to upsert revisit record: %w", err)
		}

		for _, link := range links {
			rel := link.Release
			if rel == nil || rel.ShowName == "" {
				continue
			}
			showID, err := db.resolveShowTx(tx, rel, at, &stats)
			if err != nil {
				return err
			}
			if err := db.attachReleaseTx(tx, showID, link, thread.URL, at, &stats); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return VisitStats{}, err
	}

	return stats, nil
}

// RecordVisitAttempt notes a failed visit so the thread keeps its place
// in the revisit queue and the failure streak is visible
func (db *Database) RecordVisitAttempt(url, title string, at time.Time) error {
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var rec RevisitRecord
		err := db.store.TxGet(tx, url, &rec)
		switch err {
		case nil:
			rec.LastAttemptAt = at
			rec.FailedAttempts++
			if title != "" {
				rec.Title = title
			}
			if err := db.store.TxUpdate(tx, url, &rec); err != nil {
				return fmt.Errorf("failed to update revisit record: %w", err)
			}
		case bolthold.ErrNotFound:
			rec = RevisitRecord{
				URL:            url,
				Title:          title,
				LastAttemptAt:  at,
				FailedAttempts: 1,
			}
			if err := db.store.TxInsert(tx, url, &rec); err != nil {
				return fmt.Errorf("failed to insert revisit record: %w", err)
			}
		default:
			return fmt.Errorf("failed to load revisit record: %w", err)
		}
		return nil
	})
}

// DueForRevisit returns the threads whose last successful visit is at
// least threshold ago, the longest-unvisited first. Records that have
// never been visited successfully are due immediately.
func (db *Database) DueForRevisit(now time.Time, threshold time.Duration) ([]*RevisitRecord, error) {
	var recs []*RevisitRecord
	err := db.store.Find(&recs, nil)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-threshold)
	due := recs[:0]
	for _, rec := range recs {
		if !rec.LastVisitedAt.After(cutoff) {
			due = append(due, rec)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].LastVisitedAt.Equal(due[j].LastVisitedAt) {
			return due[i].LastVisitedAt.Before(due[j].LastVisitedAt)
		}
		return due[i].URL < due[j].URL
	})

	return due, nil
}

// upsertThreadTx creates or refreshes the thread record inside the visit
// transaction
func (db *Database) upsertThreadTx(tx *bbolt.Tx, thread *Thread, magnetCount int, at time.Time) error {
	var existing Thread
	err := db.store.TxGet(tx, thread.URL, &existing)
	switch err {
	case nil:
		if thread.Title != "" {
			existing.Title = thread.Title
		}
		if thread.ForumID != "" {
			existing.ForumID = thread.ForumID
		}
		if thread.LastActivity.After(existing.LastActivity) {
			existing.LastActivity = thread.LastActivity
		}
		existing.LastVisitedAt = at
		existing.VisitCount++
		existing.MagnetCount = magnetCount
		if err := db.store.TxUpdate(tx, thread.URL, &existing); err != nil {
			return fmt.Errorf("failed to update thread: %w", err)
		}
		*thread = existing
	case bolthold.ErrNotFound:
		thread.FirstSeenAt = at
		thread.LastVisitedAt = at
		thread.VisitCount = 1
		thread.MagnetCount = magnetCount
		if err := db.store.TxInsert(tx, thread.URL, thread); err != nil {
			return fmt.Errorf("failed to insert thread: %w", err)
		}
	default:
		return fmt.Errorf("failed to load thread: %w", err)
	}
	return nil
}

// resolveShowTx finds the show a release belongs to, or creates it.
// Resolution re-runs inside the transaction so releases matched against
// a stale snapshot still merge instead of duplicating: exact slug wins,
// then a fuzzy pass over the current shows, then a fresh record.
func (db *Database) resolveShowTx(tx *bbolt.Tx, rel *matcher.Release, at time.Time, stats *VisitStats) (uint64, error) {
	if rel.ShowID != 0 {
		var show Show
		err := db.store.TxGet(tx, rel.ShowID, &show)
		if err == nil {
			return show.ID, db.touchShowTx(tx, &show, rel, at)
		}
		if err != bolthold.ErrNotFound {
			return 0, fmt.Errorf("failed to load matched show: %w", err)
		}
		// matched show vanished between snapshot and commit, re-resolve
	}

	var bySlug Show
	err := db.store.TxFindOne(tx, &bySlug, bolthold.Where("Slug").Eq(rel.Slug))
	if err == nil {
		return bySlug.ID, db.touchShowTx(tx, &bySlug, rel, at)
	}
	if err != bolthold.ErrNotFound {
		return 0, fmt.Errorf("failed to look up show slug: %w", err)
	}

	var shows []*Show
	if err := db.store.TxFind(tx, &shows, nil); err != nil {
		return 0, fmt.Errorf("failed to scan shows: %w", err)
	}

	var best *Show
	bestScore := 0.0
	for _, show := range shows {
		s := matcher.Score(rel.CleanTitle, show.Name)
		for _, alias := range show.Aliases {
			if as := matcher.Score(rel.CleanTitle, alias); as > s {
				s = as
			}
		}
		switch {
		case s > bestScore:
			best, bestScore = show, s
		case s == bestScore && best != nil && s >= matcher.MatchThreshold:
			bc, err := db.txCountEpisodes(tx, best.ID)
			if err != nil {
				return 0, err
			}
			sc, err := db.txCountEpisodes(tx, show.ID)
			if err != nil {
				return 0, err
			}
			if sc > bc {
				best = show
			}
		}
	}

	if best != nil && bestScore >= matcher.MatchThreshold {
		return best.ID, db.touchShowTx(tx, best, rel, at)
	}

	show := &Show{
		Slug:      rel.Slug,
		Name:      rel.ShowName,
		Year:      rel.Year,
		Languages: append([]string(nil), rel.Languages...),
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := db.store.TxInsert(tx, bolthold.NextSequence(), show); err != nil {
		return 0, fmt.Errorf("failed to insert show: %w", err)
	}
	stats.NewShows++
	return show.ID, nil
}

// touchShowTx grows aliases and languages from a release and bumps the
// update timestamp
func (db *Database) touchShowTx(tx *bbolt.Tx, show *Show, rel *matcher.Release, at time.Time) error {
	changed := false

	if rel.CleanTitle != "" && rel.CleanTitle != show.Name && !containsString(show.Aliases, rel.CleanTitle) {
		show.Aliases = append(show.Aliases, rel.CleanTitle)
		changed = true
	}
	for _, lang := range rel.Languages {
		if !containsString(show.Languages, lang) {
			show.Languages = append(show.Languages, lang)
			changed = true
		}
	}
	if show.Year == 0 && rel.Year > 0 {
		show.Year = rel.Year
		changed = true
	}

	if !changed {
		return nil
	}

	show.UpdatedAt = at
	if err := db.store.TxUpdate(tx, show.ID, show); err != nil {
		return fmt.Errorf("failed to update show: %w", err)
	}
	return nil
}

// attachReleaseTx writes the episode records and stream link a release
// carries. A range expands into one record per episode number, a pack
// becomes a single record with a nil episode; the magnet attaches to
// every record the release covers.
func (db *Database) attachReleaseTx(tx *bbolt.Tx, showID uint64, link ReleaseLink, threadURL string, at time.Time, stats *VisitStats) error {
	rel := link.Release
	resolution := Resolution(rel.Resolution)

	nums := rel.EpisodeNumbers()
	if nums == nil {
		epID, err := db.findOrCreateEpisodeTx(tx, showID, rel.Season, nil, resolution, rel, threadURL, at, stats)
		if err != nil {
			return err
		}
		return db.findOrCreateLinkTx(tx, showID, epID, link, threadURL, at, stats)
	}

	for i := range nums {
		num := nums[i]
		epID, err := db.findOrCreateEpisodeTx(tx, showID, rel.Season, &num, resolution, rel, threadURL, at, stats)
		if err != nil {
			return err
		}
		if err := db.findOrCreateLinkTx(tx, showID, epID, link, threadURL, at, stats); err != nil {
			return err
		}
	}
	return nil
}

// findOrCreateEpisodeTx locates the episode record keyed by
// (show, season, episode, resolution), creating it on first sight
func (db *Database) findOrCreateEpisodeTx(tx *bbolt.Tx, showID uint64, season, episode *int, resolution Resolution, rel *matcher.Release, threadURL string, at time.Time, stats *VisitStats) (uint64, error) {
	var eps []*Episode
	if err := db.store.TxFind(tx, &eps, bolthold.Where("ShowID").Eq(showID)); err != nil {
		return 0, fmt.Errorf("failed to scan episodes: %w", err)
	}

	for _, ep := range eps {
		if !intPtrEq(ep.Season, season) || !intPtrEq(ep.Episode, episode) || ep.Resolution != resolution {
			continue
		}
		changed := false
		if ep.SizeBytes == 0 && rel.SizeBytes > 0 {
			ep.SizeBytes = rel.SizeBytes
			changed = true
		}
		for _, lang := range rel.Languages {
			if !containsString(ep.Languages, lang) {
				ep.Languages = append(ep.Languages, lang)
				changed = true
			}
		}
		if rel.Confidence > ep.Confidence {
			ep.Confidence = rel.Confidence
			ep.LowConfidence = rel.NearMiss()
			changed = true
		}
		if changed {
			ep.UpdatedAt = at
			if err := db.store.TxUpdate(tx, ep.ID, ep); err != nil {
				return 0, fmt.Errorf("failed to update episode: %w", err)
			}
		}
		return ep.ID, nil
	}

	ep := &Episode{
		ShowID:        showID,
		Season:        copyIntPtr(season),
		Episode:       copyIntPtr(episode),
		Resolution:    resolution,
		Source:        rel.Source,
		SizeBytes:     rel.SizeBytes,
		Languages:     append([]string(nil), rel.Languages...),
		ThreadURL:     threadURL,
		Confidence:    rel.Confidence,
		LowConfidence: rel.NearMiss(),
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	if err := db.store.TxInsert(tx, bolthold.NextSequence(), ep); err != nil {
		return 0, fmt.Errorf("failed to insert episode: %w", err)
	}
	stats.NewEpisodes++
	return ep.ID, nil
}

// findOrCreateLinkTx attaches the magnet to an episode record unless the
// same hash already hangs there
func (db *Database) findOrCreateLinkTx(tx *bbolt.Tx, showID, episodeID uint64, link ReleaseLink, threadURL string, at time.Time, stats *VisitStats) error {
	var existing []*StreamLink
	if err := db.store.TxFind(tx, &existing, bolthold.Where("InfoHash").Eq(link.InfoHash)); err != nil {
		return fmt.Errorf("failed to scan links: %w", err)
	}

	for _, l := range existing {
		if l.EpisodeID != episodeID {
			continue
		}
		l.UpdatedAt = at
		if err := db.store.TxUpdate(tx, l.ID, l); err != nil {
			return fmt.Errorf("failed to update link: %w", err)
		}
		return nil
	}

	rel := link.Release
	rec := &StreamLink{
		ShowID:     showID,
		EpisodeID:  episodeID,
		InfoHash:   link.InfoHash,
		Magnet:     link.Magnet,
		Title:      link.Title,
		Resolution: Resolution(rel.Resolution),
		SizeBytes:  rel.SizeBytes,
		Languages:  append([]string(nil), rel.Languages...),
		ThreadURL:  threadURL,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if err := db.store.TxInsert(tx, bolthold.NextSequence(), rec); err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	stats.NewLinks++
	return nil
}

func (db *Database) txCountEpisodes(tx *bbolt.Tx, showID uint64) (int, error) {
	var eps []*Episode
	if err := db.store.TxFind(tx, &eps, bolthold.Where("ShowID").Eq(showID)); err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return len(eps), nil
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyIntPtr(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
