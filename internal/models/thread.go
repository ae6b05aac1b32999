package models

import "time"

// Thread represents a forum thread that has been seen on a listing page.
// The canonical URL is the primary key so the same thread found on
// different pages (or in different cycles) maps to a single record.
type Thread struct {
	URL     string `boltholdKey:"URL"`
	ForumID string `boltholdIndex:"ForumID"` // numeric ID from the /topic/<id>- URL segment

	Title        string
	LastActivity time.Time // last-activity timestamp shown on the listing page

	// Extraction bookkeeping
	FirstSeenAt   time.Time
	LastVisitedAt time.Time
	VisitCount    int
	MagnetCount   int // magnets found during the most recent visit
}

// RevisitRecord tracks when a thread was last successfully visited and
// how many visit attempts have failed since. Threads become due again
// once LastVisitedAt falls behind the revisit threshold.
type RevisitRecord struct {
	URL string `boltholdKey:"URL"`

	Title        string // denormalized so revisits can be dispatched without loading the thread
	LastActivity time.Time

	LastVisitedAt  time.Time `boltholdIndex:"LastVisitedAt"`
	LastAttemptAt  time.Time
	FailedAttempts int
}
