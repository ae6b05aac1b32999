package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"

	"github.com/amaumene/tamilarr/internal/matcher"
)

// crawlStateKey is the fixed key of the single CrawlState record
const crawlStateKey = "state"

// searchFloor is the minimum score for a show to appear in search results
const searchFloor = 0.4

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// IsNotFound reports whether the error means a record does not exist,
// so callers outside this package never touch the store library
func IsNotFound(err error) bool {
	return errors.Is(err, bolthold.ErrNotFound)
}

// Show operations

// GetShowByID retrieves a show by ID
func (db *Database) GetShowByID(id uint64) (*Show, error) {
	var show Show
	err := db.store.Get(id, &show)
	if err != nil {
		return nil, err
	}
	return &show, nil
}

// GetShowBySlug retrieves a show by its slug
func (db *Database) GetShowBySlug(slug string) (*Show, error) {
	var show Show
	err := db.store.FindOne(&show, bolthold.Where("Slug").Eq(slug))
	if err != nil {
		return nil, err
	}
	return &show, nil
}

// ListShows retrieves all shows sorted by display name
func (db *Database) ListShows() ([]*Show, error) {
	var shows []*Show
	err := db.store.Find(&shows, nil)
	if err != nil {
		return nil, err
	}

	sort.Slice(shows, func(i, j int) bool {
		ni, nj := strings.ToLower(shows[i].Name), strings.ToLower(shows[j].Name)
		if ni != nj {
			return ni < nj
		}
		return shows[i].ID < shows[j].ID
	})

	return shows, nil
}

// SearchShows runs a fuzzy name search over stored shows and returns the
// closest matches, best first
func (db *Database) SearchShows(query string, limit int) ([]*Show, error) {
	shows, err := db.ListShows()
	if err != nil {
		return nil, err
	}

	type scored struct {
		show  *Show
		score float64
	}

	var hits []scored
	for _, show := range shows {
		s := matcher.SearchScore(query, show.Name)
		for _, alias := range show.Aliases {
			if as := matcher.SearchScore(query, alias); as > s {
				s = as
			}
		}
		if s >= searchFloor {
			hits = append(hits, scored{show: show, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]*Show, len(hits))
	for i, h := range hits {
		results[i] = h.show
	}
	return results, nil
}

// KnownShows builds the matcher's view of the stored shows, including
// episode counts for tie-breaking
func (db *Database) KnownShows() ([]matcher.KnownShow, error) {
	shows, err := db.ListShows()
	if err != nil {
		return nil, err
	}

	knowns := make([]matcher.KnownShow, 0, len(shows))
	for _, show := range shows {
		count, err := db.CountEpisodes(show.ID)
		if err != nil {
			return nil, err
		}
		knowns = append(knowns, matcher.KnownShow{
			ID:       show.ID,
			Name:     show.Name,
			Aliases:  show.Aliases,
			Episodes: count,
		})
	}

	return knowns, nil
}

// DeleteShow deletes a show together with its episodes and links
func (db *Database) DeleteShow(id uint64) error {
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		if err := db.store.TxDeleteMatching(tx, &StreamLink{}, bolthold.Where("ShowID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete show links: %w", err)
		}
		if err := db.store.TxDeleteMatching(tx, &Episode{}, bolthold.Where("ShowID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete show episodes: %w", err)
		}
		if err := db.store.TxDelete(tx, id, &Show{}); err != nil {
			return fmt.Errorf("failed to delete show: %w", err)
		}
		return nil
	})
}

// Episode operations

// GetEpisodeByID retrieves an episode by ID
func (db *Database) GetEpisodeByID(id uint64) (*Episode, error) {
	var ep Episode
	err := db.store.Get(id, &ep)
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// EpisodesByShow retrieves all episode records of a show ordered by
// season, then episode, then resolution. Season packs sort after the
// numbered episodes of their season, unclassified records last.
func (db *Database) EpisodesByShow(showID uint64) ([]*Episode, error) {
	var eps []*Episode
	err := db.store.Find(&eps, bolthold.Where("ShowID").Eq(showID))
	if err != nil {
		return nil, err
	}

	sort.Slice(eps, func(i, j int) bool {
		si, sj := ordinal(eps[i].Season), ordinal(eps[j].Season)
		if si != sj {
			return si < sj
		}
		ei, ej := ordinal(eps[i].Episode), ordinal(eps[j].Episode)
		if ei != ej {
			return ei < ej
		}
		return eps[i].Resolution < eps[j].Resolution
	})

	return eps, nil
}

// ordinal maps an optional number for sorting, nil after every real value
func ordinal(n *int) int {
	if n == nil {
		return int(^uint(0) >> 1)
	}
	return *n
}

// CountEpisodes counts the episode records of a show
func (db *Database) CountEpisodes(showID uint64) (int, error) {
	return db.store.Count(&Episode{}, bolthold.Where("ShowID").Eq(showID))
}

// DeleteEpisode deletes an episode together with its links
func (db *Database) DeleteEpisode(id uint64) error {
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		if err := db.store.TxDeleteMatching(tx, &StreamLink{}, bolthold.Where("EpisodeID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete episode links: %w", err)
		}
		if err := db.store.TxDelete(tx, id, &Episode{}); err != nil {
			return fmt.Errorf("failed to delete episode: %w", err)
		}
		return nil
	})
}

// StreamLink operations

// LinksByEpisode retrieves all links attached to an episode record
func (db *Database) LinksByEpisode(episodeID uint64) ([]*StreamLink, error) {
	var links []*StreamLink
	err := db.store.Find(&links, bolthold.Where("EpisodeID").Eq(episodeID))
	return links, err
}

// LinksByShow retrieves all links of a show
func (db *Database) LinksByShow(showID uint64) ([]*StreamLink, error) {
	var links []*StreamLink
	err := db.store.Find(&links, bolthold.Where("ShowID").Eq(showID))
	return links, err
}

// LinksForEpisodeNumber collects the links playable for one numbered
// episode: every resolution of that exact episode plus season packs
// covering it. Episode records without a season number count as season
// one, matching how they are announced to clients. Pack rows without a
// season number are included regardless of the requested season.
func (db *Database) LinksForEpisodeNumber(showID uint64, season, episode int) ([]*StreamLink, error) {
	eps, err := db.EpisodesByShow(showID)
	if err != nil {
		return nil, err
	}

	var links []*StreamLink
	for _, ep := range eps {
		switch {
		case ep.Episode != nil:
			if *ep.Episode != episode || ep.SeasonNumber() != season {
				continue
			}
		case ep.Season != nil:
			if *ep.Season != season {
				continue
			}
		default:
			// show-level pack, offered for any episode
		}

		epLinks, err := db.LinksByEpisode(ep.ID)
		if err != nil {
			return nil, err
		}
		links = append(links, epLinks...)
	}

	return links, nil
}

// Thread operations

// GetThread retrieves a thread by its canonical URL
func (db *Database) GetThread(url string) (*Thread, error) {
	var thread Thread
	err := db.store.Get(url, &thread)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// Counts

// CountShows counts all stored shows
func (db *Database) CountShows() (int, error) {
	return db.store.Count(&Show{}, nil)
}

// CountAllEpisodes counts all stored episode records
func (db *Database) CountAllEpisodes() (int, error) {
	return db.store.Count(&Episode{}, nil)
}

// CountLinks counts all stored stream links
func (db *Database) CountLinks() (int, error) {
	return db.store.Count(&StreamLink{}, nil)
}

// CountThreads counts all stored threads
func (db *Database) CountThreads() (int, error) {
	return db.store.Count(&Thread{}, nil)
}

// Crawl state

// LoadCrawlState loads the persisted crawl progress. A store that has
// never crawled returns a zero state, not an error.
func (db *Database) LoadCrawlState() (*CrawlState, error) {
	var state CrawlState
	err := db.store.Get(crawlStateKey, &state)
	if err == bolthold.ErrNotFound {
		return &CrawlState{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveCrawlState persists the crawl progress record
func (db *Database) SaveCrawlState(state *CrawlState) error {
	return db.store.Upsert(crawlStateKey, state)
}

// PurgeAll deletes every record of every type in one transaction
func (db *Database) PurgeAll() error {
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		if err := db.store.TxDeleteMatching(tx, &StreamLink{}, nil); err != nil {
			return fmt.Errorf("failed to purge links: %w", err)
		}
		if err := db.store.TxDeleteMatching(tx, &Episode{}, nil); err != nil {
			return fmt.Errorf("failed to purge episodes: %w", err)
		}
		if err := db.store.TxDeleteMatching(tx, &Show{}, nil); err != nil {
			return fmt.Errorf("failed to purge shows: %w", err)
		}
		if err := db.store.TxDeleteMatching(tx, &Thread{}, nil); err != nil {
			return fmt.Errorf("failed to purge threads: %w", err)
		}
		if err := db.store.TxDeleteMatching(tx, &RevisitRecord{}, nil); err != nil {
			return fmt.Errorf("failed to purge revisit records: %w", err)
		}
		err := db.store.TxDelete(tx, crawlStateKey, &CrawlState{})
		if err != nil && err != bolthold.ErrNotFound {
			return fmt.Errorf("failed to purge crawl state: %w", err)
		}
		return nil
	})
}
