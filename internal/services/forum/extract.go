package forum

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoThreads reports a listing page without a single recognizable
// thread row, which usually means the forum changed its markup
var ErrNoThreads = errors.New("no thread rows found on listing page")

// ThreadSummary is one row of a forum listing page
type ThreadSummary struct {
	URL          string
	ForumID      string
	Title        string
	LastActivity time.Time
}

// ListingPage is the extracted content of one listing page
type ListingPage struct {
	Summaries []ThreadSummary
	HasNext   bool
}

// ThreadPage is the extracted content of one thread page
type ThreadPage struct {
	Title   string
	Magnets []string
}

var topicIDRe = regexp.MustCompile(`/topic/(\d+)-`)

// TopicID extracts the numeric thread ID from a topic URL, empty when
// the URL does not look like a topic link
func TopicID(threadURL string) string {
	m := topicIDRe.FindStringSubmatch(threadURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// PageURL builds the listing URL for a 1-based page number. Page one is
// the base URL itself, later pages get the /page/N/ suffix.
func PageURL(baseURL string, page int) string {
	if page <= 1 {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + fmt.Sprintf("/page/%d/", page)
}

// ExtractListing pulls the thread summaries and pagination state out of
// a listing page. Returns ErrNoThreads when the page has none.
func ExtractListing(content []byte, baseURL string) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing base URL: %w", err)
	}

	page := &ListingPage{}
	seen := make(map[string]bool)

	collect := func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		threadURL := canonicalThreadURL(base, href)
		if threadURL == "" || seen[threadURL] {
			return
		}

		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = strings.TrimSpace(sel.AttrOr("title", ""))
		}
		if title == "" {
			return
		}

		seen[threadURL] = true
		page.Summaries = append(page.Summaries, ThreadSummary{
			URL:          threadURL,
			ForumID:      TopicID(threadURL),
			Title:        title,
			LastActivity: rowActivity(sel),
		})
	}

	// hover-preview anchors carry the clean thread title; fall back to
	// any topic anchor when the forum drops that attribute
	doc.Find("a[href*='/forums/topic/'][data-ipshover]").Each(collect)
	if len(page.Summaries) == 0 {
		doc.Find("a[href*='/forums/topic/']").Each(collect)
	}

	if len(page.Summaries) == 0 {
		return nil, ErrNoThreads
	}

	next := doc.Find("li.ipsPagination_next")
	if next.Length() > 0 {
		page.HasNext = !next.HasClass("ipsPagination_inactive") && next.Find("a[href]").Length() > 0
	} else if doc.Find("a[rel='next']").Length() > 0 {
		page.HasNext = true
	}

	return page, nil
}

// ExtractThread pulls the title and magnet links out of a thread page.
// A thread without magnets is not an error, sometimes posts only carry
// discussion.
func ExtractThread(content []byte) (*ThreadPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse thread page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1.ipsType_pageTitle").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	page := &ThreadPage{Title: title}
	seen := make(map[string]bool)
	doc.Find("a[href^='magnet:?xt=urn:btih:']").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || seen[href] {
			return
		}
		seen[href] = true
		page.Magnets = append(page.Magnets, href)
	})

	return page, nil
}

// canonicalThreadURL resolves a topic href against the page URL and
// drops tracking parameters and fragments so every mention of a thread
// maps to one key. IPS friendly URLs keep the topic path inside the
// query string, so only the &-separated extras after it are stripped.
func canonicalThreadURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if strings.HasPrefix(resolved.RawQuery, "/") {
		if i := strings.Index(resolved.RawQuery, "&"); i >= 0 {
			resolved.RawQuery = resolved.RawQuery[:i]
		}
	} else {
		resolved.RawQuery = ""
	}
	resolved.Fragment = ""
	if TopicID(resolved.String()) == "" {
		return ""
	}
	return resolved.String()
}

// rowActivity finds the newest timestamp in the anchor's listing row.
// Zero when the row carries no parseable time, which callers treat as
// unknown-and-due.
func rowActivity(sel *goquery.Selection) time.Time {
	row := sel.Closest("li")
	if row.Length() == 0 {
		row = sel.Closest("div")
	}
	if row.Length() == 0 {
		return time.Time{}
	}

	var newest time.Time
	row.Find("time[datetime]").Each(func(_ int, t *goquery.Selection) {
		raw, ok := t.Attr("datetime")
		if !ok {
			return
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return
		}
		if ts.After(newest) {
			newest = ts
		}
	})

	return newest
}
