package matcher

import (
	"regexp"
	"strconv"
	"strings"
)

// Release holds everything parsed out of a single raw release title
type Release struct {
	RawTitle   string
	CleanTitle string // residual show name after stripping release tokens
	ShowName   string // canonical show name, set by Match
	ShowID     uint64 // matched known show, 0 when the title names a new show
	Slug       string

	Season     *int
	Episode    *int
	EpisodeEnd *int // inclusive end of an episode range, nil for single episodes

	IsSeasonPack bool

	Year         int
	Resolution   string
	Source       string
	ReleaseGroup string
	Languages    []string
	SizeBytes    int64

	Confidence float64
}

var (
	siteTagRe = regexp.MustCompile(`(?i)\[?\s*www\.[a-z0-9-]+(?:\.[a-z]{2,})+\s*\]?\s*[-–:]*\s*`)

	// S01E05, S01 EP05, S01EP(01-08), S01 E01-E03
	seasonEpisodeRe = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*[. _-]*E(?:P)?\s*\(?\s*(\d{1,3})(?:\s*[-–]\s*(?:E(?:P)?)?\s*(\d{1,3}))?\s*\)?`)
	// 1x05
	crossFormRe = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	// Season 3, Season.03
	seasonWordNumRe = regexp.MustCompile(`(?i)\bseason\s*[. _-]*(\d{1,2})\b`)
	// Episode 5, Episodes 1-8
	episodeWordNumRe = regexp.MustCompile(`(?i)\bepisodes?\s*[. _-]*(\d{1,3})(?:\s*[-–]\s*(\d{1,3}))?\b`)
	// bare S03 with no episode part
	bareSeasonRe = regexp.MustCompile(`(?i)\bS(\d{1,2})\b`)
	// bare E05 / EP05 / EP(01-08) with no season part
	bareEpisodeRe = regexp.MustCompile(`(?i)\bEP?\s?\(?\s?(\d{1,3})\s?(?:[-–]\s?(?:EP?\s?)?(\d{1,3})\s?)?\)?`)

	completeRe   = regexp.MustCompile(`(?i)\b(?:complete|full\s+season|all\s+episodes?)\b`)
	noiseWordRe  = regexp.MustCompile(`(?i)\b(?:web[- ]?dl|web-?rip|blu-?ray|bd-?rip|br-?rip|hd-?rip|hdtv|dvdrip|predvd|pdvd|hdcam|camrip|x26[45]|hevc|avc|esubs?|untouched|org)\b`)
	resolutionRe = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|4k|uhd)\b`)
	yearTokenRe  = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	sizeTokenRe  = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(tb|gb|mb)\b`)
	groupTailRe  = regexp.MustCompile(`-\s*([A-Za-z0-9]+)\s*$`)

	bracketRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	sepRunRe  = regexp.MustCompile(`[._]+|\s*[-–]\s*|\s+`)
)

// tokens that look like a release group when they trail a dash but are not
var notGroupWords = map[string]bool{
	"dl": true, "web": true, "rip": true, "hdrip": true, "webrip": true,
	"hdtv": true, "bluray": true, "esub": true, "esubs": true, "sub": true,
	"x264": true, "x265": true, "hevc": true, "avc": true, "aac": true,
	"mkv": true, "mp4": true, "untouched": true,
}

// Parse extracts structured release information from a raw title. It never
// fails: a title with no recognizable tokens comes back with everything
// unset except RawTitle and a best-effort CleanTitle.
func Parse(raw string) *Release {
	rel := &Release{RawTitle: raw}

	w := siteTagRe.ReplaceAllString(raw, "")
	w = strings.TrimSpace(w)

	tokenStart := -1

	if m := seasonEpisodeRe.FindStringSubmatchIndex(w); m != nil {
		rel.Season = atoiPtr(w[m[2]:m[3]])
		rel.Episode = atoiPtr(w[m[4]:m[5]])
		if m[6] >= 0 {
			rel.EpisodeEnd = atoiPtr(w[m[6]:m[7]])
		}
		tokenStart = m[0]
	} else if m := crossFormRe.FindStringSubmatchIndex(w); m != nil {
		rel.Season = atoiPtr(w[m[2]:m[3]])
		rel.Episode = atoiPtr(w[m[4]:m[5]])
		tokenStart = m[0]
	} else if m := seasonWordNumRe.FindStringSubmatchIndex(w); m != nil {
		rel.Season = atoiPtr(w[m[2]:m[3]])
		tokenStart = m[0]
		if em := episodeWordNumRe.FindStringSubmatchIndex(w); em != nil {
			rel.Episode = atoiPtr(w[em[2]:em[3]])
			if em[6] >= 0 {
				rel.EpisodeEnd = atoiPtr(w[em[6]:em[7]])
			}
			if em[0] < tokenStart {
				tokenStart = em[0]
			}
		}
	} else if m := bareSeasonRe.FindStringSubmatchIndex(w); m != nil {
		rel.Season = atoiPtr(w[m[2]:m[3]])
		tokenStart = m[0]
	} else if m := episodeWordNumRe.FindStringSubmatchIndex(w); m != nil {
		rel.Episode = atoiPtr(w[m[2]:m[3]])
		if m[6] >= 0 {
			rel.EpisodeEnd = atoiPtr(w[m[6]:m[7]])
		}
		tokenStart = m[0]
	} else if m := bareEpisodeRe.FindStringSubmatchIndex(w); m != nil {
		rel.Episode = atoiPtr(w[m[2]:m[3]])
		if m[6] >= 0 {
			rel.EpisodeEnd = atoiPtr(w[m[6]:m[7]])
		}
		tokenStart = m[0]
	}

	// a range that goes backwards is a parse artifact, keep the start only
	if rel.Episode != nil && rel.EpisodeEnd != nil && *rel.EpisodeEnd <= *rel.Episode {
		rel.EpisodeEnd = nil
	}

	rel.IsSeasonPack = rel.Episode == nil && (rel.Season != nil || completeRe.MatchString(w))

	lower := strings.ToLower(w)
	rel.Resolution = extractResolution(lower)
	rel.Source = extractSource(lower)
	rel.Year = ExtractYear(w)
	rel.SizeBytes = extractSize(w)
	rel.Languages = DetectLanguages(w)
	rel.ReleaseGroup = extractGroup(w)

	prefix := w
	if tokenStart >= 0 {
		prefix = w[:tokenStart]
	} else {
		// no season/episode tokens, strip the release noise instead
		prefix = resolutionRe.ReplaceAllString(prefix, " ")
		prefix = sizeTokenRe.ReplaceAllString(prefix, " ")
		prefix = completeRe.ReplaceAllString(prefix, " ")
		prefix = noiseWordRe.ReplaceAllString(prefix, " ")
		prefix = groupTailRe.ReplaceAllString(prefix, " ")
	}
	rel.CleanTitle = cleanName(prefix)
	rel.ShowName = rel.CleanTitle
	rel.Slug = Slugify(rel.CleanTitle, rel.Year)

	return rel
}

// EpisodeNumbers expands an episode range into the individual numbers.
// A single episode yields one entry, a pack yields none.
func (r *Release) EpisodeNumbers() []int {
	if r.Episode == nil {
		return nil
	}
	if r.EpisodeEnd == nil {
		return []int{*r.Episode}
	}
	nums := make([]int, 0, *r.EpisodeEnd-*r.Episode+1)
	for n := *r.Episode; n <= *r.EpisodeEnd; n++ {
		nums = append(nums, n)
	}
	return nums
}

// cleanName turns the residual prefix of a release title into a
// human-readable show name
func cleanName(s string) string {
	s = bracketRe.ReplaceAllString(s, " ")
	s = sepRunRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, " -–_.")
	return s
}

func extractResolution(lower string) string {
	m := strings.ToLower(resolutionRe.FindString(lower))
	if m == "4k" || m == "uhd" {
		return "2160p"
	}
	return m
}

func extractSource(lower string) string {
	switch {
	case strings.Contains(lower, "web-dl"), strings.Contains(lower, "webdl"), strings.Contains(lower, "web dl"):
		return "WEB-DL"
	case strings.Contains(lower, "webrip"), strings.Contains(lower, "web-rip"):
		return "WEBRip"
	case strings.Contains(lower, "bluray"), strings.Contains(lower, "blu-ray"), strings.Contains(lower, "bdrip"), strings.Contains(lower, "brrip"):
		return "BluRay"
	case strings.Contains(lower, "hdrip"):
		return "HDRip"
	case strings.Contains(lower, "hdtv"):
		return "HDTV"
	case strings.Contains(lower, "dvdrip"):
		return "DVDRip"
	case strings.Contains(lower, "predvd"), strings.Contains(lower, "pdvd"):
		return "PreDVD"
	case strings.Contains(lower, "hdcam"), strings.Contains(lower, "camrip"):
		return "CAM"
	default:
		return ""
	}
}

// ExtractYear extracts a 4-digit year from a release title.
// Returns 0 if no year is found.
func ExtractYear(title string) int {
	matches := yearTokenRe.FindStringSubmatch(title)
	if len(matches) > 1 {
		year, err := strconv.Atoi(matches[1])
		if err == nil {
			return year
		}
	}
	return 0
}

func extractSize(s string) int64 {
	m := sizeTokenRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "tb":
		return int64(val * (1 << 40))
	case "gb":
		return int64(val * (1 << 30))
	default:
		return int64(val * (1 << 20))
	}
}

func extractGroup(s string) string {
	m := groupTailRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	if notGroupWords[strings.ToLower(m[1])] {
		return ""
	}
	if yearTokenRe.MatchString(m[1]) || resolutionRe.MatchString(m[1]) || sizeTokenRe.MatchString(m[1]) {
		return ""
	}
	return m[1]
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
